// Package config loads the service configuration: built-in defaults, then an
// optional JSON file, then BHANGRA_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ayusman/bhangra/internal/capture"
	"github.com/ayusman/bhangra/internal/gesture"
	"github.com/ayusman/bhangra/internal/notify"
	"github.com/ayusman/bhangra/internal/pose"
)

// FileName is the config file looked up in the data directory when no
// explicit path is given.
const FileName = "bhangra.json"

// Config is the complete application configuration.
type Config struct {
	DataDir    string           `json:"dataDir"`
	Server     ServerConfig     `json:"server"`
	Store      StoreConfig      `json:"store"`
	Camera     CameraConfig     `json:"camera"`
	Pose       PoseConfig       `json:"pose"`
	Classifier ClassifierConfig `json:"classifier"`
	App        AppConfig        `json:"app"`
	Voice      VoiceConfig      `json:"voice"`
	Plugins    PluginConfig     `json:"plugins"`
	Redis      RedisConfig      `json:"redis"`
	Discovery  DiscoveryConfig  `json:"discovery"`
	Tray       TrayConfig       `json:"tray"`
	Log        LogConfig        `json:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string   `json:"addr"`
	StaticDir       string   `json:"staticDir"`
	ReadTimeout     Duration `json:"readTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Path string `json:"path"`
	// RetainEvents drops logged events older than this at startup.
	// Zero keeps everything.
	RetainEvents Duration `json:"retainEvents"`
}

// CameraConfig selects and sizes the capture device.
type CameraConfig struct {
	Device int  `json:"device"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
	FPS    int  `json:"fps"`
	Mirror bool `json:"mirror"`
}

// PoseConfig configures the pose estimation service.
type PoseConfig struct {
	Script      string   `json:"script"`
	Python      string   `json:"python"`
	IdleTimeout Duration `json:"idleTimeout"`
}

// ClassifierConfig mirrors gesture.Config in file form.
type ClassifierConfig struct {
	FrameInterval      Duration `json:"frameInterval"`
	BaselineInterval   Duration `json:"baselineInterval"`
	NoseWindow         int      `json:"noseWindow"`
	BaselineWindow     int      `json:"baselineWindow"`
	VariationThreshold float64  `json:"variationThreshold"`
	BaselineMargin     float64  `json:"baselineMargin"`
	MinConfidence      float64  `json:"minConfidence"`
}

// AppConfig configures the orchestration loops.
type AppConfig struct {
	TickInterval         Duration `json:"tickInterval"`
	VoiceHold            Duration `json:"voiceHold"`
	ToastDuration        Duration `json:"toastDuration"`
	OverlayMinConfidence float64  `json:"overlayMinConfidence"`
	JPEGQuality          int      `json:"jpegQuality"`
}

// VoiceConfig configures the external speech recognizer. An empty Command
// leaves voice input to the browser via POST /api/commands.
type VoiceConfig struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	Language string   `json:"language"`
}

// PluginConfig configures plugin discovery and execution.
type PluginConfig struct {
	Dir     string   `json:"dir"`
	Timeout Duration `json:"timeout"`
}

// RedisConfig configures the Redis notification publisher.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
	// LastTTL is the expiry of the last-gesture key.
	LastTTL Duration `json:"lastTtl"`
}

// DiscoveryConfig configures the mDNS advertisement.
type DiscoveryConfig struct {
	Enabled  bool   `json:"enabled"`
	Instance string `json:"instance"`
}

// TrayConfig configures the system tray icon.
type TrayConfig struct {
	Enabled bool `json:"enabled"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// Load builds the configuration. When path is empty, FileName in the data
// directory is used if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	// The data directory decides where the implicit config file lives, so
	// it is taken from the environment first.
	if dir, ok := os.LookupEnv("BHANGRA_DATA_DIR"); ok && dir != "" {
		cfg.DataDir = dir
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.DataDir, FileName)
	}

	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides settings with BHANGRA_* environment variables.
func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("BHANGRA_DATA_DIR"); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := os.LookupEnv("BHANGRA_ADDR"); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := os.LookupEnv("BHANGRA_DB"); ok && v != "" {
		c.Store.Path = v
	}
	if v, ok := os.LookupEnv("BHANGRA_CAMERA"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BHANGRA_CAMERA: %w", err)
		}
		c.Camera.Device = n
	}
	if v, ok := os.LookupEnv("BHANGRA_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("BHANGRA_REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"BHANGRA_REDIS_ENABLED", &c.Redis.Enabled},
		{"BHANGRA_DISCOVERY", &c.Discovery.Enabled},
		{"BHANGRA_TRAY", &c.Tray.Enabled},
	}
	for _, b := range bools {
		v, ok := os.LookupEnv(b.name)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
		*b.dst = parsed
	}
	return nil
}

// resolvePaths fills data-directory-relative defaults.
func (c *Config) resolvePaths() {
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.DataDir, "bhangra.db")
	}
	if c.Plugins.Dir == "" {
		c.Plugins.Dir = filepath.Join(c.DataDir, "plugins")
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.App.TickInterval <= 0 {
		problems = append(problems, "app.tickInterval must be positive")
	}
	if c.App.VoiceHold < 0 {
		problems = append(problems, "app.voiceHold must not be negative")
	}
	if c.App.JPEGQuality < 1 || c.App.JPEGQuality > 100 {
		problems = append(problems, "app.jpegQuality must be within [1, 100]")
	}
	if c.Camera.Device < 0 {
		problems = append(problems, "camera.device must not be negative")
	}
	if c.Classifier.FrameInterval <= 0 || c.Classifier.BaselineInterval <= 0 {
		problems = append(problems, "classifier intervals must be positive")
	}
	if err := c.Gesture().Validate(); err != nil {
		problems = append(problems, "classifier: "+err.Error())
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		problems = append(problems, "redis.addr is required when redis is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Gesture returns the classifier parameters.
func (c *Config) Gesture() gesture.Config {
	return gesture.Config{
		FrameInterval:      c.Classifier.FrameInterval.Std(),
		BaselineInterval:   c.Classifier.BaselineInterval.Std(),
		NoseWindow:         c.Classifier.NoseWindow,
		BaselineWindow:     c.Classifier.BaselineWindow,
		VariationThreshold: c.Classifier.VariationThreshold,
		BaselineMargin:     c.Classifier.BaselineMargin,
		MinConfidence:      c.Classifier.MinConfidence,
	}
}

// CameraOptions returns the capture settings.
func (c *Config) CameraOptions() capture.Options {
	return capture.Options{
		DeviceID: c.Camera.Device,
		Width:    c.Camera.Width,
		Height:   c.Camera.Height,
		FPS:      c.Camera.FPS,
		Mirror:   c.Camera.Mirror,
	}
}

// PoseConfig returns the estimator settings.
func (c *Config) PoseConfig() pose.Config {
	pc := pose.DefaultConfig()
	pc.Script = c.Pose.Script
	pc.Python = c.Pose.Python
	if secs := int(c.Pose.IdleTimeout.Std().Seconds()); secs > 0 {
		pc.IdleTimeoutSec = secs
	}
	return pc
}

// Notify returns the Redis publisher settings.
func (c *Config) Notify() notify.Config {
	return notify.Config{
		Enabled:  c.Redis.Enabled,
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
		LastTTL:  c.Redis.LastTTL.Std(),
	}
}
