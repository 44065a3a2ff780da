package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/bhangra/internal/capture"
	"github.com/ayusman/bhangra/internal/gesture"
	"github.com/ayusman/bhangra/internal/notify"
)

// Default returns the built-in configuration.
func Default() Config {
	g := gesture.DefaultConfig()
	n := notify.DefaultConfig()

	return Config{
		DataDir: defaultDataDir(),
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(30 * time.Second),
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Camera: CameraConfig{
			Width:  capture.DefaultWidth,
			Height: capture.DefaultHeight,
			FPS:    capture.DefaultFPS,
			Mirror: true,
		},
		Pose: PoseConfig{
			IdleTimeout: Duration(30 * time.Second),
		},
		Classifier: ClassifierConfig{
			FrameInterval:      Duration(g.FrameInterval),
			BaselineInterval:   Duration(g.BaselineInterval),
			NoseWindow:         g.NoseWindow,
			BaselineWindow:     g.BaselineWindow,
			VariationThreshold: g.VariationThreshold,
			BaselineMargin:     g.BaselineMargin,
			MinConfidence:      g.MinConfidence,
		},
		App: AppConfig{
			TickInterval:         Duration(33 * time.Millisecond),
			VoiceHold:            Duration(gesture.DefaultVoiceHold),
			ToastDuration:        Duration(3000 * time.Millisecond),
			OverlayMinConfidence: 0.6,
			JPEGQuality:          80,
		},
		Voice: VoiceConfig{
			Language: "es-ES",
		},
		Plugins: PluginConfig{
			Timeout: Duration(5 * time.Second),
		},
		Redis: RedisConfig{
			Enabled: n.Enabled,
			Addr:    n.Addr,
			Prefix:  n.Prefix,
			LastTTL: Duration(n.LastTTL),
		},
		Tray: TrayConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bhangra"
	}
	return filepath.Join(home, ".bhangra")
}
