package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/bhangra/internal/app"
	"github.com/ayusman/bhangra/internal/capture"
	"github.com/ayusman/bhangra/internal/config"
	"github.com/ayusman/bhangra/internal/discovery"
	"github.com/ayusman/bhangra/internal/logger"
	"github.com/ayusman/bhangra/internal/notify"
	"github.com/ayusman/bhangra/internal/plugin"
	"github.com/ayusman/bhangra/internal/pose"
	"github.com/ayusman/bhangra/internal/server"
	"github.com/ayusman/bhangra/internal/store"
	"github.com/ayusman/bhangra/internal/toast"
	"github.com/ayusman/bhangra/internal/tray"
	"github.com/ayusman/bhangra/internal/voice"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("bhangra", version)
		return
	}

	if err := run(*configPath); err != nil {
		logger.Error("bhangra failed", err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	logger.Infof("Bhangra %s - jump and crouch detection", version)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()
	pruneEvents(st, cfg.Store.RetainEvents.Std())

	// Plugins
	if err := os.MkdirAll(cfg.Plugins.Dir, 0755); err != nil {
		logger.Warnf("create plugin directory: %v", err)
	}
	plugins := plugin.NewManager(cfg.Plugins.Dir)
	if err := plugins.Discover(); err != nil {
		logger.Warnf("discover plugins: %v", err)
	}
	logger.Infof("loaded %d plugins from %s", len(plugins.List()), plugins.Dir())
	runner := plugin.NewRunner(st.Bindings(), plugins, plugin.NewExecutor(cfg.Plugins.Timeout.Std()))
	defer runner.Close()

	// Sinks are closed after the app, whose loops may still notify them
	// until application.Close returns.
	publisher, err := notify.NewPublisher(cfg.Notify())
	if err != nil {
		logger.Warnf("redis publisher unavailable: %v", err)
		publisher = nil
	} else {
		defer publisher.Close()
	}

	// Detection
	application, err := app.New(app.Config{
		Gesture:              cfg.Gesture(),
		TickInterval:         cfg.App.TickInterval.Std(),
		VoiceHold:            cfg.App.VoiceHold.Std(),
		OverlayMinConfidence: cfg.App.OverlayMinConfidence,
		JPEGQuality:          cfg.App.JPEGQuality,
		Camera:               capture.NewCamera(cfg.CameraOptions()),
		Estimator:            newEstimator(cfg),
		Voice:                newVoiceSource(cfg),
		Settings:             st.Settings(),
		Toasts:               toast.NewBoard(cfg.App.ToastDuration.Std()),
	})
	if err != nil {
		return err
	}
	defer application.Close()

	hub := server.NewHub(application.Status)
	application.AddSink(hub)
	application.AddSink(app.NewEventLog(st.Events()))
	application.AddSink(runner)

	if publisher != nil && publisher.Enabled() {
		application.AddSink(publisher)
	}

	// HTTP
	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		logger.Infof("serving static files from %s", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir:   staticDir,
		Store:       st,
		App:         application,
		Plugins:     plugins,
		Hub:         hub,
		ReadTimeout: cfg.Server.ReadTimeout.Std(),
	})

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	application.Restore()

	if cfg.Discovery.Enabled {
		svc := discovery.New(cfg.Discovery.Instance, port, version)
		if err := svc.Start(); err != nil {
			logger.Warnf("mDNS advertisement failed: %v", err)
		} else {
			defer svc.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tray.Enabled {
		runTray(ctx, stop, application, fmt.Sprintf("http://localhost:%d/", port))
	} else {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("server: %w", err)
			}
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("server shutdown: %v", err)
	}
	return nil
}

func setupLogging(cfg *config.Config) error {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	if cfg.Log.Dir != "" {
		if err := logger.EnableFileLogging(cfg.Log.Dir, "bhangra"); err != nil {
			return err
		}
	}
	return nil
}

func pruneEvents(st *store.Store, retain time.Duration) {
	if retain <= 0 {
		return
	}
	n, err := st.Events().DeleteBefore(time.Now().Add(-retain))
	if err != nil {
		logger.Warnf("prune events: %v", err)
		return
	}
	if n > 0 {
		logger.Infof("pruned %d events older than %s", n, retain)
	}
}

// newEstimator starts the PoseNet service or, when its script cannot be
// found, an estimator that never sees anyone so the rest of the service
// keeps working.
func newEstimator(cfg *config.Config) pose.Estimator {
	est, err := pose.NewPoseNetEstimator(cfg.PoseConfig())
	if err != nil {
		logger.Warnf("pose estimation unavailable, video detection will see no one: %v", err)
		return pose.NewMockEstimator()
	}
	return est
}

func newVoiceSource(cfg *config.Config) app.VoiceSource {
	if cfg.Voice.Command == "" {
		logger.Info("no speech recognizer configured; voice commands arrive via POST /api/commands")
		return nil
	}
	return voice.NewProcessSource(cfg.Voice.Command, cfg.Voice.Args, cfg.Voice.Language)
}

// trayStatus keeps the tray toggles in sync with changes made elsewhere.
type trayStatus struct {
	*tray.Tray
}

func (t trayStatus) StatusChanged(s app.Status) {
	t.SetVideoEnabled(s.VideoEnabled)
	t.SetVoiceEnabled(s.VoiceEnabled)
}

// runTray blocks on the system tray until ctx is done or Quit is chosen.
func runTray(ctx context.Context, stop context.CancelFunc, application *app.App, url string) {
	t := tray.New()
	status := application.Status()
	t.SetVideoEnabled(status.VideoEnabled)
	t.SetVoiceEnabled(status.VoiceEnabled)

	t.OnVideoToggle(func(enabled bool) {
		if err := application.SetVideoEnabled(enabled); err != nil {
			logger.Errorf("toggle video: %v", err)
			t.SetVideoEnabled(false)
		}
	})
	t.OnVoiceToggle(func(enabled bool) {
		if err := application.SetVoiceEnabled(enabled); err != nil {
			logger.Errorf("toggle voice: %v", err)
			t.SetVoiceEnabled(false)
		}
	})
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			logger.Warnf("open browser: %v", err)
		}
	})
	t.OnQuit(stop)
	application.AddSink(trayStatus{t})

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
