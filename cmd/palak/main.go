package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/ayusman/palak/internal/app"
	"github.com/ayusman/palak/internal/config"
	"github.com/ayusman/palak/internal/logging"
	"github.com/ayusman/palak/internal/server"
	"github.com/ayusman/palak/internal/store"
	"github.com/ayusman/palak/internal/tray"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "palak: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.IsDev())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	blinkCfg := cfg.Blink
	switch saved, err := st.Settings().BlinkConfig(); {
	case err == nil:
		if verr := saved.Validate(); verr != nil {
			logger.Warn("ignoring invalid saved blink config", zap.Error(verr))
		} else {
			blinkCfg = saved
			logger.Info("using saved blink config")
		}
	case !errors.Is(err, store.ErrNotFound):
		logger.Warn("failed to load saved blink config", zap.Error(err))
	}

	a, err := app.New(app.Config{
		Store:                  st,
		PluginDir:              cfg.PluginDir,
		CameraID:               cfg.CameraID,
		FPS:                    cfg.FPS,
		Blink:                  blinkCfg,
		UncalibratedWarnFrames: uint64(cfg.UncalibratedWarnFrames),
		TraceDir:               cfg.TraceDir,
		Logger:                 logger,
	})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	if err := a.DiscoverPlugins(); err != nil {
		logger.Warn("plugin discovery failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := server.NewBlinkHub(a.Snapshot, logger)
	a.AddSink(hub)
	go hub.Run(ctx)

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		logger.Info("serving static files", zap.String("dir", webDir))
	}

	srv := server.New(server.Config{
		StaticDir:    webDir,
		Store:        st,
		Preview:      a.Preview(),
		Counter:      a,
		Reconfigurer: a,
		Plugins:      a.PluginManager(),
		Hub:          hub,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Run(ctx, cfg.Addr)
		cancel()
	}()

	a.SetEnabled(true)
	if err := a.Start(); err != nil {
		cancel()
		<-srvErr
		return err
	}

	if cfg.Tray {
		runTray(ctx, cancel, a, settingsURL(cfg.Addr), logger)
	} else {
		<-ctx.Done()
	}

	logger.Info("shutting down")
	cancel()
	a.Stop()
	if err := <-srvErr; err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// runTray blocks on the menu bar loop until the user quits or ctx ends.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app.App, url string, logger *zap.Logger) {
	t := tray.New()
	t.OnToggle(func(enabled bool) {
		a.SetEnabled(enabled)
		logger.Info("blink detection toggled", zap.Bool("enabled", enabled))
	})
	t.OnSettings(func() {
		if err := openBrowser(url); err != nil {
			logger.Warn("failed to open settings", zap.String("url", url), zap.Error(err))
		}
	})
	t.OnQuit(cancel)

	t.SetCount(a.Snapshot().Count)
	a.AddSink(app.SinkFunc(func(u app.Update) {
		t.SetCount(u.Count)
		t.SetCalibrated(u.Calibrated)
	}))

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
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
