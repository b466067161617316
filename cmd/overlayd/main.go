package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/chartglass/overlay/internal/api"
	"github.com/chartglass/overlay/internal/config"
	"github.com/chartglass/overlay/internal/controller"
	"github.com/chartglass/overlay/internal/engine"
	"github.com/chartglass/overlay/internal/netutil"
	"github.com/chartglass/overlay/internal/notify"
	"github.com/chartglass/overlay/internal/snapshot"
	"github.com/chartglass/overlay/internal/surface"
	"github.com/chartglass/overlay/internal/winsys"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("overlayd config loaded",
		"backend", cfg.Backend,
		"surface", cfg.SurfaceBackend,
		"bind_addr", cfg.BindAddr,
		"refresh_rate", cfg.RefreshRate,
		"poll_interval", cfg.PollInterval,
		"following", cfg.Following,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
		"snapshot_dir", cfg.SnapshotDir,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	querier, notifier, finder, cleanup, err := buildWindowSystem(cfg)
	if err != nil {
		slog.Error("failed to initialize window system", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	factory, err := surface.NewFactory(cfg.SurfaceBackend)
	if err != nil {
		slog.Error("failed to initialize surface backend", "surface", cfg.SurfaceBackend, "error", err)
		os.Exit(1)
	}

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		slog.Error("failed to load render settings", "path", cfg.SettingsFile, "error", err)
		os.Exit(1)
	}

	hub := engine.NewHub()
	eng, err := engine.New(querier, factory, hub, engine.Options{
		RefreshRate:  cfg.RefreshRate,
		PollInterval: cfg.PollInterval,
		WindowAlpha:  byte(cfg.WindowAlpha),
		Following:    cfg.Following,
		PriceMin:     cfg.PriceMin,
		PriceMax:     cfg.PriceMax,
		Render:       settings,
	}, notifier)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := eng.Stop(); err != nil {
			slog.Debug("engine stop failed", "error", err)
		}
	}()

	if cfg.SettingsFile != "" && cfg.WatchSettings {
		stopWatch, err := config.WatchSettings(cfg.SettingsFile, eng.SetRenderSettings)
		if err != nil {
			slog.Warn("settings watcher unavailable", "path", cfg.SettingsFile, "error", err)
		} else {
			defer stopWatch()
		}
	}

	if topic := cfg.NtfyTopic; topic != "" {
		notifier := notify.New(nil, cfg.NtfyServer, topic)
		stopBridge := bridgeNotifications(hub, notifier)
		defer stopBridge()
	}

	snapStore, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		slog.Error("failed to create snapshot store", "dir", cfg.SnapshotDir, "error", err)
		os.Exit(1)
	}

	svc := controller.NewService(eng, querier, finder, snapStore)
	h := api.NewServer(svc, hub)

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("overlayd listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("overlayd server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("overlayd shutdown failed", "error", err)
	}
}

// buildWindowSystem wires the configured Querier plus the optional change
// notifier and title finder. The cleanup func releases backend connections.
func buildWindowSystem(cfg *config.Config) (winsys.Querier, winsys.Notifier, controller.WindowFinder, func(), error) {
	switch cfg.Backend {
	case "fake":
		f := winsys.NewFake()
		return f, f, nil, func() {}, nil
	case "browser":
		b := winsys.NewBrowser(cfg.CDPURL(), cfg.TabURLFilter, 5*time.Second)
		if err := b.Connect(context.Background()); err != nil {
			return nil, nil, nil, nil, err
		}
		cleanup := func() {
			if err := b.Close(); err != nil {
				slog.Debug("browser backend close failed", "error", err)
			}
		}
		return b, nil, nil, cleanup, nil
	default:
		n := winsys.NewNative()
		return n, nil, n, func() {}, nil
	}
}

// bridgeNotifications forwards drawing-state transitions to the ntfy topic.
func bridgeNotifications(hub *engine.Hub, notifier *notify.Notifier) func() {
	events, cancel := hub.Subscribe(16)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Kind != engine.EventDrawingState {
					continue
				}
				title := "Overlay stopped"
				if ev.Running {
					title = "Overlay running"
				}
				ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := notifier.Publish(ctx, title, ev.Description); err != nil {
					slog.Debug("ntfy publish failed", "error", err)
				}
				ctxCancel()
			}
		}
	}()

	return func() {
		cancel()
		close(done)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
