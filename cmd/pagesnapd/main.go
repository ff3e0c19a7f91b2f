package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/pagesnap/internal/api"
	"github.com/dgnsrekt/pagesnap/internal/browser"
	"github.com/dgnsrekt/pagesnap/internal/capture"
	"github.com/dgnsrekt/pagesnap/internal/cdpcontrol"
	"github.com/dgnsrekt/pagesnap/internal/config"
	"github.com/dgnsrekt/pagesnap/internal/controller"
	"github.com/dgnsrekt/pagesnap/internal/editor"
	"github.com/dgnsrekt/pagesnap/internal/handoff"
	"github.com/dgnsrekt/pagesnap/internal/hotkey"
	"github.com/dgnsrekt/pagesnap/internal/messages"
	"github.com/dgnsrekt/pagesnap/internal/netutil"
	"github.com/dgnsrekt/pagesnap/internal/notify"
	"github.com/dgnsrekt/pagesnap/internal/selector"
	"github.com/dgnsrekt/pagesnap/internal/snapshot"
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

	slog.Info("pagesnapd config loaded",
		"bind_addr", cfg.BindAddr,
		"cdp_url", cfg.CDPURL(),
		"tab_url_filter", cfg.TabURLFilter,
		"eval_timeout", cfg.EvalTimeout,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"max_page_height", cfg.MaxPageHeight,
		"history_capacity", cfg.HistoryCapacity,
		"export_dir", cfg.ExportDir,
		"hotkeys", cfg.Hotkeys,
		"launch_browser", cfg.LaunchBrowser,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	var launcher *browser.Launcher
	if cfg.LaunchBrowser {
		launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			ProfileDir: cfg.BrowserProfileDir,
		})
		if err := launcher.Launch(context.Background()); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
	}
	stopBrowser := func() {
		if launcher != nil && launcher.Running() {
			launcher.Stop()
		}
	}
	fatal := func(msg string, args ...any) {
		slog.Error(msg, args...)
		stopBrowser()
		os.Exit(1)
	}

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		fatal("failed to bind control API", "preferred", cfg.BindAddr, "error", err)
	}
	bindAddr := ln.Addr().String()

	cdpClient := cdpcontrol.NewClient(cfg.CDPURL(), cfg.TabURLFilter, cfg.EvalTimeout)
	if err := cdpClient.Connect(context.Background()); err != nil {
		fatal("failed to connect CDP", "cdp_url", cfg.CDPURL(), "error", err)
	}
	defer func() {
		if err := cdpClient.Close(); err != nil {
			slog.Debug("CDP client close failed", "error", err)
		}
	}()

	exports, err := snapshot.NewStore(cfg.ExportDir)
	if err != nil {
		fatal("failed to create export store", "dir", cfg.ExportDir, "error", err)
	}

	notes := notify.NewCenter(cfg.NotifyTTL)
	router := messages.NewRouter()
	slot := &handoff.Slot{}

	orch := capture.NewOrchestrator(capture.Options{
		MaxPageHeight:  cfg.MaxPageHeight,
		SettleDelay:    cfg.SettleDelay,
		RegionTimeout:  cfg.RegionTimeout,
		CaptureTimeout: cfg.CaptureTimeout,
	}, cdpClient, selector.NewLauncher(router), slot)
	orch.Register(router)

	editors := editor.NewRegistry(router, cfg.HistoryCapacity, editor.Exporter{
		Clipboard: editor.SystemClipboard{},
		Store:     exports,
	})
	orch.SetOpener(editors)

	svc := controller.NewService(cdpClient, router, orch, editors, exports, notes)
	srv := &http.Server{Addr: bindAddr, Handler: api.NewServer(svc)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Hotkeys {
		bindings, err := config.LoadKeymap(cfg.KeymapFile)
		if err != nil {
			fatal("failed to load keymap", "path", cfg.KeymapFile, "error", err)
		}
		listener := hotkey.NewListener(bindings, router, func(op string, err error) {
			notes.Error(op, err)
		})
		go func() {
			if err := listener.Run(ctx); err != nil {
				slog.Error("hotkey listener stopped", "error", err)
			}
		}()
		slog.Info("hotkeys enabled", "bindings", hotkey.String(bindings))
	}

	go func() {
		slog.Info("pagesnapd listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("pagesnapd server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("pagesnapd shutdown failed", "error", err)
	}
	stopBrowser()
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
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
