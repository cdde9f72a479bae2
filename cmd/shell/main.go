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

	"github.com/dgnsrekt/browse_agent/internal/api"
	"github.com/dgnsrekt/browse_agent/internal/bridge"
	"github.com/dgnsrekt/browse_agent/internal/browser"
	"github.com/dgnsrekt/browse_agent/internal/config"
	"github.com/dgnsrekt/browse_agent/internal/consent"
	"github.com/dgnsrekt/browse_agent/internal/engine"
	"github.com/dgnsrekt/browse_agent/internal/history"
	"github.com/dgnsrekt/browse_agent/internal/navigation"
	"github.com/dgnsrekt/browse_agent/internal/netutil"
	"github.com/dgnsrekt/browse_agent/internal/relay"
	"github.com/dgnsrekt/browse_agent/internal/session"
	"github.com/dgnsrekt/browse_agent/internal/shell"
	"github.com/dgnsrekt/browse_agent/internal/store"
	"github.com/dgnsrekt/browse_agent/internal/tabs"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("shell config loaded",
		"bind_addr", cfg.BindAddr,
		"cdp_url", cfg.CDPURL(),
		"db_path", cfg.DBPath,
		"home_url", cfg.HomeURL,
		"search_engine", cfg.SearchEngine,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var launcher *browser.Launcher
	if cfg.LaunchBrowser {
		launcher = browser.NewLauncher(browser.Config{
			Binary:     cfg.BrowserBinary,
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	eng, err := engine.Connect(ctx, cfg.CDPURL(), cfg.EvalTimeout())
	if err != nil {
		slog.Error("failed to connect engine", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() { _ = eng.Close() }()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	blocked, err := navigation.LoadBlocklist(cfg.BlocklistFile)
	if err != nil {
		slog.Error("failed to load blocklist", "path", cfg.BlocklistFile, "error", err)
		os.Exit(1)
	}
	if len(blocked) > 0 {
		slog.Info("blocklist loaded", "path", cfg.BlocklistFile, "domains", len(blocked))
	}
	interceptor := navigation.NewInterceptor(blocked)

	reg := tabs.NewRegistry(eng, cfg.HomeURL)
	recorder := history.NewRecorder(st)
	snaps := session.NewSnapshotter(st)
	consents := consent.NewBroker(cfg.ConsentTimeout())
	credBridge := bridge.New(st, consents, cfg.PollInterval(), cfg.AutofillDelay(), cfg.EvalTimeout())
	defer credBridge.Close()
	events := relay.NewBroker()

	svc := shell.NewService(reg, recorder, snaps, st, consents, cfg.SearchEngine)

	eng.SetInterceptor(func(url string) navigation.Decision {
		return interceptor.Decide(url, svc.SearchEngine())
	})

	reg.Subscribe(func(ev tabs.Event) {
		if ev.Type != tabs.EventLoadFinished || !ev.Success {
			return
		}
		// The ledger stores the page's reported title, not the shortened
		// display title.
		title := ev.PageTitle
		if title == "" {
			title = ev.Tab.Title
		}
		if err := recorder.RecordVisit(ev.Tab.URL, title); err != nil {
			slog.Warn("history record failed", "url", ev.Tab.URL, "error", err)
		}
	})
	reg.Subscribe(credBridge.Listener(reg))
	reg.Subscribe(events.Listener())

	if err := snaps.Restore(ctx, reg); err != nil {
		slog.Error("failed to restore session", "error", err)
		os.Exit(1)
	}

	h := api.NewServer(svc, relay.WebsocketHandler(events))
	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("shell listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("shell server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := snaps.Save(reg); err != nil {
		slog.Error("failed to save session", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shell shutdown failed", "error", err)
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
