// Command lingo attaches to a live chat page and translates foreign-language
// messages in place.
//
// Usage:
//
//	lingo -config lingo.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/lingo/control"
	"github.com/hazyhaar/lingo/dbopen"
	"github.com/hazyhaar/lingo/engine"
	"github.com/hazyhaar/lingo/flagstore"
	"github.com/hazyhaar/lingo/rodfeed"
	"github.com/hazyhaar/lingo/translate"
	"github.com/hazyhaar/lingo/watch"
)

// clickPollInterval is how often the trigger-click queue is drained.
const clickPollInterval = 250 * time.Millisecond

func main() {
	configPath := flag.String("config", "lingo.yaml", "path to lingo.yaml config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath); err != nil {
		logger.Error("lingo: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flag store.
	db, err := dbopen.Open(cfg.FlagsDB, dbopen.WithMkdirAll(), dbopen.WithSchema(flagstore.Schema))
	if err != nil {
		return fmt.Errorf("open flags db: %w", err)
	}
	defer db.Close()
	flags := flagstore.New(db)

	// Translation coordinator.
	client := translate.NewClient(cfg.Translate.Endpoint, cfg.Translate.Target, nil)
	coord := translate.New(client, translate.Config{
		MinRequestInterval: cfg.Translate.MinRequestInterval,
	}, logger)

	// Browser session: both the snapshot source and the page surface.
	session, err := rodfeed.Open(ctx, rodfeed.Config{
		RemoteURL: cfg.Browser.Remote,
		PageURL:   cfg.Browser.PageURL,
		Headless:  cfg.Browser.Headless,
		Selectors: cfg.selectors(),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	defer session.Close()

	// Engine.
	eng := engine.New(session, session, coord, flags, engine.Config{
		ScanInterval: cfg.Engine.ScanInterval,
		Auto:         cfg.Engine.Auto,
		Selectors:    cfg.selectors(),
	}, logger)

	if err := eng.SyncFlag(ctx); err != nil {
		logger.Warn("lingo: initial flag sync failed", "error", err)
	}
	if translated, cached, err := flags.LoadStats(ctx); err == nil {
		eng.ReportStats(translated, cached)
	}

	// External flag writes take effect without restart.
	w := watch.New(db, watch.Options{Interval: time.Second, Logger: logger})
	go w.OnChange(ctx, func() error { return eng.SyncFlag(ctx) })

	// Scheduler.
	gen := eng.Activate()
	go eng.Run(ctx, gen)

	// Trigger clicks from the page.
	go clickLoop(ctx, logger, session, eng)

	// Control surfaces.
	ctrl := control.New(eng, coord, logger)

	if cfg.Control.MCP == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "lingo",
			Version: "1.0.0",
		}, nil)
		ctrl.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("lingo: mcp server", "error", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:    cfg.Control.Addr,
		Handler: ctrl.Router(cfg.Control.AuthUsername, cfg.Control.AuthPasswordHash),
	}
	go func() {
		logger.Info("lingo: control listening", "addr", cfg.Control.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("lingo: http server", "error", err)
		}
	}()

	<-ctx.Done()

	// Persist counters before exit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st := eng.State().Stats
	if err := flags.SaveStats(shutdownCtx, st.TranslatedCount, st.CachedCount); err != nil {
		logger.Warn("lingo: save stats failed", "error", err)
	}
	httpSrv.Shutdown(shutdownCtx)
	return nil
}

// clickLoop drains trigger clicks from the page and feeds them to the
// engine. A rejected trigger (already translating, stale message) is logged
// and dropped.
func clickLoop(ctx context.Context, logger *slog.Logger, session *rodfeed.Session, eng *engine.Engine) {
	ticker := time.NewTicker(clickPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := session.DrainClicks(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("lingo: drain clicks failed", "error", err)
				}
				continue
			}
			for _, id := range ids {
				go func() {
					if err := eng.Trigger(ctx, id); err != nil {
						logger.Debug("lingo: trigger rejected", "message", id, "error", err)
					}
				}()
			}
		}
	}
}
