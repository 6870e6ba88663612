package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dickeyy/trackpaper/internal/artwork"
	"github.com/dickeyy/trackpaper/internal/config"
	"github.com/dickeyy/trackpaper/internal/display"
	"github.com/dickeyy/trackpaper/internal/domain"
	"github.com/dickeyy/trackpaper/internal/engine"
	"github.com/dickeyy/trackpaper/internal/feed"
	"github.com/dickeyy/trackpaper/internal/mpris"
	"github.com/dickeyy/trackpaper/internal/reconcile"
	"github.com/dickeyy/trackpaper/internal/render"
	"github.com/dickeyy/trackpaper/internal/schedule"
)

// AppOptions is the full dependency graph, exported so tests can validate
// it with fx.ValidateApp
var AppOptions = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		newLogger,
		newConfig,
		newSource,
		newDriver,
		newRenderer,
		newFetcher,
		newScheduler,
		reconcile.NewReconciler,
		engine.NewEngine,
	),

	fx.Invoke(applyLogLevel, registerHooks),
)

func main() {
	app := fx.New(AppOptions)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "trackpaperd: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "trackpaperd: shutdown: %v\n", err)
		os.Exit(1)
	}
}

// newLogger creates the zap logger with a level that can be raised or
// lowered once the configuration is known
func newLogger() (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	logger, err := cfg.Build()
	if err != nil {
		return nil, level, err
	}
	return logger, level, nil
}

// newConfig loads and validates configuration; any error here is fatal
func newConfig(logger *zap.Logger) (*config.Config, error) {
	return config.Load(logger)
}

// applyLogLevel syncs the logger level with the configured one
func applyLogLevel(cfg *config.Config, level zap.AtomicLevel) error {
	if cfg.Log.Level == "" {
		return nil
	}
	parsed, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	level.SetLevel(parsed)
	return nil
}

// newSource picks the message source named in the configuration
func newSource(logger *zap.Logger, cfg *config.Config) (domain.Source, error) {
	switch cfg.Feed.Source {
	case "mpris":
		return mpris.NewSource(logger), nil
	default:
		return feed.NewClient(logger, cfg.Feed)
	}
}

// newDriver picks the display driver named in the configuration
func newDriver(logger *zap.Logger, cfg *config.Config) (domain.Driver, error) {
	switch cfg.Display.Driver {
	case "memory":
		return display.NewMemory(logger), nil
	default:
		return display.NewPanel(logger, cfg.Display)
	}
}

func newRenderer(cfg *config.Config) *render.Renderer {
	geo := domain.Geometry{Width: cfg.Display.Width, Height: cfg.Display.Height}
	return render.NewRenderer(geo, cfg.Render)
}

func newScheduler(logger *zap.Logger, cfg *config.Config) *schedule.Scheduler {
	return schedule.NewScheduler(logger, cfg.Render)
}

func newFetcher(logger *zap.Logger, cfg *config.Config) domain.Fetcher {
	return artwork.NewHTTPFetcher(logger, cfg.Artwork)
}

// registerHooks wires the long-running activities into the fx lifecycle.
// The source's receive loop and the engine's loops run on a context that
// outlives OnStart and is cancelled first thing in OnStop.
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, src domain.Source, eng *engine.Engine) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := eng.Start(runCtx); err != nil {
				cancel()
				return err
			}
			go func() {
				if err := src.Start(runCtx); err != nil && runCtx.Err() == nil {
					logger.Error("Source terminated", zap.Error(err))
				}
			}()
			logger.Info("trackpaperd started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			if err := eng.Stop(ctx); err != nil {
				logger.Error("Engine shutdown failed", zap.Error(err))
			}
			if err := src.Stop(ctx); err != nil {
				logger.Error("Source shutdown failed", zap.Error(err))
			}
			logger.Info("Shutting down")
			return nil
		},
	})
}
