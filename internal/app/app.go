// Package app wires a configuration into a runnable engine: logger, provider
// client, trace sink and the standing conversation.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rand/descent/internal/config"
	"github.com/rand/descent/internal/conversation"
	"github.com/rand/descent/internal/engine"
	"github.com/rand/descent/internal/observability"
	"github.com/rand/descent/internal/prompts"
	"github.com/rand/descent/internal/provider"
	"github.com/rand/descent/internal/trim"
)

// App holds the assembled pieces of one descent process.
type App struct {
	Config config.Config
	Engine *engine.Engine

	logger       *slog.Logger
	cleanupFuncs []func() error
}

// New assembles an app from the configuration.
func New(cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	app.logger = app.initLogger()

	client, backend, err := app.buildClient()
	if err != nil {
		return nil, err
	}
	app.logger.Info("provider client ready", "backend", string(backend))

	store := prompts.NewStore(app.logger)
	if cfg.PromptsFile != "" {
		if err := store.LoadFile(cfg.PromptsFile); err != nil {
			return nil, err
		}
	}

	var sink observability.Sink
	if cfg.TracePath != "" {
		fileSink := observability.NewFileSink(observability.FileSinkConfig{Path: cfg.TracePath})
		app.cleanupFuncs = append(app.cleanupFuncs, fileSink.Close)
		sink = fileSink
		app.logger.Info("run trace enabled", "path", cfg.TracePath, "run_id", fileSink.RunID())
	}

	// Evictions by the trimmer show up in the trace alongside the calls
	// they made room for.
	trimmer := trim.New(
		trim.WithLogger(app.logger),
		trim.WithObserver(func(evicted []*conversation.Message) {
			observability.OrNop(sink).Record(observability.Event{
				Phase: observability.PhaseTrim,
				Extra: map[string]any{"evicted": len(evicted)},
			})
		}))

	conv, err := conversation.New(conversation.ModeSeedOnce, "")
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(conv, engine.Config{
		Client:              client,
		Model:               cfg.Model,
		StrongModel:         cfg.StrongModel,
		MaxCalls:            cfg.MaxCalls,
		MaxTotalTokens:      cfg.MaxTotalTokens,
		PreserveUserMessage: cfg.PreserveConversation,
		Prompts:             store,
		Trimmer:             trimmer,
		Sink:                sink,
		Logger:              app.logger,
	})
	if err != nil {
		return nil, err
	}
	app.Engine = eng
	return app, nil
}

// Logger returns the app logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Shutdown flushes and closes everything the app opened.
func (a *App) Shutdown() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		if err := a.cleanupFuncs[i](); err != nil {
			a.logger.Warn("cleanup failed", "error", err)
		}
	}
}

func (a *App) initLogger() *slog.Logger {
	level := slog.LevelInfo
	if a.Config.Debug {
		level = slog.LevelDebug
	}
	var w io.Writer = os.Stderr
	if path := os.Getenv("DESCENT_LOG_FILE"); path != "" {
		rotated := &lumberjack.Logger{Filename: path, MaxSize: 50, MaxBackups: 3}
		a.cleanupFuncs = append(a.cleanupFuncs, rotated.Close)
		w = rotated
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// buildClient picks and constructs the provider client for the resolved
// backend.
func (a *App) buildClient() (provider.Client, config.Backend, error) {
	switch backend := a.Config.ResolveBackend(); backend {
	case config.BackendRouting:
		cfg := provider.DefaultRoutingConfig()
		cfg.APIKey = a.Config.RoutingAPIKey
		cfg.Referer = a.Config.Referer
		cfg.Title = a.Config.Title
		cfg.MaxResponseTokens = a.Config.MaxResponseTokens
		cfg.Logger = a.logger
		if a.Config.StrongModel != "" {
			cfg.Model = a.Config.StrongModel
		}
		client, err := provider.NewRouting(cfg)
		if err != nil {
			return nil, backend, fmt.Errorf("routing backend: %w", err)
		}
		return client, backend, nil

	case config.BackendDirect:
		cfg := provider.DefaultDirectConfig()
		cfg.APIKey = a.Config.DirectAPIKey
		cfg.Organization = a.Config.Organization
		cfg.MaxResponseTokens = a.Config.MaxResponseTokens
		cfg.Logger = a.logger
		if a.Config.StrongModel != "" {
			cfg.Model = a.Config.StrongModel
		}
		client, err := provider.NewDirect(cfg)
		if err != nil {
			return nil, backend, fmt.Errorf("direct backend: %w", err)
		}
		return client, backend, nil

	default:
		return nil, "", fmt.Errorf("app: unsupported backend %q", backend)
	}
}
