package main

import (
	"context"
	"io"
	"os"

	"solstice/internal/config"
	"solstice/internal/observability/jsonlog"
	"solstice/internal/store"
	"solstice/internal/store/memorystore"
	"solstice/internal/task"
)

// repository is the task store as the process sees it: the task contract
// plus the lifecycle hooks serve and migrate need.
type repository interface {
	task.TaskRepository
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

func openRepository(ctx context.Context, cfg config.Config, logger *jsonlog.Logger) (repository, error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("using in-memory store; tasks are lost on exit", nil)
		return memorystore.NewTaskStore(), nil
	}
	st, err := store.Open(ctx, store.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func newLogger(w io.Writer, level string) (*jsonlog.Logger, error) {
	lvl, err := jsonlog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	return jsonlog.New(w).WithLevel(lvl).With(map[string]any{"service": "solstice"}), nil
}
