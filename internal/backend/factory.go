package backend

import (
	"context"
	"fmt"

	"pft/internal/log"
	"pft/internal/storage"
	"pft/internal/tokenstore"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	return &DefaultFactory{
		logger: log.OrNop(logger).WithComponent(log.ComponentStorage),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	store, err := storage.Open(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Using SQLite state store", "path", config.SQLiteDBPath)

	return &BackendResult{
		Durable: store,
		Cleanup: func() error {
			f.logger.Debug("Closing SQLite state store")
			return store.Close()
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Using in-memory state store, sessions will not survive a restart")

	return &BackendResult{
		Durable: tokenstore.NewMemory(),
		Cleanup: func() error { return nil },
	}, nil
}
