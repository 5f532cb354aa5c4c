package backend

import (
	"context"
	"fmt"

	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/storage/file"
	"fintrack/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new slot factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateSlot implements Factory.CreateSlot
func (f *DefaultFactory) CreateSlot(ctx context.Context, config Config) (*SlotResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteSlot(ctx, config)
	case FileBackend:
		return f.createFileSlot(ctx, config)
	case MemoryBackend:
		return f.createMemorySlot(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteSlot(ctx context.Context, config Config) (*SlotResult, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.DebugContext(ctx, "Initialized SQLite session slot",
		log.FieldBackend, SQLiteBackend,
		"db_path", config.SQLiteDBPath)

	return &SlotResult{
		Slot:    store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createFileSlot(ctx context.Context, config Config) (*SlotResult, error) {
	store, err := file.New(config.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}

	f.logger.DebugContext(ctx, "Initialized file session slot",
		log.FieldBackend, FileBackend,
		"state_dir", config.StateDir)

	return &SlotResult{
		Slot:    store,
		Cleanup: nil, // Every write is already on disk
	}, nil
}

func (f *DefaultFactory) createMemorySlot(ctx context.Context) (*SlotResult, error) {
	f.logger.DebugContext(ctx, "Initialized memory session slot", log.FieldBackend, MemoryBackend)

	return &SlotResult{
		Slot:    memory.New(),
		Cleanup: nil,
	}, nil
}

// Close runs the cleanup function when there is one
func (r *SlotResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}
