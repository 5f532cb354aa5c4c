package backend

import (
	"context"

	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// SlotResult contains the session slot and optional cleanup function
type SlotResult struct {
	Slot    storage.Slot
	Cleanup CleanupFunc
}

// Factory creates session slots based on configuration
type Factory interface {
	// CreateSlot opens the durable store the session container persists into
	CreateSlot(ctx context.Context, config Config) (*SlotResult, error)
}

// Config holds configuration for slot creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// File specific
	StateDir string
}

// BackendType represents the type of session backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	FileBackend   BackendType = "file"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, FileBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
