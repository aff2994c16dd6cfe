package backend

import (
	"context"

	"termosifoni/internal/services"
	"termosifoni/internal/sheets"
	"termosifoni/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired record store and its cleanup function.
type BackendResult struct {
	Store   *services.RecordStore
	Slots   storage.SlotStore
	Cleanup CleanupFunc

	// AMQPEnabled reports whether change notifications are published.
	AMQPEnabled bool
}

// MirrorTarget is a spreadsheet-like destination that can also be read back.
type MirrorTarget interface {
	sheets.Mirror
	sheets.MirrorReader
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateMirror(ctx context.Context, config MirrorConfig) (MirrorTarget, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// sqlite
	SQLiteDBPath string

	// file
	DataDirectory string

	// StorageKey names the slot holding the collection.
	StorageKey string

	// Optional change feed
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// MirrorConfig selects the mirror destination. An empty SpreadsheetID
// selects the in-process mirror.
type MirrorConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// BackendType represents the type of backend
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
