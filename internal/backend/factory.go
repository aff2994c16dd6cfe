package backend

import (
	"context"
	"fmt"

	"termosifoni/internal/amqp"
	"termosifoni/internal/log"
	"termosifoni/internal/services"
	gsheet "termosifoni/internal/sheets/google"
	"termosifoni/internal/sheets/memory"
	"termosifoni/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend opens the slot store selected by config, connects the
// optional AMQP publisher and returns a loaded RecordStore.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	slots, err := f.openSlots(config)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{services.WithLogger(f.logger)}

	// AMQP is optional: a broker that is down at startup only disables the
	// change feed.
	amqpEnabled := false
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change feed", log.FieldError, err)
		} else {
			opts = append(opts, services.WithPublisher(client))
			amqpEnabled = true
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	store := services.NewRecordStore(slots, config.StorageKey, opts...)
	loaded := store.Load(ctx)

	f.logger.Info("Initialized backend",
		log.FieldBackend, config.Type.String(),
		log.FieldStorageKey, config.StorageKey,
		log.FieldCount, len(loaded),
		"amqp_enabled", amqpEnabled)

	return &BackendResult{
		Store:       store,
		Slots:       slots,
		Cleanup:     store.Close,
		AMQPEnabled: amqpEnabled,
	}, nil
}

func (f *DefaultFactory) openSlots(config Config) (storage.SlotStore, error) {
	switch config.Type {
	case SQLiteBackend:
		s, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Debug("Opened SQLite slot store", "db_path", config.SQLiteDBPath)
		return s, nil
	case FileBackend:
		s, err := storage.NewFileStore(config.DataDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
		f.logger.Debug("Opened file slot store", "data_directory", config.DataDirectory)
		return s, nil
	case MemoryBackend:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreateMirror returns the Google Sheets mirror when a spreadsheet is
// configured and the in-process mirror otherwise.
func (f *DefaultFactory) CreateMirror(ctx context.Context, config MirrorConfig) (MirrorTarget, error) {
	if config.SpreadsheetID == "" {
		f.logger.Info("No spreadsheet configured, mirroring in memory")
		return memory.New(), nil
	}

	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.SpreadsheetID,
		SheetName:       config.SheetName,
		CredentialsJSON: config.CredentialsJSON,
		CredentialsFile: config.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets mirror", "sheet", config.SheetName)
	return client, nil
}
