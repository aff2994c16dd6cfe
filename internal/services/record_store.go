package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"termosifoni/internal/amqp"
	"termosifoni/internal/core"
	"termosifoni/internal/log"
	"termosifoni/internal/storage"
)

// DefaultStorageKey is the slot holding the readings collection.
const DefaultStorageKey = "heat-meters-v1"

// Publisher announces collection changes to other processes.
type Publisher interface {
	PublishReadingsChanged(ctx context.Context, op string, months []string, count int) error
}

// RecordStore owns the readings collection. It serializes mutations and
// rewrites the whole slot after each one. Every mutation starts from a fresh
// read of the slot, so writes made by another process sharing it (the
// letture CLI) are kept; the last good copy is cached for reads that hit a
// storage error.
type RecordStore struct {
	mu        sync.Mutex
	slots     storage.SlotStore
	key       string
	publisher Publisher
	logger    *log.Logger
	events    *log.StructuredLogger

	records core.Collection
}

type Option func(*RecordStore)

// WithPublisher enables change notifications. A nil publisher is ignored.
func WithPublisher(p Publisher) Option {
	return func(s *RecordStore) {
		s.publisher = p
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *RecordStore) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentStore)
		}
	}
}

func NewRecordStore(slots storage.SlotStore, key string, opts ...Option) *RecordStore {
	if key == "" {
		key = DefaultStorageKey
	}
	s := &RecordStore{
		slots:   slots,
		key:     key,
		logger:  log.Default(log.ComponentStore),
		records: core.Collection{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// errMalformedSlot marks a slot whose contents do not decode.
var errMalformedSlot = errors.New("stored readings are malformed")

// Load reads the slot into memory. A missing, unreadable or malformed slot
// yields an empty collection; the problem is logged, never returned.
func (s *RecordStore) Load(ctx context.Context) core.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "Failed to read readings slot, starting empty",
			log.FieldStorageKey, s.key, log.FieldError, err)
		s.records = core.Collection{}
	}
	return s.records.Clone()
}

// LoadStrict is Load for callers that must not take a storage failure for an
// empty collection: read and decode errors are returned.
func (s *RecordStore) LoadStrict(ctx context.Context) (core.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	s.records = c
	return c.Clone(), nil
}

func (s *RecordStore) read(ctx context.Context) (core.Collection, error) {
	data, found, err := s.slots.Load(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read readings: %w", err)
	}
	if !found || len(data) == 0 {
		return core.Collection{}, nil
	}
	c, err := core.DecodeCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedSlot, err)
	}
	s.logger.DebugContext(ctx, "Loaded readings", log.FieldCount, len(c))
	return c, nil
}

// refresh replaces the cached collection with the slot contents. A malformed
// slot reads as empty; a storage error leaves the cache alone and is
// returned. Must hold mu.
func (s *RecordStore) refresh(ctx context.Context) error {
	c, err := s.read(ctx)
	if errors.Is(err, errMalformedSlot) {
		s.logger.WarnContext(ctx, "Stored readings are malformed, starting empty",
			log.FieldStorageKey, s.key, log.FieldError, err)
		c, err = core.Collection{}, nil
	}
	if err != nil {
		return err
	}
	s.records = c
	return nil
}

// Save overwrites the slot with c and makes it the current collection.
func (s *RecordStore) Save(ctx context.Context, c core.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx, c.Clone())
}

func (s *RecordStore) persist(ctx context.Context, c core.Collection) error {
	data, err := core.EncodeCollection(c)
	if err != nil {
		return err
	}
	if err := s.slots.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("save readings: %w", err)
	}
	s.records = c
	return nil
}

// Snapshot returns a copy of the current collection. When the slot cannot be
// read the last good copy is returned.
func (s *RecordStore) Snapshot(ctx context.Context) core.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "Failed to read readings slot, serving cached copy",
			log.FieldStorageKey, s.key, log.FieldError, err)
	}
	return s.records.Clone()
}

// Upsert inserts r or replaces the record for the same month.
func (s *RecordStore) Upsert(ctx context.Context, r core.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		return err
	}
	next := s.records.Clone()
	next.Upsert(r)
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.changed(ctx, amqp.OpUpsert, []string{r.Month}, len(next))
	return nil
}

// Remove deletes the record for month. Removing an unknown month still
// rewrites the slot, matching a save after every mutation.
func (s *RecordStore) Remove(ctx context.Context, month string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		return err
	}
	next := s.records.Clone()
	next.Remove(month)
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.changed(ctx, amqp.OpDelete, []string{month}, len(next))
	return nil
}

// ResetAll empties the collection and deletes the slot.
func (s *RecordStore) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.slots.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("reset readings: %w", err)
	}
	s.records = core.Collection{}
	s.changed(ctx, amqp.OpReset, nil, 0)
	return nil
}

// ImportMerge upserts every imported record. Months not present in in are
// left untouched.
func (s *RecordStore) ImportMerge(ctx context.Context, in core.Collection) (core.MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		return core.MergeResult{}, err
	}
	next := s.records.Clone()
	res := next.Merge(in)
	if err := s.persist(ctx, next); err != nil {
		return core.MergeResult{}, err
	}
	s.changed(ctx, amqp.OpImport, in.Months(), len(next))
	return res, nil
}

// Derive computes the derived view of the current collection.
func (s *RecordStore) Derive(ctx context.Context) core.Derivation {
	return core.Derive(s.Snapshot(ctx))
}

// Ping reports whether the slot store is reachable.
func (s *RecordStore) Ping(ctx context.Context) error {
	if p, ok := s.slots.(storage.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// changed logs the mutation and publishes it. Must hold mu.
func (s *RecordStore) changed(ctx context.Context, op string, months []string, count int) {
	s.events.LogChange(ctx, op, months, count)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReadingsChanged(ctx, op, months, count); err != nil {
		level := s.logger.ErrorContext
		if errors.Is(err, amqp.ErrCircuitOpen) {
			level = s.logger.WarnContext
		}
		level(ctx, "Failed to publish readings change",
			log.FieldOperation, op, log.FieldError, err)
	}
}

// Close releases the slot store and publisher when they hold resources.
func (s *RecordStore) Close() error {
	var errs []error
	if c, ok := s.slots.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
