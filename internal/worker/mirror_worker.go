package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"termosifoni/internal/amqp"
	"termosifoni/internal/core"
	"termosifoni/internal/log"
	"termosifoni/internal/sheets"
)

// Loader reads the current readings collection from shared storage. A read
// failure must surface as an error, not as an empty collection.
type Loader interface {
	LoadStrict(ctx context.Context) (core.Collection, error)
}

// Consumer delivers change notifications until ctx is done.
type Consumer interface {
	ConsumeReadingsChanged(ctx context.Context, handler func(context.Context, *amqp.ReadingsChangedMessage) error) error
}

// MirrorWorker keeps a sheets.Mirror in step with the stored readings. It
// mirrors on every change notification and, as a backstop for lost
// messages, on a fixed interval.
type MirrorWorker struct {
	source   Loader
	mirror   sheets.Mirror
	interval time.Duration
	logger   *log.Logger

	mu       sync.Mutex
	lastRef  string
	lastSync time.Time
}

func NewMirrorWorker(source Loader, mirror sheets.Mirror, interval time.Duration, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &MirrorWorker{
		source:   source,
		mirror:   mirror,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange mirrors the collection in response to a change message.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.ReadingsChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing readings change",
		"message_id", msg.ID,
		log.FieldOperation, msg.Op,
		log.FieldMonths, msg.Months,
		log.FieldCount, msg.Count)
	return w.Sync(ctx)
}

// Sync reloads the collection and writes the derived table to the mirror.
// When the collection cannot be read the mirror is left as it is. Calls are
// serialized.
func (w *MirrorWorker) Sync(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	c, err := w.source.LoadStrict(ctx)
	if err != nil {
		return fmt.Errorf("load readings, mirror unchanged: %w", err)
	}
	ref, err := w.mirror.MirrorReadings(ctx, core.Derive(c))
	if err != nil {
		return fmt.Errorf("mirror readings: %w", err)
	}
	w.lastRef = ref
	w.lastSync = time.Now()
	w.logger.InfoContext(ctx, "Mirrored readings",
		log.FieldCount, len(c),
		log.FieldSheetsRef, ref)
	return nil
}

// LastSync reports the reference and time of the last successful mirror.
func (w *MirrorWorker) LastSync() (string, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRef, w.lastSync
}

// Run mirrors once, then consumes notifications (when consumer is non-nil)
// and reconciles on the interval until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context, consumer Consumer) error {
	g, gctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeReadingsChanged(gctx, w.HandleChange)
		})
	}
	g.Go(func() error {
		return w.reconcile(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *MirrorWorker) reconcile(ctx context.Context) error {
	if err := w.Sync(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup mirror failed", log.FieldError, err)
	}
	if w.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sync(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic mirror failed", log.FieldError, err)
			}
		}
	}
}
