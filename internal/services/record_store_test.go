package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"termosifoni/internal/amqp"
	"termosifoni/internal/core"
	"termosifoni/internal/storage"
)

type publishCall struct {
	op     string
	months []string
	count  int
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (p *fakePublisher) PublishReadingsChanged(_ context.Context, op string, months []string, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{op, months, count})
	return p.err
}

// brokenSlots fails every write.
type brokenSlots struct{ storage.SlotStore }

func (brokenSlots) Save(context.Context, string, []byte) error { return errors.New("disk full") }
func (brokenSlots) Delete(context.Context, string) error       { return errors.New("disk full") }

func rec(month string, vals ...float64) core.Record {
	r := core.Record{Month: month}
	copy(r.Readings[:], vals)
	return r
}

func TestLoadMissingOrMalformedSlot(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemoryStore()
	s := NewRecordStore(slots, "")

	if c := s.Load(ctx); len(c) != 0 {
		t.Fatalf("missing slot should load empty, got %+v", c)
	}

	_ = slots.Save(ctx, DefaultStorageKey, []byte("{not json"))
	if c := s.Load(ctx); len(c) != 0 {
		t.Fatalf("malformed slot should load empty, got %+v", c)
	}
}

func TestUpsertPersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemoryStore()
	pub := &fakePublisher{}
	s := NewRecordStore(slots, "", WithPublisher(pub))

	if err := s.Upsert(ctx, rec("2025-01", 1, 2, 3, 4, 5, 6, 7)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert(ctx, rec("2025-01", 9)); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if got := s.Snapshot(ctx); len(got) != 1 || got[0].Readings[0] != 9 {
		t.Fatalf("upsert should replace: %+v", got)
	}

	// A fresh store over the same slot sees the persisted collection.
	again := NewRecordStore(slots, DefaultStorageKey)
	if c := again.Load(ctx); len(c) != 1 || c[0].Readings[0] != 9 {
		t.Fatalf("not persisted: %+v", c)
	}

	if len(pub.calls) != 2 || pub.calls[0].op != amqp.OpUpsert || pub.calls[1].count != 1 {
		t.Fatalf("unexpected publish calls: %+v", pub.calls)
	}
}

func TestUpsertRejectsInvalidMonth(t *testing.T) {
	pub := &fakePublisher{}
	s := NewRecordStore(storage.NewMemoryStore(), "", WithPublisher(pub))
	if err := s.Upsert(context.Background(), rec("2025-13")); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	if len(pub.calls) != 0 {
		t.Fatalf("nothing should be published: %+v", pub.calls)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore(storage.NewMemoryStore(), "")
	_ = s.Upsert(ctx, rec("2025-01", 1))
	_ = s.Upsert(ctx, rec("2025-02", 2))

	if err := s.Remove(ctx, "2025-01"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, "1999-01"); err != nil {
		t.Fatalf("removing a missing month should be a no-op: %v", err)
	}
	if got := s.Snapshot(ctx).Months(); len(got) != 1 || got[0] != "2025-02" {
		t.Fatalf("unexpected months: %v", got)
	}
}

func TestResetAllDeletesSlot(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemoryStore()
	pub := &fakePublisher{}
	s := NewRecordStore(slots, "", WithPublisher(pub))
	_ = s.Upsert(ctx, rec("2025-01", 1))

	if err := s.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	if len(s.Snapshot(ctx)) != 0 {
		t.Fatal("collection not emptied")
	}
	if _, found, _ := slots.Load(ctx, DefaultStorageKey); found {
		t.Fatal("slot should be deleted")
	}
	if last := pub.calls[len(pub.calls)-1]; last.op != amqp.OpReset || last.count != 0 {
		t.Fatalf("unexpected reset event: %+v", last)
	}
}

func TestImportMerge(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore(storage.NewMemoryStore(), "")
	_ = s.Upsert(ctx, rec("2025-01", 1))
	_ = s.Upsert(ctx, rec("2025-03", 3))

	res, err := s.ImportMerge(ctx, core.Collection{rec("2025-03", 5, 5, 5, 5, 5, 5, 5), rec("2025-04", 4)})
	if err != nil {
		t.Fatalf("ImportMerge: %v", err)
	}
	if len(res.Added) != 1 || len(res.Replaced) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := s.Snapshot(ctx)
	if len(got) != 3 {
		t.Fatalf("expected 3 months, got %v", got.Months())
	}
	if r, _ := got.Find("2025-01"); r.Readings[0] != 1 {
		t.Fatal("month absent from the import must be untouched")
	}
	if r, _ := got.Find("2025-03"); r.Readings != (core.Readings{5, 5, 5, 5, 5, 5, 5}) {
		t.Fatalf("imported month not replaced: %v", r.Readings)
	}
}

func TestSaveFailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	s := NewRecordStore(brokenSlots{storage.NewMemoryStore()}, "", WithPublisher(pub))

	if err := s.Upsert(ctx, rec("2025-01", 1)); err == nil {
		t.Fatal("expected save error")
	}
	if len(s.Snapshot(ctx)) != 0 {
		t.Fatal("failed save must not change the in-memory collection")
	}
	if err := s.ResetAll(ctx); err == nil {
		t.Fatal("expected delete error")
	}
	if len(pub.calls) != 0 {
		t.Fatalf("failed mutations must not publish: %+v", pub.calls)
	}
}

func TestPublishFailureIsNotReturned(t *testing.T) {
	pub := &fakePublisher{err: amqp.ErrCircuitOpen}
	s := NewRecordStore(storage.NewMemoryStore(), "", WithPublisher(pub))
	if err := s.Upsert(context.Background(), rec("2025-01", 1)); err != nil {
		t.Fatalf("publish errors must be swallowed, got %v", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore(storage.NewMemoryStore(), "")
	_ = s.Upsert(ctx, rec("2025-01", 1))

	snap := s.Snapshot(ctx)
	snap[0].Readings[0] = 100
	if s.Snapshot(ctx)[0].Readings[0] != 1 {
		t.Fatal("snapshot mutation leaked into the store")
	}
}

func TestConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore(storage.NewMemoryStore(), "")

	months := []string{"2025-01", "2025-02", "2025-03", "2025-04", "2025-05", "2025-06"}
	var wg sync.WaitGroup
	for _, m := range months {
		wg.Add(1)
		go func(m string) {
			defer wg.Done()
			_ = s.Upsert(ctx, rec(m, 1))
		}(m)
	}
	wg.Wait()

	if got := len(s.Load(ctx)); got != len(months) {
		t.Fatalf("lost writes: %d of %d months persisted", got, len(months))
	}
}

func TestSQLiteBackedStore(t *testing.T) {
	ctx := context.Background()
	slots, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "termosifoni.db"))
	if err != nil {
		t.Fatal(err)
	}
	s := NewRecordStore(slots, "")
	defer s.Close()

	_ = s.Upsert(ctx, rec("2025-02", 2, 3, 4, 5, 6, 7, 8))
	_ = s.Upsert(ctx, rec("2025-01", 1, 2, 3, 4, 5, 6, 7))

	d := s.Derive(ctx)
	if d.GrandTotal != 35 {
		t.Fatalf("grand total = %v, want 35", d.GrandTotal)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

// unreadableSlots fails every read.
type unreadableSlots struct{ storage.SlotStore }

func (unreadableSlots) Load(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("database is locked")
}

func TestMutationsKeepWritesFromAnotherProcess(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemoryStore()
	server := NewRecordStore(slots, "")
	cli := NewRecordStore(slots, "")

	if err := server.Upsert(ctx, rec("2025-01", 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := cli.ImportMerge(ctx, core.Collection{rec("2025-02", 2)}); err != nil {
		t.Fatal(err)
	}
	if got := server.Snapshot(ctx).Months(); len(got) != 2 {
		t.Fatalf("snapshot should see the other writer's months, got %v", got)
	}
	if err := server.Upsert(ctx, rec("2025-03", 3)); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(cli.Load(ctx).Months(), ","); got != "2025-01,2025-02,2025-03" {
		t.Fatalf("imported month lost: %s", got)
	}

	if err := cli.ResetAll(ctx); err != nil {
		t.Fatal(err)
	}
	_ = server.Upsert(ctx, rec("2025-04", 4))
	if got := server.Snapshot(ctx).Months(); len(got) != 1 || got[0] != "2025-04" {
		t.Fatalf("reset by another writer should stick, got %v", got)
	}
}

func TestLoadStrict(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemoryStore()
	s := NewRecordStore(slots, "")

	if c, err := s.LoadStrict(ctx); err != nil || len(c) != 0 {
		t.Fatalf("missing slot: %v %v", c, err)
	}
	_ = s.Upsert(ctx, rec("2025-01", 1))
	if c, err := s.LoadStrict(ctx); err != nil || len(c) != 1 {
		t.Fatalf("LoadStrict: %v %v", c, err)
	}

	_ = slots.Save(ctx, DefaultStorageKey, []byte("{not json"))
	if _, err := s.LoadStrict(ctx); !errors.Is(err, errMalformedSlot) {
		t.Fatalf("expected malformed error, got %v", err)
	}

	broken := NewRecordStore(unreadableSlots{slots}, "")
	if _, err := broken.LoadStrict(ctx); err == nil {
		t.Fatal("read error must be returned")
	}
	if c := broken.Load(ctx); len(c) != 0 {
		t.Fatalf("Load still falls back to empty, got %+v", c)
	}
}

func TestMutationFailsWhenSlotUnreadable(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemoryStore()
	seed := NewRecordStore(slots, "")
	_ = seed.Upsert(ctx, rec("2025-01", 1))

	pub := &fakePublisher{}
	s := NewRecordStore(unreadableSlots{slots}, "", WithPublisher(pub))
	if err := s.Upsert(ctx, rec("2025-02", 2)); err == nil {
		t.Fatal("expected read error")
	}
	if got := seed.Load(ctx).Months(); len(got) != 1 || got[0] != "2025-01" {
		t.Fatalf("slot must not be overwritten, got %v", got)
	}
	if len(pub.calls) != 0 {
		t.Fatalf("nothing should be published: %+v", pub.calls)
	}
}
