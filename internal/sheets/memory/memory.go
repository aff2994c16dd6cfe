// Package memory provides an in-process Mirror, used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"termosifoni/internal/core"
	ports "termosifoni/internal/sheets"
)

type Mirror struct {
	mu     sync.Mutex
	rows   [][]any
	last   core.Collection
	writes int
}

var (
	_ ports.Mirror       = (*Mirror)(nil)
	_ ports.MirrorReader = (*Mirror)(nil)
)

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) MirrorReadings(_ context.Context, d core.Derivation) (string, error) {
	rows := ports.Table(d)
	last := make(core.Collection, len(d.Rows))
	for i, r := range d.Rows {
		last[i] = r.Record
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
	m.last = last
	m.writes++
	return fmt.Sprintf("mem:%d", m.writes), nil
}

func (m *Mirror) ReadReadings(_ context.Context) (core.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last.Clone(), nil
}

// Rows returns the last table written.
func (m *Mirror) Rows() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]any(nil), m.rows...)
}

// Writes counts MirrorReadings calls.
func (m *Mirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
