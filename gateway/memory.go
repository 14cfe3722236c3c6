package gateway

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/arloliu/sensorsim/record"
)

// Memory is an in-process Gateway with the same idempotence and ordering rules as the real stores.
// It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	history   []record.History
	historyID map[string]struct{}
	snapshots map[string]record.Snapshot
	closed    bool
}

var _ Gateway = (*Memory)(nil)

// NewMemory creates an empty Memory gateway.
func NewMemory() *Memory {
	return &Memory{
		historyID: make(map[string]struct{}),
		snapshots: make(map[string]record.Snapshot),
	}
}

// AppendHistory implements Gateway.
func (m *Memory) AppendHistory(ctx context.Context, records []record.History) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	for _, r := range records {
		if _, dup := m.historyID[r.ID]; dup {
			continue
		}
		m.historyID[r.ID] = struct{}{}
		m.history = append(m.history, r)
	}

	return nil
}

// UpsertSnapshots implements Gateway.
func (m *Memory) UpsertSnapshots(ctx context.Context, records []record.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	for _, r := range records {
		if cur, ok := m.snapshots[r.SensorID]; ok && cur.LastUpdated.After(r.LastUpdated) {
			continue
		}
		m.snapshots[r.SensorID] = r
	}

	return nil
}

// Close makes further writes fail with ErrClosed.
func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

// History returns all stored history records in insertion order.
func (m *Memory) History() []record.History {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.history)
}

// Snapshot returns the stored snapshot for sensorID.
func (m *Memory) Snapshot(sensorID string) (record.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.snapshots[sensorID]

	return s, ok
}

// Snapshots returns all stored snapshots sorted by sensor ID.
func (m *Memory) Snapshots() []record.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]record.Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })

	return out
}
