package sink

import "sync"

// Memory is the in-process tabular store. Rows append in arrival order per
// table; readers get a snapshot copy.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Row)}
}

func (m *Memory) Open(table string) (Writer, error) {
	return &memoryWriter{store: m, table: table}, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Rows(table string) []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.tables[table]
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}

func (m *Memory) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

type memoryWriter struct {
	store *Memory
	table string
}

func (w *memoryWriter) WriteRow(r Row) error {
	w.store.mu.Lock()
	w.store.tables[w.table] = append(w.store.tables[w.table], r)
	w.store.mu.Unlock()
	return nil
}

func (w *memoryWriter) Close() error { return nil }

func init() { Register("memory", func() Sink { return NewMemory() }) }
