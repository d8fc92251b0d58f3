package catalog

import "sync"

// TableID identifies a table inside one database.
type TableID struct {
	Database string
	Name     string
}

func (id TableID) String() string { return id.Database + "." + id.Name }

type Kind int

const (
	KindTable Kind = iota
	KindView
)

// Table is one catalog entry. Views carry a Target they materialize into;
// an unresolved view has a nil Target.
type Table struct {
	ID     TableID
	Kind   Kind
	Target *TableID
}

// Snapshot is the read-only catalog surface the streaming side depends on.
type Snapshot interface {
	// ListDirectDependents returns the tables continuously consuming from id.
	ListDirectDependents(id TableID) []TableID
	Lookup(id TableID) (Table, bool)
}

// Memory is a mutable in-process catalog satisfying Snapshot.
type Memory struct {
	mu         sync.RWMutex
	tables     map[TableID]Table
	dependents map[TableID][]TableID
}

func NewMemory() *Memory {
	return &Memory{
		tables:     make(map[TableID]Table),
		dependents: make(map[TableID][]TableID),
	}
}

func (m *Memory) AddTable(id TableID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[id] = Table{ID: id, Kind: KindTable}
}

// AddView registers a view consuming `from` and materializing into `target`.
// A nil target registers an unresolved view.
func (m *Memory) AddView(id, from TableID, target *TableID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[id] = Table{ID: id, Kind: KindView, Target: target}
	m.dependents[from] = append(m.dependents[from], id)
}

func (m *Memory) Drop(id TableID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, id)
}

func (m *Memory) ListDirectDependents(id TableID) []TableID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	deps := m.dependents[id]
	out := make([]TableID, len(deps))
	copy(out, deps)
	return out
}

func (m *Memory) Lookup(id TableID) (Table, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[id]
	return t, ok
}
