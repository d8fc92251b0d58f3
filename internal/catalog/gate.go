package catalog

// Gate answers whether a table's downstream consumers are in a state to
// receive data. The streaming scheduler checks it before every cycle.
type Gate struct {
	snap Snapshot
}

func NewGate(snap Snapshot) *Gate { return &Gate{snap: snap} }

// DependentCount reports how many tables directly consume from id. Zero means
// there is nothing to feed and streaming can stay suppressed.
func (g *Gate) DependentCount(id TableID) int {
	return len(g.snap.ListDirectDependents(id))
}

// Ready reports true iff every dependent of id exists, every view among them
// resolves to a target, and each dependent is itself ready, recursively.
// A table with no dependents is ready.
func (g *Gate) Ready(id TableID) bool {
	return g.ready(id, map[TableID]bool{id: true})
}

func (g *Gate) ready(id TableID, visited map[TableID]bool) bool {
	for _, dep := range g.snap.ListDirectDependents(id) {
		table, ok := g.snap.Lookup(dep)
		if !ok {
			return false
		}
		if table.Kind == KindView && table.Target == nil {
			return false
		}
		// A dependency cycle would recurse forever on a misconfigured
		// catalog; a revisited node is treated as settled instead.
		if visited[dep] {
			continue
		}
		visited[dep] = true
		if !g.ready(dep, visited) {
			return false
		}
	}
	return true
}
