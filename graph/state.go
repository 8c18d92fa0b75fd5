package graph

import (
	"slices"

	"github.com/syssam/relgraph/identity"
)

// State holds the lifecycle flags of a belongsTo or hasMany edge.
// The fetch layer may toggle HasFailedLoadAttempt and ShouldForceReload;
// everything else is maintained by graph operations.
type State struct {
	// IsEmpty is true until data with at least one member is received.
	IsEmpty bool
	// HasReceivedData is true once canonical data (possibly empty) arrived.
	HasReceivedData bool
	// IsStale is set when the related link changed after data was received.
	IsStale bool
	// HasFailedLoadAttempt is set when the last fetch failed.
	HasFailedLoadAttempt bool
	// ShouldForceReload is set to bypass cached data on the next fetch.
	ShouldForceReload bool
	// HasDematerializedInverse is set when an async member was unloaded
	// while still referenced.
	HasDematerializedInverse bool
}

func newState() *State {
	return &State{IsEmpty: true}
}

// memberList is an insertion-ordered set of identifiers. The set answers
// membership and the list keeps order; both always hold the same elements.
type memberList struct {
	set  map[*identity.Identifier]struct{}
	list []*identity.Identifier
}

func newMemberList() memberList {
	return memberList{set: make(map[*identity.Identifier]struct{})}
}

func (m *memberList) has(id *identity.Identifier) bool {
	_, ok := m.set[id]
	return ok
}

func (m *memberList) len() int { return len(m.list) }

// add appends id and reports whether it was absent.
func (m *memberList) add(id *identity.Identifier) bool {
	return m.insert(id, -1)
}

// insert places id at index i, or appends it when i is out of range.
func (m *memberList) insert(id *identity.Identifier, i int) bool {
	if m.has(id) {
		return false
	}
	m.set[id] = struct{}{}
	if i < 0 || i >= len(m.list) {
		m.list = append(m.list, id)
	} else {
		m.list = slices.Insert(m.list, i, id)
	}
	return true
}

// remove drops id and reports whether it was present.
func (m *memberList) remove(id *identity.Identifier) bool {
	if !m.has(id) {
		return false
	}
	delete(m.set, id)
	if i := slices.Index(m.list, id); i >= 0 {
		m.list = slices.Delete(m.list, i, i+1)
	}
	return true
}

func (m *memberList) slice() []*identity.Identifier {
	return slices.Clone(m.list)
}

func (m *memberList) clear() {
	clear(m.set)
	m.list = nil
}

// reorder sorts the members by their position in order. Members missing
// from order keep their relative order after the others. It reports
// whether the order changed.
func (m *memberList) reorder(order []*identity.Identifier) bool {
	next := make([]*identity.Identifier, 0, len(m.list))
	placed := make(map[*identity.Identifier]struct{}, len(m.list))
	for _, id := range order {
		if _, dup := placed[id]; dup || !m.has(id) {
			continue
		}
		placed[id] = struct{}{}
		next = append(next, id)
	}
	for _, id := range m.list {
		if _, ok := placed[id]; !ok {
			next = append(next, id)
		}
	}
	changed := !slices.Equal(next, m.list)
	m.list = next
	return changed
}
