package graph

import "github.com/syssam/relgraph/identity"

// The functions below change one side of a relationship and then the
// inverse side. Each returns early when its own side already holds the
// requested value, which is what ends the mutual recursion.

// addLocal makes member part of the local state of owner.key.
// For a hasMany, index positions the new member; -1 appends.
func (g *Graph) addLocal(owner *identity.Identifier, key string, member *identity.Identifier, index int) {
	switch e := g.edge(owner, key).(type) {
	case *HasMany:
		if !e.current.insert(member, index) {
			return
		}
		g.notifyChange(e)
		g.addLocal(member, e.def.Inverse, owner, -1)
	case *BelongsTo:
		old := e.local
		if old == member {
			return
		}
		e.local = member
		g.notifyChange(e)
		if old != nil {
			g.removeLocal(old, e.def.Inverse, owner)
		}
		g.addLocal(member, e.def.Inverse, owner, -1)
	case *Implicit:
		if !e.members.add(member) {
			return
		}
		g.addLocal(member, e.def.Inverse, owner, -1)
	}
}

// removeLocal drops member from the local state of owner.key.
func (g *Graph) removeLocal(owner *identity.Identifier, key string, member *identity.Identifier) {
	switch e := g.edge(owner, key).(type) {
	case *HasMany:
		if !e.current.remove(member) {
			return
		}
		g.notifyChange(e)
	case *BelongsTo:
		if e.local != member {
			return
		}
		e.local = nil
		g.notifyChange(e)
	case *Implicit:
		if !e.members.remove(member) {
			return
		}
	}
	g.removeLocal(member, g.edge(owner, key).Definition().Inverse, owner)
}

// addCanonical makes member part of the canonical state of owner.key.
func (g *Graph) addCanonical(owner *identity.Identifier, key string, member *identity.Identifier) {
	switch e := g.edge(owner, key).(type) {
	case *HasMany:
		if !e.canonical.add(member) {
			return
		}
		receivedCanonical(e.State(), false)
		g.addCanonical(member, e.def.Inverse, owner)
	case *BelongsTo:
		old := e.remote
		if old == member {
			return
		}
		e.remote = member
		receivedCanonical(e.State(), false)
		if old != nil {
			g.removeCanonical(old, e.def.Inverse, owner)
		}
		g.addCanonical(member, e.def.Inverse, owner)
	case *Implicit:
		if !e.canonicalMembers.add(member) {
			return
		}
		g.addCanonical(member, e.def.Inverse, owner)
	}
}

// removeCanonical drops member from the canonical state of owner.key.
func (g *Graph) removeCanonical(owner *identity.Identifier, key string, member *identity.Identifier) {
	e := g.edge(owner, key)
	switch e := e.(type) {
	case *HasMany:
		if !e.canonical.remove(member) {
			return
		}
		if st := e.State(); st.HasReceivedData {
			st.IsEmpty = e.canonical.len() == 0
		}
	case *BelongsTo:
		if e.remote != member {
			return
		}
		e.remote = nil
		receivedCanonical(e.State(), true)
	case *Implicit:
		if !e.canonicalMembers.remove(member) {
			return
		}
	}
	g.removeCanonical(member, e.Definition().Inverse, owner)
}

// receivedCanonical records that canonical data for an edge is known,
// which holds for an inverse written by a push on the other side.
func receivedCanonical(st *State, empty bool) {
	st.HasReceivedData = true
	st.IsEmpty = empty
}
