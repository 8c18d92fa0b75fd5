package graph

import (
	"iter"

	"github.com/syssam/relgraph/identity"
)

// ForAllRelatedIdentifiers yields every identifier referenced by e, local
// state first, then canonical members not seen yet. Identifiers are
// deduplicated by lid.
//
// The sequence reads the live edge; collect it before mutating the graph.
func ForAllRelatedIdentifiers(e Edge) iter.Seq[*identity.Identifier] {
	return func(yield func(*identity.Identifier) bool) {
		seen := make(map[string]struct{})
		emit := func(ids ...*identity.Identifier) bool {
			for _, id := range ids {
				if id == nil {
					continue
				}
				if _, ok := seen[id.LID]; ok {
					continue
				}
				seen[id.LID] = struct{}{}
				if !yield(id) {
					return false
				}
			}
			return true
		}
		switch e := e.(type) {
		case *BelongsTo:
			_ = emit(e.local, e.remote)
		case *HasMany:
			_ = emit(e.current.list...) && emit(e.canonical.list...)
		case *Implicit:
			_ = emit(e.members.list...) && emit(e.canonicalMembers.list...)
		}
	}
}

// NotifyInverseOfDematerialization tells the edge inverseID.inverseKey that
// id is being unloaded. A belongsTo that was already pointed at another
// record locally is left alone.
func NotifyInverseOfDematerialization(g *Graph, inverseID *identity.Identifier, inverseKey string, id *identity.Identifier) {
	if inverseID == nil || !g.Has(inverseID, inverseKey) {
		return
	}
	switch e := g.edge(inverseID, inverseKey).(type) {
	case *BelongsTo:
		if e.local == nil || e.local == id {
			g.removeDematerializedInverse(e, id)
		}
	case *HasMany:
		g.removeDematerializedInverse(e, id)
	case *Implicit:
		g.log.Error("graph: dematerialization reached an implicit relationship",
			"type", inverseID.Type, "lid", inverseID.LID, "field", inverseKey)
	}
}

// removeDematerializedInverse applies the dematerialization policy: a sync
// relationship, or a member that was never persisted, loses the member
// for good; an async relationship keeps it and is flagged.
func (g *Graph) removeDematerializedInverse(e Edge, id *identity.Identifier) {
	hard := !e.Definition().IsAsync || g.isNew(id)
	switch e := e.(type) {
	case *HasMany:
		if hard {
			RemoveIdentifierCompletelyFromRelationship(g, e, id)
		} else {
			e.State().HasDematerializedInverse = true
		}
	case *BelongsTo:
		if hard {
			if e.local == id {
				e.local = nil
			}
			if e.remote == id {
				e.remote = nil
				st := e.State()
				st.HasReceivedData = true
				st.IsEmpty = true
			}
		} else {
			e.State().HasDematerializedInverse = true
		}
	}
	g.notifyChange(e)
}

// RemoveIdentifierCompletelyFromRelationship strips id from both the local
// and the canonical state of e, whatever the relationship's async policy.
// Only e is changed; the caller owns the other side.
func RemoveIdentifierCompletelyFromRelationship(g *Graph, e Edge, id *identity.Identifier) {
	switch e := e.(type) {
	case *BelongsTo:
		if e.remote == id {
			e.remote = nil
		}
		if e.local == id {
			e.local = nil
			g.notifyChange(e)
		}
	case *HasMany:
		e.canonical.remove(id)
		if e.current.remove(id) {
			g.notifyChange(e)
		}
	case *Implicit:
		e.canonicalMembers.remove(id)
		e.members.remove(id)
	}
}
