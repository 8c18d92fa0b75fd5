package graph

import (
	"fmt"
	"slices"

	"github.com/syssam/relgraph/identity"
)

// Unload dematerializes id. Every related edge is told that id is going
// away (see NotifyInverseOfDematerialization), sync edges of id are
// cleared and marked stale, and implicit edges of id are dropped. The
// references pointing at id through those implicit edges are removed only
// when id is releasable.
func (g *Graph) Unload(id *identity.Identifier) error {
	return g.batch(func() error {
		g.unload(id)
		return nil
	})
}

// Remove unloads id and drops all of its edges and pending notifications.
func (g *Graph) Remove(id *identity.Identifier) error {
	return g.batch(func() error {
		g.unload(id)
		g.dropNode(id)
		g.batcher.Disconnect(id)
		return nil
	})
}

func (g *Graph) unload(id *identity.Identifier) {
	for _, e := range g.Edges(id) {
		if _, ok := e.(*Implicit); ok {
			if g.IsReleasable(id) {
				g.removeCompletelyFromInverse(e)
			}
			g.dropEdge(id, e.Definition().Key)
			continue
		}
		def := e.Definition()
		if def.InverseIsImplicit {
			continue
		}
		for _, related := range slices.Collect(ForAllRelatedIdentifiers(e)) {
			NotifyInverseOfDematerialization(g, related, def.Inverse, id)
		}
		if !def.InverseIsAsync {
			StateOf(e).IsStale = true
			switch e := e.(type) {
			case *BelongsTo:
				e.local, e.remote = nil, nil
			case *HasMany:
				e.clear()
			}
			g.notifyChange(e)
		}
	}
}

func (g *Graph) deleteRecord(id *identity.Identifier) error {
	if id == nil {
		return fmt.Errorf("graph: delete record: nil identifier")
	}
	for _, e := range g.Edges(id) {
		g.removeCompletelyFromInverse(e)
	}
	g.dropNode(id)
	return nil
}

// removeCompletelyFromInverse strips the owner of e from every related
// edge and empties e.
func (g *Graph) removeCompletelyFromInverse(e Edge) {
	owner, key := e.Identifier(), e.Definition().Inverse
	for _, related := range slices.Collect(ForAllRelatedIdentifiers(e)) {
		if g.Has(related, key) {
			RemoveIdentifierCompletelyFromRelationship(g, g.edge(related, key), owner)
		}
	}
	switch e := e.(type) {
	case *BelongsTo:
		changed := e.local != nil
		e.local, e.remote = nil, nil
		if changed {
			g.notifyChange(e)
		}
	case *HasMany:
		changed := e.current.len() > 0
		e.clear()
		if changed {
			g.notifyChange(e)
		}
	case *Implicit:
		e.clear()
	}
}
