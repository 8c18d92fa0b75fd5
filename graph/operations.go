package graph

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/identity"
	"github.com/syssam/relgraph/jsonapi"
)

// Operation is a relationship mutation. It is one of UpdateRelationship,
// ReplaceRelatedRecord, ReplaceRelatedRecords, AddToRelatedRecords,
// RemoveFromRelatedRecords or DeleteRecord.
type Operation interface {
	op() string
}

// UpdateRelationship pushes a JSON:API relationship object as canonical state.
type UpdateRelationship struct {
	Record *identity.Identifier
	Field  string
	Value  jsonapi.Relationship
}

// ReplaceRelatedRecord sets the value of a belongsTo relationship.
type ReplaceRelatedRecord struct {
	Record *identity.Identifier
	Field  string
	Value  *identity.Identifier // nil clears the relationship
}

// ReplaceRelatedRecords sets the members of a hasMany relationship.
type ReplaceRelatedRecords struct {
	Record *identity.Identifier
	Field  string
	Value  []*identity.Identifier
}

// AddToRelatedRecords adds members to a hasMany relationship.
type AddToRelatedRecords struct {
	Record *identity.Identifier
	Field  string
	Value  []*identity.Identifier
	// Index positions the first added member in the local state; members
	// are appended when Index is out of range. Use -1 to append.
	Index int
}

// RemoveFromRelatedRecords removes members from a hasMany relationship.
type RemoveFromRelatedRecords struct {
	Record *identity.Identifier
	Field  string
	Value  []*identity.Identifier
}

// DeleteRecord removes a record from every relationship it takes part in,
// canonical state included. It is used for deleted records and for
// rolled back records that were never persisted.
type DeleteRecord struct {
	Record *identity.Identifier
}

func (UpdateRelationship) op() string       { return "updateRelationship" }
func (ReplaceRelatedRecord) op() string     { return "replaceRelatedRecord" }
func (ReplaceRelatedRecords) op() string    { return "replaceRelatedRecords" }
func (AddToRelatedRecords) op() string      { return "addToRelatedRecords" }
func (RemoveFromRelatedRecords) op() string { return "removeFromRelatedRecords" }
func (DeleteRecord) op() string             { return "deleteRecord" }

// Push applies an operation received from the source of truth. Canonical
// state is replaced and the local state is derived again from it, keeping
// pending local changes as described in the package documentation.
// An invalid operation returns an error and leaves the graph unchanged.
func (g *Graph) Push(op Operation) error {
	return g.batch(func() error {
		switch op := op.(type) {
		case UpdateRelationship:
			return g.updateRelationship(op)
		case *UpdateRelationship:
			return g.updateRelationship(*op)
		case ReplaceRelatedRecord:
			return g.pushRecord(op.Record, op.Field, op.Value)
		case ReplaceRelatedRecords:
			return g.pushRecords(op.Record, op.Field, op.Value, replaceMembers)
		case AddToRelatedRecords:
			return g.pushRecords(op.Record, op.Field, op.Value, addMembers)
		case RemoveFromRelatedRecords:
			return g.pushRecords(op.Record, op.Field, op.Value, removeMembers)
		case DeleteRecord:
			return g.deleteRecord(op.Record)
		default:
			return fmt.Errorf("graph: push: unsupported operation %T", op)
		}
	})
}

// Update applies a local, not yet committed, operation.
// An invalid operation returns an error and leaves the graph unchanged.
func (g *Graph) Update(op Operation) error {
	return g.batch(func() error {
		switch op := op.(type) {
		case ReplaceRelatedRecord:
			return g.replaceRecordLocal(op)
		case ReplaceRelatedRecords:
			return g.replaceRecordsLocal(op)
		case AddToRelatedRecords:
			return g.addRecordsLocal(op)
		case RemoveFromRelatedRecords:
			return g.removeRecordsLocal(op)
		case DeleteRecord:
			return g.deleteRecord(op.Record)
		case UpdateRelationship, *UpdateRelationship:
			return fmt.Errorf("graph: update: %s is a canonical operation, use Push", op.op())
		default:
			return fmt.Errorf("graph: update: unsupported operation %T", op)
		}
	})
}

// =============================================================================
// Canonical operations
// =============================================================================

func (g *Graph) updateRelationship(op UpdateRelationship) error {
	def, members, err := g.validatePayload(op)
	if err != nil {
		return err
	}
	e := g.edge(op.Record, op.Field)
	st := StateOf(e)
	before := *st
	doc := documentOf(e)
	beforeLinks, beforeMeta := doc.links, doc.meta

	if op.Value.Meta != nil {
		doc.meta = maps.Clone(op.Value.Meta)
	}

	hasData := false
	isEmpty := false
	switch {
	case op.Value.Data != nil:
		hasData = true
		isEmpty = op.Value.Data.Len() == 0
		if def.Kind == KindHasMany {
			g.replaceCanonicalMany(e.(*HasMany), members)
		} else {
			var v *identity.Identifier
			if len(members) > 0 {
				v = members[0]
			}
			g.replaceCanonicalOne(e.(*BelongsTo), v)
		}
	case !def.IsAsync && !st.HasReceivedData:
		// A sync relationship cannot be fetched later, so a payload
		// without data means there is nothing to fetch.
		hasData = true
		isEmpty = true
		if op.Value.Links != nil {
			g.log.Warn("relationship payload has links but no data for a sync relationship, treating it as empty",
				"type", op.Record.Type, "lid", op.Record.LID, "field", op.Field)
		}
		if def.Kind == KindHasMany {
			g.replaceCanonicalMany(e.(*HasMany), nil)
		} else {
			g.replaceCanonicalOne(e.(*BelongsTo), nil)
		}
	}

	if op.Value.Links != nil {
		oldRelated := doc.links.Related()
		doc.links = maps.Clone(op.Value.Links)
		if related := op.Value.Links.Related(); related != "" && related != oldRelated {
			st.IsStale = true
		}
	}

	st.HasFailedLoadAttempt = false
	if hasData {
		st.HasReceivedData = true
		st.IsStale = false
		st.HasDematerializedInverse = false
		st.IsEmpty = isEmpty
	}

	if before != *st || !linksEqual(beforeLinks, doc.links) || !reflect.DeepEqual(beforeMeta, doc.meta) {
		g.notifyChange(e)
	}
	return nil
}

type membersOp int

const (
	replaceMembers membersOp = iota
	addMembers
	removeMembers
)

func (g *Graph) pushRecord(owner *identity.Identifier, field string, v *identity.Identifier) error {
	var members []*identity.Identifier
	if v != nil {
		members = append(members, v)
	}
	def, err := g.validateMembers(owner, field, KindBelongsTo, members)
	if err != nil {
		return err
	}
	e := g.edge(owner, def.Key).(*BelongsTo)
	before := *e.State()
	g.replaceCanonicalOne(e, v)
	st := e.State()
	st.HasReceivedData = true
	st.IsStale = false
	st.HasDematerializedInverse = false
	st.IsEmpty = v == nil
	if before != *st {
		g.notifyChange(e)
	}
	return nil
}

func (g *Graph) pushRecords(owner *identity.Identifier, field string, values []*identity.Identifier, mode membersOp) error {
	def, err := g.validateMembers(owner, field, KindHasMany, values)
	if err != nil {
		return err
	}
	e := g.edge(owner, def.Key).(*HasMany)
	before := *e.State()
	next := e.canonical.slice()
	switch mode {
	case replaceMembers:
		next = values
	case addMembers:
		for _, v := range values {
			if !slices.Contains(next, v) {
				next = append(next, v)
			}
		}
	case removeMembers:
		next = slices.DeleteFunc(next, func(x *identity.Identifier) bool { return slices.Contains(values, x) })
	}
	g.replaceCanonicalMany(e, next)
	st := e.State()
	if mode == replaceMembers {
		st.HasReceivedData = true
		st.IsStale = false
		st.HasDematerializedInverse = false
	}
	st.IsEmpty = e.canonical.len() == 0
	if before != *st {
		g.notifyChange(e)
	}
	return nil
}

// replaceCanonicalOne sets the canonical value of a belongsTo and derives
// the local value. A pending local value survives when the relationship is
// async or the pending value was never persisted.
func (g *Graph) replaceCanonicalOne(e *BelongsTo, v *identity.Identifier) {
	owner, key := e.ident, e.def.Key
	remote, local := e.remote, e.local
	dirty := local != remote

	if v == nil {
		if remote != nil {
			g.removeCanonical(owner, key, remote)
		}
	} else {
		g.addCanonical(owner, key, v)
	}

	target := v
	if dirty && (e.def.IsAsync || (local != nil && g.isNew(local))) {
		target = local
	}
	switch {
	case target == e.local:
	case target == nil:
		g.removeLocal(owner, key, e.local)
	default:
		g.addLocal(owner, key, target, -1)
	}
}

// replaceCanonicalMany sets the canonical members of a hasMany and derives
// the current members: the new canonical order, minus pending removals,
// plus pending additions in their local order. Pending changes survive
// when the relationship is async; additions of never persisted records
// always survive.
func (g *Graph) replaceCanonicalMany(e *HasMany, next []*identity.Identifier) {
	owner, key := e.ident, e.def.Key
	next = dedupe(next)
	nextSet := setOf(next)

	c0, l0 := e.canonical.slice(), e.current.slice()
	c0Set, l0Set := setOf(c0), setOf(l0)

	for _, m := range c0 {
		if _, ok := nextSet[m]; !ok {
			g.removeCanonical(owner, key, m)
		}
	}
	for _, m := range next {
		g.addCanonical(owner, key, m)
	}
	e.canonical.reorder(next)

	target := make([]*identity.Identifier, 0, len(next))
	for _, m := range next {
		_, inLocal := l0Set[m]
		_, wasCanonical := c0Set[m]
		pendingRemove := wasCanonical && !inLocal
		if pendingRemove && e.def.IsAsync {
			continue
		}
		target = append(target, m)
	}
	for _, m := range l0 {
		_, wasCanonical := c0Set[m]
		_, isCanonical := nextSet[m]
		if wasCanonical || isCanonical {
			continue
		}
		if e.def.IsAsync || g.isNew(m) {
			target = append(target, m)
		}
	}
	g.applyLocalMany(e, target)
}

// applyLocalMany moves the current members of e to target through local
// pair operations and then orders them like target.
func (g *Graph) applyLocalMany(e *HasMany, target []*identity.Identifier) {
	owner, key := e.ident, e.def.Key
	targetSet := setOf(target)
	for _, m := range e.current.slice() {
		if _, ok := targetSet[m]; !ok {
			g.removeLocal(owner, key, m)
		}
	}
	for _, m := range target {
		g.addLocal(owner, key, m, -1)
	}
	if e.current.reorder(target) {
		g.notifyChange(e)
	}
}

// =============================================================================
// Local operations
// =============================================================================

func (g *Graph) replaceRecordLocal(op ReplaceRelatedRecord) error {
	var members []*identity.Identifier
	if op.Value != nil {
		members = append(members, op.Value)
	}
	def, err := g.validateMembers(op.Record, op.Field, KindBelongsTo, members)
	if err != nil {
		return err
	}
	e := g.edge(op.Record, def.Key).(*BelongsTo)
	if op.Value == nil {
		if e.local != nil {
			g.removeLocal(op.Record, def.Key, e.local)
		}
		return nil
	}
	g.addLocal(op.Record, def.Key, op.Value, -1)
	return nil
}

func (g *Graph) replaceRecordsLocal(op ReplaceRelatedRecords) error {
	def, err := g.validateMembers(op.Record, op.Field, KindHasMany, op.Value)
	if err != nil {
		return err
	}
	g.applyLocalMany(g.edge(op.Record, def.Key).(*HasMany), dedupe(op.Value))
	return nil
}

func (g *Graph) addRecordsLocal(op AddToRelatedRecords) error {
	def, err := g.validateMembers(op.Record, op.Field, KindHasMany, op.Value)
	if err != nil {
		return err
	}
	e := g.edge(op.Record, def.Key).(*HasMany)
	index := op.Index
	for _, m := range op.Value {
		if e.current.has(m) {
			continue
		}
		g.addLocal(op.Record, def.Key, m, index)
		if index >= 0 {
			index++
		}
	}
	return nil
}

func (g *Graph) removeRecordsLocal(op RemoveFromRelatedRecords) error {
	def, err := g.validateMembers(op.Record, op.Field, KindHasMany, op.Value)
	if err != nil {
		return err
	}
	for _, m := range op.Value {
		g.removeLocal(op.Record, def.Key, m)
	}
	return nil
}

// RollbackRelationships discards the pending local changes of every
// declared edge of id, restoring the local state to the canonical state.
func (g *Graph) RollbackRelationships(id *identity.Identifier) error {
	return g.batch(func() error {
		for _, e := range g.Edges(id) {
			switch e := e.(type) {
			case *BelongsTo:
				switch {
				case e.local == e.remote:
				case e.remote == nil:
					g.removeLocal(id, e.def.Key, e.local)
				default:
					g.addLocal(id, e.def.Key, e.remote, -1)
				}
			case *HasMany:
				g.applyLocalMany(e, e.canonical.slice())
			}
		}
		return nil
	})
}

// =============================================================================
// Helpers
// =============================================================================

func documentOf(e Edge) *document {
	switch e := e.(type) {
	case *BelongsTo:
		return &e.document
	case *HasMany:
		return &e.document
	default:
		return nil
	}
}

func linksEqual(a, b jsonapi.Links) bool {
	return maps.EqualFunc(a, b, func(x, y *jsonapi.Link) bool {
		if x == nil || y == nil {
			return x == y
		}
		return x.Href == y.Href && reflect.DeepEqual(x.Meta, y.Meta)
	})
}

func dedupe(ids []*identity.Identifier) []*identity.Identifier {
	seen := make(map[*identity.Identifier]struct{}, len(ids))
	out := make([]*identity.Identifier, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func setOf(ids []*identity.Identifier) map[*identity.Identifier]struct{} {
	s := make(map[*identity.Identifier]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// errUnsupported reports an operation applied to the wrong relationship kind.
func errUnsupported(id *identity.Identifier, field, op string, kind Kind) error {
	return relgraph.NewPayloadError(id.Type, id.ID, field, "%s is not supported on a %s relationship", op, kind)
}
