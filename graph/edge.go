package graph

import (
	"maps"

	"github.com/syssam/relgraph/identity"
	"github.com/syssam/relgraph/jsonapi"
)

// Edge is the relationship state of one (identifier, field) pair.
// It is one of *BelongsTo, *HasMany or *Implicit. Edges are owned by the
// graph; accessors return copies and mutation goes through graph operations.
type Edge interface {
	Definition() *Definition
	Identifier() *identity.Identifier
	edge()
}

// Compile-time checks.
var (
	_ Edge = (*BelongsTo)(nil)
	_ Edge = (*HasMany)(nil)
	_ Edge = (*Implicit)(nil)
)

type base struct {
	def   *Definition
	ident *identity.Identifier
}

// Definition returns the resolved relationship definition.
func (b *base) Definition() *Definition { return b.def }

// Identifier returns the owning resource.
func (b *base) Identifier() *identity.Identifier { return b.ident }

func (*base) edge() {}

// document holds the links, meta and lifecycle flags shared by declared edges.
type document struct {
	state *State
	links jsonapi.Links
	meta  jsonapi.Meta
}

// State returns the lifecycle flags, creating them on first access.
func (d *document) State() *State {
	if d.state == nil {
		d.state = newState()
	}
	return d.state
}

// Links returns a copy of the relationship links.
func (d *document) Links() jsonapi.Links {
	return maps.Clone(d.links)
}

// Meta returns a copy of the relationship meta.
func (d *document) Meta() jsonapi.Meta {
	return maps.Clone(d.meta)
}

func (d *document) fill(rel *jsonapi.Relationship) {
	if len(d.links) > 0 {
		rel.Links = maps.Clone(d.links)
	}
	if len(d.meta) > 0 {
		rel.Meta = maps.Clone(d.meta)
	}
}

// BelongsTo is the state of a to-one relationship.
type BelongsTo struct {
	base
	document
	local  *identity.Identifier
	remote *identity.Identifier
}

// LocalState returns the client-side value, possibly not yet committed.
func (e *BelongsTo) LocalState() *identity.Identifier { return e.local }

// RemoteState returns the last value confirmed by the source of truth.
func (e *BelongsTo) RemoteState() *identity.Identifier { return e.remote }

// GetData returns the relationship object for the local state. Data is
// omitted while the value is unknown and null once it is known to be empty.
func (e *BelongsTo) GetData() jsonapi.Relationship {
	var rel jsonapi.Relationship
	switch {
	case e.local != nil:
		rel.Data = jsonapi.One(Ref(e.local))
	case e.state != nil && e.state.HasReceivedData:
		rel.Data = jsonapi.Null()
	}
	e.fill(&rel)
	return rel
}

func (e *BelongsTo) clear() {
	e.local, e.remote = nil, nil
	st := e.State()
	st.HasReceivedData = false
	st.IsEmpty = true
}

// HasMany is the state of a to-many relationship.
type HasMany struct {
	base
	document
	canonical memberList
	current   memberList
}

// CanonicalState returns the members confirmed by the source of truth, in order.
func (e *HasMany) CanonicalState() []*identity.Identifier { return e.canonical.slice() }

// CurrentState returns the client-visible members, in order.
func (e *HasMany) CurrentState() []*identity.Identifier { return e.current.slice() }

// HasMember reports whether id is a client-visible member.
func (e *HasMany) HasMember(id *identity.Identifier) bool { return e.current.has(id) }

// HasCanonicalMember reports whether id is a canonical member.
func (e *HasMany) HasCanonicalMember(id *identity.Identifier) bool { return e.canonical.has(id) }

// GetData returns the relationship object for the current state. Data is
// included once canonical data was received.
func (e *HasMany) GetData() jsonapi.Relationship {
	var rel jsonapi.Relationship
	if e.state != nil && e.state.HasReceivedData {
		rel.Data = jsonapi.Many(Refs(e.current.list)...)
	}
	e.fill(&rel)
	return rel
}

func (e *HasMany) clear() {
	e.canonical.clear()
	e.current.clear()
}

// Implicit is the bookkeeping edge kept on the related side of a
// relationship that declares no inverse.
type Implicit struct {
	base
	members          memberList
	canonicalMembers memberList
}

// Members returns the identifiers whose relationship currently points here.
func (e *Implicit) Members() []*identity.Identifier { return e.members.slice() }

// CanonicalMembers returns the identifiers whose canonical relationship points here.
func (e *Implicit) CanonicalMembers() []*identity.Identifier {
	return e.canonicalMembers.slice()
}

func (e *Implicit) clear() {
	e.members.clear()
	e.canonicalMembers.clear()
}

// StateOf returns the lifecycle flags of e, or nil for implicit edges.
func StateOf(e Edge) *State {
	switch e := e.(type) {
	case *BelongsTo:
		return e.State()
	case *HasMany:
		return e.State()
	default:
		return nil
	}
}

// Ref returns the payload reference of id.
func Ref(id *identity.Identifier) jsonapi.Reference {
	return jsonapi.Reference{Type: id.Type, ID: id.ID, LID: id.LID}
}

// Refs returns the payload references of ids.
func Refs(ids []*identity.Identifier) []jsonapi.Reference {
	refs := make([]jsonapi.Reference, len(ids))
	for i, id := range ids {
		refs[i] = Ref(id)
	}
	return refs
}

func newEdge(def *Definition, id *identity.Identifier) Edge {
	b := base{def: def, ident: id}
	switch def.Kind {
	case KindBelongsTo:
		return &BelongsTo{base: b}
	case KindHasMany:
		return &HasMany{base: b, canonical: newMemberList(), current: newMemberList()}
	default:
		return &Implicit{base: b, members: newMemberList(), canonicalMembers: newMemberList()}
	}
}
