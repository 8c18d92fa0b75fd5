// Package mixin provides reusable sets of relationships.
//
// A mixin declares relationships once for every resource type that
// includes it. The usual case is the to-many side of a polymorphic
// relationship, which each concrete type must declare:
//
//	commentable := mixin.Polymorphic{Field: "comments", Type: "comment", Inverse: "commentable"}
//
//	mixin.Register(reg, "user", []mixin.Mixin{commentable},
//	    edge.HasMany("friends", "user").Inverse("friends"),
//	)
//	mixin.Register(reg, "post", []mixin.Mixin{commentable})
//
// Mixins are applied in order and before the type's own relationships.
// A later declaration replaces an earlier one with the same name.
package mixin

import (
	"github.com/syssam/relgraph/schema"
	"github.com/syssam/relgraph/schema/edge"
)

// Mixin is a reusable set of relationship declarations.
type Mixin interface {
	Relationships() []schema.Edge
}

// Schema is the default implementation of Mixin. Embed it in custom mixins.
type Schema struct{}

// Relationships returns no relationships.
func (Schema) Relationships() []schema.Edge { return nil }

var _ Mixin = (*Schema)(nil)

// Edges is a mixin made of a fixed list of relationships.
type Edges []schema.Edge

// Relationships returns e.
func (e Edges) Relationships() []schema.Edge { return e }

// Polymorphic declares the concrete side of a polymorphic relationship:
// a hasMany named Field, pointing at Type, whose inverse is the polymorphic
// belongsTo named Inverse.
type Polymorphic struct {
	Schema
	Field   string
	Type    string
	Inverse string
	Async   bool
}

// Relationships returns the single hasMany declaration.
func (p Polymorphic) Relationships() []schema.Edge {
	b := edge.HasMany(p.Field, p.Type).Inverse(p.Inverse)
	if p.Async {
		b = b.Async()
	}
	return []schema.Edge{b}
}

// Register registers typ with the relationships of mixins followed by edges.
func Register(reg *schema.Registry, typ string, mixins []Mixin, edges ...schema.Edge) error {
	sets := make([][]schema.Edge, 0, len(mixins)+1)
	for _, m := range mixins {
		sets = append(sets, m.Relationships())
	}
	sets = append(sets, edges)
	return reg.Register(typ, schema.Merge(sets...)...)
}

// MustRegister is like Register but panics on error.
func MustRegister(reg *schema.Registry, typ string, mixins []Mixin, edges ...schema.Edge) {
	if err := Register(reg, typ, mixins, edges...); err != nil {
		panic(err)
	}
}
