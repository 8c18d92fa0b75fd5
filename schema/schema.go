package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/schema/edge"
)

// Edge is implemented by relationship declarations: edge builders and
// plain *edge.Descriptor values.
type Edge interface {
	Descriptor() *edge.Descriptor
}

// NormalizeType converts a payload or schema type name to its canonical
// form: singular and dasherized.
//
//	NormalizeType("users")     // "user"
//	NormalizeType("BlogPost")  // "blog-post"
func NormalizeType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return inflect.Dasherize(inflect.Singularize(s))
}

// resourceType is the registered schema of one resource type.
type resourceType struct {
	name   string
	fields []*edge.Descriptor
	byName map[string]*edge.Descriptor
}

// Merge concatenates sets of relationship declarations. A declaration in a
// later set replaces an earlier one with the same name and keeps its position.
func Merge(sets ...[]Edge) []Edge {
	var (
		out []Edge
		pos = make(map[string]int)
	)
	for _, set := range sets {
		for _, e := range set {
			name := e.Descriptor().Name
			if i, ok := pos[name]; ok {
				out[i] = e
				continue
			}
			pos[name] = len(out)
			out = append(out, e)
		}
	}
	return out
}

// Registry holds the relationship declarations of every resource type.
// A Registry is populated once at startup and only read afterwards.
type Registry struct {
	types map[string]*resourceType
	order []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{types: make(map[string]*resourceType)}
}

// Register adds a resource type and its relationships. Type names are
// normalized with NormalizeType. Registering the same type twice appends
// the new relationships.
func (r *Registry) Register(typ string, edges ...Edge) error {
	name := NormalizeType(typ)
	if name == "" {
		return relgraph.NewSchemaError(typ, "", "resource type name cannot be empty", nil)
	}
	rt, ok := r.types[name]
	if !ok {
		rt = &resourceType{name: name, byName: make(map[string]*edge.Descriptor)}
		r.types[name] = rt
		r.order = append(r.order, name)
	}
	for _, e := range edges {
		d := *e.Descriptor()
		switch {
		case d.Name == "":
			return relgraph.NewSchemaError(name, "", "relationship name cannot be empty", nil)
		case d.Type == "":
			return relgraph.NewSchemaError(name, d.Name, "relationship type cannot be empty", nil)
		case d.Kind != edge.BelongsToKind && d.Kind != edge.HasManyKind:
			return relgraph.NewSchemaError(name, d.Name, fmt.Sprintf("invalid relationship kind %v", d.Kind), nil)
		}
		if _, dup := rt.byName[d.Name]; dup {
			return relgraph.NewSchemaError(name, d.Name, "relationship declared twice", nil)
		}
		d.Type = NormalizeType(d.Type)
		rt.fields = append(rt.fields, &d)
		rt.byName[d.Name] = &d
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(typ string, edges ...Edge) *Registry {
	if err := r.Register(typ, edges...); err != nil {
		panic(err)
	}
	return r
}

// HasResourceType reports whether the type is registered.
func (r *Registry) HasResourceType(typ string) bool {
	_, ok := r.types[typ]
	return ok
}

// Relationship returns the declaration of a relationship field.
func (r *Registry) Relationship(typ, field string) (*edge.Descriptor, bool) {
	rt, ok := r.types[typ]
	if !ok {
		return nil, false
	}
	d, ok := rt.byName[field]
	return d, ok
}

// Relationships returns the relationship declarations of a type in
// declaration order.
func (r *Registry) Relationships(typ string) []*edge.Descriptor {
	rt, ok := r.types[typ]
	if !ok {
		return nil
	}
	return slices.Clone(rt.fields)
}

// Types returns the registered type names in registration order.
func (r *Registry) Types() []string {
	return slices.Clone(r.order)
}
