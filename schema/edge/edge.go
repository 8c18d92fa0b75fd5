package edge

import "fmt"

// Kind is the cardinality of a declared relationship.
type Kind int

// Relationship kinds.
const (
	BelongsToKind Kind = iota + 1 // to-one
	HasManyKind                   // to-many
)

// String returns the kind name as used in schema files.
func (k Kind) String() string {
	switch k {
	case BelongsToKind:
		return "belongsTo"
	case HasManyKind:
		return "hasMany"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses "belongsTo" or "hasMany".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "belongsTo", "belongs_to", "belongs-to":
		return BelongsToKind, nil
	case "hasMany", "has_many", "has-many":
		return HasManyKind, nil
	}
	return 0, fmt.Errorf("edge: unknown relationship kind %q", s)
}

// Descriptor is the declaration of one relationship field.
type Descriptor struct {
	Name        string // field name on the owning type
	Kind        Kind
	Type        string // declared related type
	Async       bool
	Polymorphic bool
	Inverse     string // declared inverse field; empty means inferred
	NoInverse   bool   // explicitly declared without inverse
	Comment     string
}

// Descriptor implements the schema.Edge interface.
func (d *Descriptor) Descriptor() *Descriptor {
	return d
}

// HasDeclaredInverse reports whether the descriptor names its inverse.
func (d *Descriptor) HasDeclaredInverse() bool {
	return d.Inverse != "" && !d.NoInverse
}

// Builder builds a relationship Descriptor.
type Builder struct {
	desc *Descriptor
}

// BelongsTo declares a to-one relationship.
//
//	edge.BelongsTo("author", "user").Inverse("posts")
func BelongsTo(name, typ string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Kind: BelongsToKind, Type: typ}}
}

// HasMany declares a to-many relationship.
//
//	edge.HasMany("posts", "post").Inverse("author").Async()
func HasMany(name, typ string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Kind: HasManyKind, Type: typ}}
}

// Inverse sets the name of the field on the related type that points back.
func (b *Builder) Inverse(name string) *Builder {
	b.desc.Inverse = name
	b.desc.NoInverse = false
	return b
}

// NoInverse declares that the related type has no field pointing back.
// The graph tracks the reverse direction with an implicit edge.
func (b *Builder) NoInverse() *Builder {
	b.desc.Inverse = ""
	b.desc.NoInverse = true
	return b
}

// Async marks the relationship as loaded on demand through the fetch layer.
func (b *Builder) Async() *Builder {
	b.desc.Async = true
	return b
}

// Polymorphic allows members whose concrete type differs from the declared type.
func (b *Builder) Polymorphic() *Builder {
	b.desc.Polymorphic = true
	return b
}

// Comment sets the comment of the relationship.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
