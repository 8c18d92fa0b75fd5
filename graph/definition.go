package graph

import (
	"fmt"
	"strings"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/schema/edge"
)

// Schema is the relationship metadata consumed by the graph.
// *schema.Registry implements it.
type Schema interface {
	HasResourceType(typ string) bool
	Relationship(typ, field string) (*edge.Descriptor, bool)
	Relationships(typ string) []*edge.Descriptor
	Types() []string
}

// Kind is the kind of a relationship edge.
type Kind uint8

// Edge kinds.
const (
	KindBelongsTo Kind = iota + 1
	KindHasMany
	KindImplicit
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBelongsTo:
		return "belongsTo"
	case KindHasMany:
		return "hasMany"
	case KindImplicit:
		return "implicit"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

func kindOf(k edge.Kind) Kind {
	if k == edge.HasManyKind {
		return KindHasMany
	}
	return KindBelongsTo
}

// implicitPrefix starts the key of every synthesized implicit relationship.
const implicitPrefix = "implicit-"

// ImplicitKey returns the key of the implicit inverse of ownerType.field.
func ImplicitKey(ownerType, field string) string {
	return implicitPrefix + ownerType + ":" + field
}

// Definition is the resolved, immutable description of one side of a
// relationship. Inverse is always set: it names either the declared inverse
// field or the synthesized implicit key.
type Definition struct {
	Key           string // Field name, or implicit key for implicit definitions
	Kind          Kind
	Type          string // Related resource type
	OwnerType     string // Declaring resource type, empty for implicit definitions
	IsAsync       bool
	IsPolymorphic bool
	IsImplicit    bool

	Inverse           string
	InverseKind       Kind
	InverseIsAsync    bool
	InverseIsImplicit bool
}

// Resolver turns schema declarations into Definitions and memoizes them.
// Each graph owns its resolver; the memo is dropped by Reset.
type Resolver struct {
	schema   Schema
	cache    map[string]map[string]*Definition
	implicit map[string]*Definition
}

// NewResolver returns a resolver over s.
func NewResolver(s Schema) *Resolver {
	r := &Resolver{schema: s}
	r.Reset()
	return r
}

// Reset drops every memoized definition.
func (r *Resolver) Reset() {
	r.cache = make(map[string]map[string]*Definition)
	r.implicit = make(map[string]*Definition)
}

// Resolve returns the definition of typ.field. Implicit keys resolve for
// every resource type.
func (r *Resolver) Resolve(typ, field string) (*Definition, error) {
	if strings.HasPrefix(field, implicitPrefix) {
		return r.resolveImplicit(field)
	}
	if def, ok := r.cache[typ][field]; ok {
		return def, nil
	}
	def, err := r.build(typ, field)
	if err != nil {
		return nil, err
	}
	byField, ok := r.cache[typ]
	if !ok {
		byField = make(map[string]*Definition)
		r.cache[typ] = byField
	}
	byField[field] = def
	return def, nil
}

func (r *Resolver) resolveImplicit(key string) (*Definition, error) {
	if def, ok := r.implicit[key]; ok {
		return def, nil
	}
	owner, field, ok := strings.Cut(strings.TrimPrefix(key, implicitPrefix), ":")
	if !ok {
		return nil, relgraph.NewSchemaError("", key, "malformed implicit relationship key", nil)
	}
	def, err := r.Resolve(owner, field)
	if err != nil {
		return nil, err
	}
	if !def.InverseIsImplicit || def.Inverse != key {
		return nil, relgraph.NewSchemaError(owner, field, fmt.Sprintf("relationship has a declared inverse, %s is not used", key), nil)
	}
	return r.implicit[key], nil
}

func (r *Resolver) build(typ, field string) (*Definition, error) {
	d, ok := r.schema.Relationship(typ, field)
	if !ok {
		if !r.schema.HasResourceType(typ) {
			return nil, relgraph.NewUnknownTypeError(typ)
		}
		return nil, relgraph.NewSchemaError(typ, field, "relationship is not declared", nil)
	}
	def := &Definition{
		Key:           d.Name,
		Kind:          kindOf(d.Kind),
		Type:          d.Type,
		OwnerType:     typ,
		IsAsync:       d.Async,
		IsPolymorphic: d.Polymorphic,
	}
	if !d.Polymorphic && !r.schema.HasResourceType(d.Type) {
		return nil, relgraph.NewSchemaError(typ, field, "related type is not registered", relgraph.NewUnknownTypeError(d.Type))
	}
	inv, err := r.inverseOf(typ, d)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		r.setImplicit(def)
		return def, nil
	}
	def.Inverse = inv.Name
	def.InverseKind = kindOf(inv.Kind)
	def.InverseIsAsync = inv.Async
	return def, nil
}

func (r *Resolver) setImplicit(def *Definition) {
	key := ImplicitKey(def.OwnerType, def.Key)
	def.Inverse = key
	def.InverseKind = KindImplicit
	def.InverseIsImplicit = true
	if _, ok := r.implicit[key]; ok {
		return
	}
	r.implicit[key] = &Definition{
		Key:               key,
		Kind:              KindImplicit,
		Type:              def.OwnerType,
		IsImplicit:        true,
		Inverse:           def.Key,
		InverseKind:       def.Kind,
		InverseIsAsync:    def.IsAsync,
		InverseIsImplicit: false,
	}
}

// inverseOf returns the declaration of the inverse of typ.d, or nil when the
// relationship has none.
func (r *Resolver) inverseOf(typ string, d *edge.Descriptor) (*edge.Descriptor, error) {
	switch {
	case d.NoInverse:
		return nil, nil
	case d.Inverse != "":
		inv, err := r.declaredInverse(typ, d)
		if err != nil {
			return nil, err
		}
		if err := r.checkPointsBack(typ, d, inv); err != nil {
			return nil, err
		}
		return inv, nil
	}
	if !r.schema.HasResourceType(d.Type) {
		return nil, nil
	}
	candidates := r.candidates(d.Type, typ, d.Name)
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0], nil
	default:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		return nil, relgraph.NewSchemaError(typ, d.Name, fmt.Sprintf(
			"cannot infer inverse: type %s has several relationships to %s (%s); declare the inverse explicitly",
			d.Type, typ, strings.Join(names, ", ")), nil)
	}
}

// declaredInverse finds the explicitly named inverse field. For polymorphic
// relationships to an abstract type the first concrete type declaring the
// field stands in for the kind and async flag.
func (r *Resolver) declaredInverse(typ string, d *edge.Descriptor) (*edge.Descriptor, error) {
	if inv, ok := r.schema.Relationship(d.Type, d.Inverse); ok {
		return inv, nil
	}
	if d.Polymorphic {
		for _, t := range r.schema.Types() {
			if inv, ok := r.schema.Relationship(t, d.Inverse); ok && (inv.Type == typ || inv.Polymorphic) {
				return inv, nil
			}
		}
	}
	return nil, relgraph.NewSchemaError(typ, d.Name, fmt.Sprintf("inverse %s.%s is not declared", d.Type, d.Inverse), nil)
}

// checkPointsBack verifies that inv names typ.d as its own inverse, either
// explicitly or by inference.
func (r *Resolver) checkPointsBack(typ string, d, inv *edge.Descriptor) error {
	switch {
	case inv.Type != typ && !inv.Polymorphic:
		return relgraph.NewSchemaError(typ, d.Name, fmt.Sprintf(
			"inverse %s relates to %s, not %s", inv.Name, inv.Type, typ), nil)
	case inv.NoInverse:
		return relgraph.NewSchemaError(typ, d.Name, fmt.Sprintf(
			"inverse %s declares that it has no inverse", inv.Name), nil)
	case inv.Inverse != "" && inv.Inverse != d.Name:
		return relgraph.NewSchemaError(typ, d.Name, fmt.Sprintf(
			"inverse %s declares %s as its inverse", inv.Name, inv.Inverse), nil)
	case inv.Inverse == "" && r.schema.HasResourceType(inv.Type):
		back := r.candidates(inv.Type, d.Type, inv.Name)
		if len(back) != 1 || back[0].Name != d.Name {
			return relgraph.NewSchemaError(typ, d.Name, fmt.Sprintf(
				"inverse %s does not infer %s as its inverse; declare it on both sides", inv.Name, d.Name), nil)
		}
	}
	return nil
}

// candidates returns the relationships of onType that relate to target and
// may be the inverse of the field named name. Fields naming it explicitly
// take precedence over fields left to inference.
func (r *Resolver) candidates(onType, target, name string) []*edge.Descriptor {
	var explicit, inferred []*edge.Descriptor
	for _, f := range r.schema.Relationships(onType) {
		if f.Type != target || f.NoInverse {
			continue
		}
		switch f.Inverse {
		case name:
			explicit = append(explicit, f)
		case "":
			inferred = append(inferred, f)
		}
	}
	if len(explicit) > 0 {
		return explicit
	}
	return inferred
}
