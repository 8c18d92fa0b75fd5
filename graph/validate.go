package graph

import (
	"fmt"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/identity"
	"github.com/syssam/relgraph/jsonapi"
	"github.com/syssam/relgraph/schema"
)

// Validation runs before any mutation. Only the resolver memo and, for
// payload references, the identifier cache may change on the way.

// declared resolves the definition of a declared (non-implicit) relationship.
func (g *Graph) declared(owner *identity.Identifier, field string) (*Definition, error) {
	if owner == nil {
		return nil, fmt.Errorf("graph: %s: nil record", field)
	}
	def, err := g.resolver.Resolve(owner.Type, field)
	if err != nil {
		return nil, err
	}
	if def.IsImplicit {
		return nil, fmt.Errorf("graph: %s.%s: %w", owner.Type, field, relgraph.ErrImplicitEdge)
	}
	return def, nil
}

// validatePayload checks a canonical push and resolves its references.
func (g *Graph) validatePayload(op UpdateRelationship) (*Definition, []*identity.Identifier, error) {
	def, err := g.declared(op.Record, op.Field)
	if err != nil {
		return nil, nil, err
	}
	data := op.Value.Data
	if data == nil {
		return def, nil, nil
	}
	var refs []jsonapi.Reference
	switch def.Kind {
	case KindBelongsTo:
		if data.IsMany() {
			return nil, nil, g.payloadError(op.Record, op.Field,
				"%s is a belongsTo relationship so the value must not be an array", op.Field)
		}
		if one := data.One(); one != nil {
			refs = []jsonapi.Reference{*one}
		}
	case KindHasMany:
		if !data.IsMany() {
			return nil, nil, g.payloadError(op.Record, op.Field,
				"%s is a hasMany relationship so the value must be an array", op.Field)
		}
		refs = data.Many()
	}
	types := make([]string, len(refs))
	for i, ref := range refs {
		typ, err := g.checkRef(op.Record, def, ref)
		if err != nil {
			return nil, nil, err
		}
		types[i] = typ
	}
	members := make([]*identity.Identifier, len(refs))
	for i, ref := range refs {
		members[i] = g.lookup(types[i], ref)
	}
	return def, members, nil
}

// validateMembers checks a member list of an identifier based operation.
func (g *Graph) validateMembers(owner *identity.Identifier, field string, kind Kind, members []*identity.Identifier) (*Definition, error) {
	def, err := g.declared(owner, field)
	if err != nil {
		return nil, err
	}
	if def.Kind != kind {
		op := "replaceRelatedRecord"
		if kind == KindHasMany {
			op = "a to-many operation"
		}
		return nil, errUnsupported(owner, field, op, def.Kind)
	}
	for _, m := range members {
		if m == nil {
			return nil, g.payloadError(owner, field, "nil related record")
		}
		if err := g.checkMember(owner, def, m.Type); err != nil {
			return nil, err
		}
	}
	return def, nil
}

// checkRef validates one payload reference and returns its normalized type.
func (g *Graph) checkRef(owner *identity.Identifier, def *Definition, ref jsonapi.Reference) (string, error) {
	if ref.Type == "" {
		return "", g.payloadError(owner, def.Key,
			"encountered a reference without a type, expected a %s identifier", def.Type)
	}
	typ := schema.NormalizeType(ref.Type)
	if !g.schema.HasResourceType(typ) {
		return "", relgraph.NewUnknownTypeError(ref.Type)
	}
	if ref.ID == "" {
		known, ok := g.idents.PeekLID(ref.LID)
		if ref.LID == "" || !ok {
			return "", g.payloadError(owner, def.Key, "encountered a %s reference without an id", typ)
		}
		if known.Type != typ {
			return "", g.payloadError(owner, def.Key, "reference lid %s belongs to type %s, not %s", ref.LID, known.Type, typ)
		}
	}
	if err := g.checkMember(owner, def, typ); err != nil {
		return "", err
	}
	return typ, nil
}

// checkMember verifies that a record of type typ may be related through def
// and that its inverse resolves back to def.
func (g *Graph) checkMember(owner *identity.Identifier, def *Definition, typ string) error {
	if !def.IsPolymorphic && typ != def.Type {
		return g.payloadError(owner, def.Key, "expected a %s record, got %s", def.Type, typ)
	}
	if !g.schema.HasResourceType(typ) {
		return relgraph.NewUnknownTypeError(typ)
	}
	if def.InverseIsImplicit {
		return nil
	}
	inv, err := g.resolver.Resolve(typ, def.Inverse)
	if err != nil {
		return err
	}
	if inv.Inverse != def.Key || (inv.Type != owner.Type && !inv.IsPolymorphic) {
		return relgraph.NewSchemaError(owner.Type, def.Key, fmt.Sprintf(
			"inverse %s.%s does not point back to this relationship", typ, def.Inverse), nil)
	}
	return nil
}

// lookup returns the identifier of a validated reference.
func (g *Graph) lookup(typ string, ref jsonapi.Reference) *identity.Identifier {
	if ref.LID != "" {
		if id, ok := g.idents.PeekLID(ref.LID); ok {
			return id
		}
	}
	return g.idents.Get(typ, ref.ID)
}

func (g *Graph) payloadError(owner *identity.Identifier, field, format string, args ...any) error {
	return relgraph.NewPayloadError(owner.Type, owner.ID, field, format, args...)
}
