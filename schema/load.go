package schema

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"gopkg.in/yaml.v3"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/schema/edge"
)

// yamlFile is the layout of a YAML schema file:
//
//	mixins:
//	  commentable:
//	    relationships:
//	      comments: {kind: hasMany, type: comment, inverse: commentable}
//	types:
//	  user:
//	    mixins: [commentable]
//	    relationships:
//	      bestFriend: {kind: belongsTo, type: user, inverse: bestFriend}
//	      pets:       {kind: hasMany, type: pet, inverse: null, async: true}
type yamlFile struct {
	Mixins yaml.Node `yaml:"mixins"`
	Types  yaml.Node `yaml:"types"`
}

// fieldSpec is one relationship entry of a YAML schema file.
type fieldSpec struct {
	Kind        string    `yaml:"kind"`
	Type        string    `yaml:"type"`
	Inverse     yaml.Node `yaml:"inverse"`
	Async       bool      `yaml:"async"`
	Polymorphic bool      `yaml:"polymorphic"`
	Comment     string    `yaml:"comment"`
}

type typeSpec struct {
	Mixins        []string  `yaml:"mixins"`
	Relationships yaml.Node `yaml:"relationships"`
}

// LoadYAML reads a registry from a YAML document. Types and relationships
// are registered in document order. An explicit "inverse: null" declares
// a relationship without inverse; omitting the key asks for inference.
// The relationships of a type's mixins come first, in the listed order,
// and may be redeclared by the type.
func LoadYAML(r io.Reader) (*Registry, error) {
	var f yamlFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return New(), nil
		}
		return nil, fmt.Errorf("schema: decoding yaml: %w", err)
	}
	mixins, err := yamlMixins(&f.Mixins)
	if err != nil {
		return nil, err
	}
	reg := New()
	if f.Types.Kind == 0 {
		return reg, nil
	}
	if f.Types.Kind != yaml.MappingNode {
		return nil, relgraph.NewSchemaError("", "", fmt.Sprintf("line %d: types must be a mapping", f.Types.Line), nil)
	}
	for i := 0; i+1 < len(f.Types.Content); i += 2 {
		name, body := f.Types.Content[i].Value, f.Types.Content[i+1]
		var ts typeSpec
		if err := body.Decode(&ts); err != nil {
			return nil, relgraph.NewSchemaError(name, "", fmt.Sprintf("line %d: invalid type definition", body.Line), err)
		}
		own, err := yamlEdges(name, &ts.Relationships)
		if err != nil {
			return nil, err
		}
		sets := make([][]Edge, 0, len(ts.Mixins)+1)
		for _, m := range ts.Mixins {
			edges, ok := mixins[m]
			if !ok {
				return nil, relgraph.NewSchemaError(name, "", fmt.Sprintf("line %d: unknown mixin %q", body.Line, m), nil)
			}
			sets = append(sets, edges)
		}
		if err := reg.Register(name, Merge(append(sets, own)...)...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// yamlMixins reads the named relationship sets of the mixins section.
func yamlMixins(n *yaml.Node) (map[string][]Edge, error) {
	mixins := make(map[string][]Edge)
	if n.Kind == 0 {
		return mixins, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, relgraph.NewSchemaError("", "", fmt.Sprintf("line %d: mixins must be a mapping", n.Line), nil)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, body := n.Content[i].Value, n.Content[i+1]
		var ts typeSpec
		if err := body.Decode(&ts); err != nil {
			return nil, relgraph.NewSchemaError(name, "", fmt.Sprintf("line %d: invalid mixin definition", body.Line), err)
		}
		edges, err := yamlEdges(name, &ts.Relationships)
		if err != nil {
			return nil, err
		}
		mixins[name] = edges
	}
	return mixins, nil
}

func yamlEdges(typ string, n *yaml.Node) ([]Edge, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, relgraph.NewSchemaError(typ, "", fmt.Sprintf("line %d: relationships must be a mapping", n.Line), nil)
	}
	edges := make([]Edge, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		name, body := n.Content[i].Value, n.Content[i+1]
		var fs fieldSpec
		if err := body.Decode(&fs); err != nil {
			return nil, relgraph.NewSchemaError(typ, name, fmt.Sprintf("line %d: invalid relationship", body.Line), err)
		}
		kind, err := edge.ParseKind(fs.Kind)
		if err != nil {
			return nil, relgraph.NewSchemaError(typ, name, fmt.Sprintf("line %d", body.Line), err)
		}
		d := &edge.Descriptor{
			Name:        name,
			Kind:        kind,
			Type:        fs.Type,
			Async:       fs.Async,
			Polymorphic: fs.Polymorphic,
			Comment:     fs.Comment,
		}
		switch inv := fs.Inverse; {
		case inv.Kind == 0:
		case inv.Tag == "!!null":
			d.NoInverse = true
		default:
			d.Inverse = inv.Value
		}
		edges = append(edges, d)
	}
	return edges, nil
}

// LoadYAMLFile is like LoadYAML but reads from a file.
func LoadYAMLFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// Directives declares the relationship directives understood by LoadGraphQL.
// It is prepended to every document, so SDL files must not redeclare them.
const Directives = `
directive @belongsTo(inverse: String, async: Boolean, polymorphic: Boolean) on FIELD_DEFINITION
directive @hasMany(inverse: String, async: Boolean, polymorphic: Boolean) on FIELD_DEFINITION
`

// LoadGraphQL reads a registry from GraphQL SDL. Every object type becomes
// a resource type and every field annotated with @belongsTo or @hasMany
// becomes a relationship targeting the field's named type:
//
//	type User {
//	  bestFriend: User @belongsTo(inverse: "bestFriend")
//	  pets: [Pet!]! @hasMany(inverse: null, async: true)
//	}
func LoadGraphQL(name, sdl string) (*Registry, error) {
	doc, err := gqlparser.LoadSchema(
		&ast.Source{Name: "relgraph.directives", Input: Directives, BuiltIn: true},
		&ast.Source{Name: name, Input: sdl},
	)
	if err != nil {
		return nil, relgraph.NewSchemaError("", "", "parsing "+name, err)
	}
	var names []string
	for n, def := range doc.Types {
		if def.Kind == ast.Object && !def.BuiltIn && !isRootType(doc, def) {
			names = append(names, n)
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		pa, pb := doc.Types[a].Position, doc.Types[b].Position
		if pa != nil && pb != nil && pa.Line != pb.Line {
			return pa.Line - pb.Line
		}
		return strings.Compare(a, b)
	})
	reg := New()
	for _, n := range names {
		def := doc.Types[n]
		var edges []Edge
		for _, f := range def.Fields {
			d, err := graphqlEdge(n, f)
			if err != nil {
				return nil, err
			}
			if d != nil {
				edges = append(edges, d)
			}
		}
		if err := reg.Register(n, edges...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func isRootType(doc *ast.Schema, def *ast.Definition) bool {
	return def == doc.Query || def == doc.Mutation || def == doc.Subscription
}

func graphqlEdge(typ string, f *ast.FieldDefinition) (*edge.Descriptor, error) {
	var (
		dir  *ast.Directive
		kind edge.Kind
	)
	switch bt, hm := f.Directives.ForName("belongsTo"), f.Directives.ForName("hasMany"); {
	case bt != nil && hm != nil:
		return nil, relgraph.NewSchemaError(typ, f.Name, "field has both @belongsTo and @hasMany", nil)
	case bt != nil:
		dir, kind = bt, edge.BelongsToKind
		if f.Type.Elem != nil {
			return nil, relgraph.NewSchemaError(typ, f.Name, "@belongsTo field cannot be a list", nil)
		}
	case hm != nil:
		dir, kind = hm, edge.HasManyKind
		if f.Type.Elem == nil {
			return nil, relgraph.NewSchemaError(typ, f.Name, "@hasMany field must be a list", nil)
		}
	default:
		return nil, nil
	}
	d := &edge.Descriptor{Name: f.Name, Kind: kind, Type: f.Type.Name(), Comment: f.Description}
	if arg := dir.Arguments.ForName("inverse"); arg != nil {
		if arg.Value.Kind == ast.NullValue {
			d.NoInverse = true
		} else {
			d.Inverse = arg.Value.Raw
		}
	}
	if arg := dir.Arguments.ForName("async"); arg != nil {
		d.Async = arg.Value.Raw == "true"
	}
	if arg := dir.Arguments.ForName("polymorphic"); arg != nil {
		d.Polymorphic = arg.Value.Raw == "true"
	}
	return d, nil
}

// LoadFile loads a schema file, choosing the format by extension:
// .yaml and .yml for YAML, .graphql and .gql for SDL.
func LoadFile(path string) (*Registry, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return LoadYAMLFile(path)
	case ".graphql", ".gql":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		return LoadGraphQL(filepath.Base(path), string(b))
	default:
		return nil, fmt.Errorf("schema: unsupported schema file extension %q", ext)
	}
}
