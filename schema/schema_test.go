package schema_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/schema"
	"github.com/syssam/relgraph/schema/edge"
)

func TestNormalizeType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"user", "user"},
		{"users", "user"},
		{"BlogPost", "blog-post"},
		{"blog-post", "blog-post"},
		{"  pet ", "pet"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, schema.NormalizeType(tt.in), tt.in)
	}
}

// =============================================================================
// Registry
// =============================================================================

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	reg := schema.New()
	require.NoError(t, reg.Register("users",
		edge.BelongsTo("bestFriend", "users").Inverse("bestFriend"),
		edge.HasMany("pets", "Pet").NoInverse().Async(),
	))
	require.NoError(t, reg.Register("pet"))

	assert.True(t, reg.HasResourceType("user"))
	assert.True(t, reg.HasResourceType("pet"))
	assert.False(t, reg.HasResourceType("users"))
	assert.Equal(t, []string{"user", "pet"}, reg.Types())

	d, ok := reg.Relationship("user", "pets")
	require.True(t, ok)
	assert.Equal(t, "pet", d.Type)
	assert.Equal(t, edge.HasManyKind, d.Kind)
	assert.True(t, d.NoInverse)
	assert.True(t, d.Async)

	_, ok = reg.Relationship("user", "enemies")
	assert.False(t, ok)
	_, ok = reg.Relationship("car", "owner")
	assert.False(t, ok)

	fields := reg.Relationships("user")
	require.Len(t, fields, 2)
	assert.Equal(t, "bestFriend", fields[0].Name)
	assert.Equal(t, "pets", fields[1].Name)
	assert.Nil(t, reg.Relationships("car"))
}

func TestRegistryCopiesDescriptors(t *testing.T) {
	t.Parallel()

	d := &edge.Descriptor{Name: "owner", Kind: edge.BelongsToKind, Type: "user"}
	reg := schema.New().MustRegister("pet", d)
	d.Type = "car"

	got, ok := reg.Relationship("pet", "owner")
	require.True(t, ok)
	assert.Equal(t, "user", got.Type)
}

func TestRegistryErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		typ   string
		edges []schema.Edge
	}{
		{"empty type", " ", nil},
		{"empty field", "user", []schema.Edge{edge.BelongsTo("", "user")}},
		{"empty target", "user", []schema.Edge{edge.BelongsTo("bestFriend", "")}},
		{"invalid kind", "user", []schema.Edge{&edge.Descriptor{Name: "x", Type: "user"}}},
		{"duplicate field", "user", []schema.Edge{edge.BelongsTo("x", "user"), edge.HasMany("x", "user")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := schema.New().Register(tt.typ, tt.edges...)
			require.Error(t, err)
			assert.ErrorIs(t, err, relgraph.ErrInvalidSchema)
			assert.True(t, relgraph.IsSchemaError(err))
		})
	}

	assert.Panics(t, func() {
		schema.New().MustRegister("")
	})
}

// =============================================================================
// Loaders
// =============================================================================

const yamlSchema = `
types:
  user:
    relationships:
      bestFriend:
        kind: belongsTo
        type: user
        inverse: bestFriend
      friends:
        kind: hasMany
        type: users
        async: true
      pets:
        kind: has_many
        type: pet
        inverse: null
  pet:
    relationships:
      owner: {kind: belongsTo, type: user, polymorphic: true, comment: current owner}
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	reg, err := schema.LoadYAML(strings.NewReader(yamlSchema))
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "pet"}, reg.Types())

	names := make([]string, 0, 3)
	for _, d := range reg.Relationships("user") {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"bestFriend", "friends", "pets"}, names)

	bf, _ := reg.Relationship("user", "bestFriend")
	assert.Equal(t, "bestFriend", bf.Inverse)
	assert.False(t, bf.NoInverse)

	friends, _ := reg.Relationship("user", "friends")
	assert.Equal(t, "user", friends.Type)
	assert.True(t, friends.Async)
	assert.Empty(t, friends.Inverse)
	assert.False(t, friends.NoInverse)

	pets, _ := reg.Relationship("user", "pets")
	assert.Equal(t, edge.HasManyKind, pets.Kind)
	assert.True(t, pets.NoInverse)

	owner, _ := reg.Relationship("pet", "owner")
	assert.True(t, owner.Polymorphic)
	assert.Equal(t, "current owner", owner.Comment)
}

func TestLoadYAMLErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"bad kind", "types:\n  user:\n    relationships:\n      x: {kind: manyToMany, type: user}\n"},
		{"types not a mapping", "types: [user]\n"},
		{"relationships not a mapping", "types:\n  user:\n    relationships: 3\n"},
		{"missing type", "types:\n  user:\n    relationships:\n      x: {kind: hasMany}\n"},
		{"mixins not a mapping", "mixins: [owned]\ntypes:\n  user: {}\n"},
		{"unknown mixin", "types:\n  user:\n    mixins: [owned]\n"},
		{"bad mixin relationship", "mixins:\n  owned:\n    relationships:\n      x: {kind: oneToOne, type: user}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := schema.LoadYAML(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, relgraph.ErrInvalidSchema)
		})
	}

	_, err := schema.LoadYAML(strings.NewReader("types: {"))
	assert.Error(t, err)

	reg, err := schema.LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, reg.Types())
}

func TestLoadYAMLMixins(t *testing.T) {
	t.Parallel()

	reg, err := schema.LoadYAML(strings.NewReader(`
mixins:
  commentable:
    relationships:
      comments: {kind: hasMany, type: comment, inverse: commentable}
      tags:     {kind: hasMany, type: tag, inverse: null}
types:
  user:
    mixins: [commentable]
    relationships:
      tags: {kind: hasMany, type: tag, inverse: null, async: true}
  post:
    mixins: [commentable]
  tag: {}
  comment:
    relationships:
      commentable: {kind: belongsTo, type: commentable, inverse: comments, polymorphic: true}
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "post", "tag", "comment"}, reg.Types())

	var names []string
	for _, d := range reg.Relationships("user") {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"comments", "tags"}, names)
	tags, _ := reg.Relationship("user", "tags")
	assert.True(t, tags.Async, "the type's own declaration wins")
	tags, _ = reg.Relationship("post", "tags")
	assert.False(t, tags.Async)

	comments, ok := reg.Relationship("post", "comments")
	require.True(t, ok)
	assert.Equal(t, "commentable", comments.Inverse)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	a := edge.HasMany("friends", "user")
	b := edge.HasMany("tags", "tag")
	c := edge.HasMany("friends", "user").Async()

	merged := schema.Merge([]schema.Edge{a, b}, nil, []schema.Edge{c})
	require.Len(t, merged, 2)
	assert.Same(t, c, merged[0])
	assert.Same(t, b, merged[1])
	assert.Empty(t, schema.Merge())
}

const sdlSchema = `
"A user of the system."
type User {
  id: ID!
  name: String
  bestFriend: User @belongsTo(inverse: "bestFriend")
  friends: [User!]! @hasMany(async: true)
  "Pets owned by the user."
  pets: [Pet!]! @hasMany(inverse: null)
}

type Pet {
  id: ID!
  owner: User @belongsTo(polymorphic: true)
}

type Query {
  users: [User!]!
}
`

func TestLoadGraphQL(t *testing.T) {
	t.Parallel()

	reg, err := schema.LoadGraphQL("schema.graphql", sdlSchema)
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "pet"}, reg.Types())
	assert.False(t, reg.HasResourceType("query"))
	assert.Len(t, reg.Relationships("user"), 3)

	bf, ok := reg.Relationship("user", "bestFriend")
	require.True(t, ok)
	assert.Equal(t, edge.BelongsToKind, bf.Kind)
	assert.Equal(t, "user", bf.Type)
	assert.Equal(t, "bestFriend", bf.Inverse)

	friends, _ := reg.Relationship("user", "friends")
	assert.Equal(t, edge.HasManyKind, friends.Kind)
	assert.True(t, friends.Async)
	assert.False(t, friends.NoInverse)

	pets, _ := reg.Relationship("user", "pets")
	assert.Equal(t, "pet", pets.Type)
	assert.True(t, pets.NoInverse)
	assert.Equal(t, "Pets owned by the user.", pets.Comment)

	owner, _ := reg.Relationship("pet", "owner")
	assert.True(t, owner.Polymorphic)
}

func TestLoadGraphQLErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sdl  string
	}{
		{"syntax", "type User {"},
		{"list belongsTo", "type User { friends: [User] @belongsTo }"},
		{"scalar hasMany", "type User { friend: User @hasMany }"},
		{"both directives", "type User { friend: User @belongsTo @hasMany }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := schema.LoadGraphQL("bad.graphql", tt.sdl)
			require.Error(t, err)
			assert.ErrorIs(t, err, relgraph.ErrInvalidSchema)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	yml := filepath.Join(dir, "schema.yml")
	gql := filepath.Join(dir, "schema.graphql")
	txt := filepath.Join(dir, "schema.txt")
	require.NoError(t, os.WriteFile(yml, []byte(yamlSchema), 0o600))
	require.NoError(t, os.WriteFile(gql, []byte(sdlSchema), 0o600))
	require.NoError(t, os.WriteFile(txt, []byte(""), 0o600))

	reg, err := schema.LoadFile(yml)
	require.NoError(t, err)
	assert.True(t, reg.HasResourceType("pet"))

	reg, err = schema.LoadFile(gql)
	require.NoError(t, err)
	assert.True(t, reg.HasResourceType("user"))

	_, err = schema.LoadFile(txt)
	assert.Error(t, err)
	_, err = schema.LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
