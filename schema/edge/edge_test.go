package edge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relgraph/schema/edge"
)

// TestBuilders tests the BelongsTo and HasMany builders with various configurations.
func TestBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		build    func() *edge.Descriptor
		validate func(t *testing.T, desc *edge.Descriptor)
	}{
		{
			name: "basic_belongs_to",
			build: func() *edge.Descriptor {
				return edge.BelongsTo("author", "user").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, "author", desc.Name)
				assert.Equal(t, "user", desc.Type)
				assert.Equal(t, edge.BelongsToKind, desc.Kind)
				assert.False(t, desc.Async)
				assert.False(t, desc.Polymorphic)
				assert.Empty(t, desc.Inverse)
				assert.False(t, desc.NoInverse)
				assert.False(t, desc.HasDeclaredInverse())
			},
		},
		{
			name: "has_many_with_inverse",
			build: func() *edge.Descriptor {
				return edge.HasMany("posts", "post").Inverse("author").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, edge.HasManyKind, desc.Kind)
				assert.Equal(t, "author", desc.Inverse)
				assert.True(t, desc.HasDeclaredInverse())
			},
		},
		{
			name: "no_inverse_overrides_inverse",
			build: func() *edge.Descriptor {
				return edge.HasMany("tags", "tag").Inverse("posts").NoInverse().Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Empty(t, desc.Inverse)
				assert.True(t, desc.NoInverse)
				assert.False(t, desc.HasDeclaredInverse())
			},
		},
		{
			name: "inverse_overrides_no_inverse",
			build: func() *edge.Descriptor {
				return edge.HasMany("tags", "tag").NoInverse().Inverse("posts").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, "posts", desc.Inverse)
				assert.False(t, desc.NoInverse)
			},
		},
		{
			name: "all_options",
			build: func() *edge.Descriptor {
				return edge.HasMany("comments", "comment").
					Inverse("commentable").
					Async().
					Polymorphic().
					Comment("post comments").
					Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.True(t, desc.Async)
				assert.True(t, desc.Polymorphic)
				assert.Equal(t, "post comments", desc.Comment)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.validate(t, tt.build())
		})
	}
}

func TestDescriptorIsEdge(t *testing.T) {
	t.Parallel()

	desc := &edge.Descriptor{Name: "friends", Kind: edge.HasManyKind, Type: "user"}
	assert.Same(t, desc, desc.Descriptor())
}

func TestKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "belongsTo", edge.BelongsToKind.String())
	assert.Equal(t, "hasMany", edge.HasManyKind.String())
	assert.Equal(t, "Kind(9)", edge.Kind(9).String())

	for _, s := range []string{"belongsTo", "belongs_to", "belongs-to"} {
		k, err := edge.ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, edge.BelongsToKind, k)
	}
	for _, s := range []string{"hasMany", "has_many", "has-many"} {
		k, err := edge.ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, edge.HasManyKind, k)
	}
	_, err := edge.ParseKind("manyToMany")
	assert.Error(t, err)
}
