package graph

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/relgraph/identity"
	"github.com/syssam/relgraph/jsonapi"
	"github.com/syssam/relgraph/notify"
	"github.com/syssam/relgraph/schema"
	"github.com/syssam/relgraph/schema/edge"
)

// testSchema declares:
//
//	user.bestFriend <-> user.bestFriend   sync belongsTo, self inverse
//	user.friends    <-> user.friends      sync hasMany, self inverse
//	user.followers  <-> user.following    async hasMany
//	user.pets       <-> pet.owner         sync hasMany / belongsTo
//	user.tags        -> tag               no inverse
//	user.comments   <-> comment.commentable (polymorphic)
//	post.comments   <-> comment.commentable (polymorphic)
func testSchema() *schema.Registry {
	return schema.New().
		MustRegister("user",
			edge.BelongsTo("bestFriend", "user").Inverse("bestFriend"),
			edge.HasMany("friends", "user").Inverse("friends"),
			edge.HasMany("followers", "user").Inverse("following").Async(),
			edge.HasMany("following", "user").Inverse("followers").Async(),
			edge.HasMany("pets", "pet").Inverse("owner"),
			edge.HasMany("tags", "tag").NoInverse(),
			edge.HasMany("comments", "comment").Inverse("commentable"),
		).
		MustRegister("pet", edge.BelongsTo("owner", "user").Inverse("pets")).
		MustRegister("tag").
		MustRegister("comment", edge.BelongsTo("commentable", "commentable").Inverse("comments").Polymorphic()).
		MustRegister("post", edge.HasMany("comments", "comment").Inverse("commentable"))
}

type change struct {
	id    *identity.Identifier
	field string
}

type fixture struct {
	t       *testing.T
	g       *Graph
	ids     *identity.Cache
	changes []change
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{t: t, ids: identity.NewCache(), logs: &bytes.Buffer{}}
	base := []Option{
		WithIdentifiers(f.ids),
		WithLogger(slog.New(slog.NewTextHandler(f.logs, nil))),
		WithNotifier(notify.NotifierFunc(func(id *identity.Identifier, field string) {
			f.changes = append(f.changes, change{id, field})
		})),
	}
	f.g = New(testSchema(), append(base, opts...)...)
	return f
}

func (f *fixture) user(id string) *identity.Identifier { return f.ids.Get("user", id) }

func (f *fixture) rec(typ, id string) *identity.Identifier { return f.ids.Get(typ, id) }

func (f *fixture) reset() { f.changes = nil }

// count returns how many notifications id.field received.
func (f *fixture) count(id *identity.Identifier, field string) int {
	n := 0
	for _, c := range f.changes {
		if c.id == id && c.field == field {
			n++
		}
	}
	return n
}

func (f *fixture) push(id *identity.Identifier, field string, rel jsonapi.Relationship) {
	f.t.Helper()
	require.NoError(f.t, f.g.Push(UpdateRelationship{Record: id, Field: field, Value: rel}))
}

func (f *fixture) pushMany(id *identity.Identifier, field string, members ...*identity.Identifier) {
	f.t.Helper()
	f.push(id, field, jsonapi.Relationship{Data: jsonapi.Many(Refs(members)...)})
}

func (f *fixture) pushOne(id *identity.Identifier, field string, member *identity.Identifier) {
	f.t.Helper()
	data := jsonapi.Null()
	if member != nil {
		data = jsonapi.One(Ref(member))
	}
	f.push(id, field, jsonapi.Relationship{Data: data})
}

func (f *fixture) update(op Operation) {
	f.t.Helper()
	require.NoError(f.t, f.g.Update(op))
}

func (f *fixture) hasMany(id *identity.Identifier, field string) *HasMany {
	f.t.Helper()
	e, err := f.g.Get(id, field)
	require.NoError(f.t, err)
	hm, ok := e.(*HasMany)
	require.True(f.t, ok, "%s.%s is %T", id, field, e)
	return hm
}

func (f *fixture) belongsTo(id *identity.Identifier, field string) *BelongsTo {
	f.t.Helper()
	e, err := f.g.Get(id, field)
	require.NoError(f.t, err)
	bt, ok := e.(*BelongsTo)
	require.True(f.t, ok, "%s.%s is %T", id, field, e)
	return bt
}

func ids(list ...*identity.Identifier) []*identity.Identifier { return list }

// holdsLocal reports whether owner.key currently points at member.
func holdsLocal(g *Graph, owner *identity.Identifier, key string, member *identity.Identifier) bool {
	if !g.Has(owner, key) {
		return false
	}
	switch e := g.edge(owner, key).(type) {
	case *HasMany:
		return e.current.has(member)
	case *BelongsTo:
		return e.local == member
	case *Implicit:
		return e.members.has(member)
	}
	return false
}

// checkLocalConsistency asserts that every local reference is mirrored by
// the inverse edge and that member sets and lists agree.
func checkLocalConsistency(t *testing.T, g *Graph) {
	t.Helper()
	for _, id := range g.Records() {
		for _, e := range g.Edges(id) {
			inverse := e.Definition().Inverse
			var members []*identity.Identifier
			switch e := e.(type) {
			case *HasMany:
				checkMemberList(t, &e.current)
				checkMemberList(t, &e.canonical)
				members = e.current.list
			case *BelongsTo:
				if e.local != nil {
					members = ids(e.local)
				}
			case *Implicit:
				checkMemberList(t, &e.members)
				checkMemberList(t, &e.canonicalMembers)
				members = e.members.list
			}
			for _, m := range members {
				require.True(t, holdsLocal(g, m, inverse, id),
					"%s.%s holds %s but %s.%s does not hold it back", id, e.Definition().Key, m, m, inverse)
			}
		}
	}
}

func checkMemberList(t *testing.T, m *memberList) {
	t.Helper()
	require.Len(t, m.set, len(m.list))
	for _, id := range m.list {
		_, ok := m.set[id]
		require.True(t, ok, "%s in list but not in set", id)
	}
}
