package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/graph"
	"github.com/syssam/relgraph/identity"
	"github.com/syssam/relgraph/schema"
	"github.com/syssam/relgraph/schema/edge"
)

func replaySchema() *schema.Registry {
	return schema.New().
		MustRegister("user",
			edge.BelongsTo("bestFriend", "user").Inverse("bestFriend"),
			edge.HasMany("friends", "user").Inverse("friends"),
			edge.HasMany("pets", "pet").Inverse("owner"),
			edge.HasMany("tags", "tag").NoInverse(),
		).
		MustRegister("pet", edge.BelongsTo("owner", "user").Inverse("pets")).
		MustRegister("tag")
}

func runOps(t *testing.T, r *replayer, lines ...string) error {
	t.Helper()
	return r.run("ops.jsonl", strings.NewReader(strings.Join(lines, "\n")))
}

func (r *replayer) user(id string) *identity.Identifier { return r.ids.Get("user", id) }

func memberIDs(t *testing.T, r *replayer, id *identity.Identifier, field string) []string {
	t.Helper()
	rel, err := r.g.GetData(id, field)
	require.NoError(t, err)
	require.NotNil(t, rel.Data)
	var out []string
	for _, ref := range rel.Data.Many() {
		if ref.ID != "" {
			out = append(out, ref.ID)
		} else {
			out = append(out, "lid:"+ref.LID)
		}
	}
	return out
}

// =============================================================================
// Operations
// =============================================================================

func TestReplayPushAndLocalOps(t *testing.T) {
	t.Parallel()

	r := newReplayer(replaySchema())
	err := runOps(t, r,
		`# seed`,
		`{"op":"push","record":{"type":"user","id":"1"},"field":"friends","value":{"data":[{"type":"user","id":"2"},{"type":"user","id":3}]}}`,
		``,
		`{"op":"add","record":{"type":"user","id":"1"},"field":"friends","value":[{"type":"user","id":"4"}],"index":0}`,
		`{"op":"remove","record":{"type":"user","id":"1"},"field":"friends","value":[{"type":"user","id":"3"}]}`,
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "2"}, memberIDs(t, r, r.user("1"), "friends"))

	e, err := r.g.Get(r.user("1"), "friends")
	require.NoError(t, err)
	assert.Len(t, e.(*graph.HasMany).CanonicalState(), 2)

	require.NoError(t, runOps(t, r, `{"op":"rollback","record":{"type":"users","id":"1"}}`))
	assert.ElementsMatch(t, []string{"2", "3"}, memberIDs(t, r, r.user("1"), "friends"))
}

func TestReplayRemoteOps(t *testing.T) {
	t.Parallel()

	r := newReplayer(replaySchema())
	require.NoError(t, runOps(t, r,
		`{"op":"add","record":{"type":"user","id":"1"},"field":"friends","value":[{"type":"user","id":"2"}],"remote":true}`,
		`{"op":"replace","record":{"type":"user","id":"1"},"field":"bestFriend","value":{"type":"user","id":"2"},"remote":true}`,
	))

	e, err := r.g.Get(r.user("1"), "friends")
	require.NoError(t, err)
	assert.True(t, e.(*graph.HasMany).HasCanonicalMember(r.user("2")))

	b, err := r.g.Get(r.user("2"), "bestFriend")
	require.NoError(t, err)
	assert.Equal(t, r.user("1"), b.(*graph.BelongsTo).RemoteState())
}

func TestReplayReplace(t *testing.T) {
	t.Parallel()

	r := newReplayer(replaySchema())
	require.NoError(t, runOps(t, r,
		`{"op":"replace","record":{"type":"user","id":"1"},"field":"bestFriend","value":{"type":"user","id":"2"}}`,
		`{"op":"replace","record":{"type":"user","id":"1"},"field":"friends","value":[{"type":"user","id":"3"},{"type":"user","id":"4"}]}`,
	))
	rel, err := r.g.GetData(r.user("2"), "bestFriend")
	require.NoError(t, err)
	require.NotNil(t, rel.Data.One())
	assert.Equal(t, "1", rel.Data.One().ID)

	require.NoError(t, runOps(t, r,
		`{"op":"replace","record":{"type":"user","id":"1"},"field":"bestFriend","value":null}`,
	))
	rel, err = r.g.GetData(r.user("1"), "bestFriend")
	require.NoError(t, err)
	assert.Nil(t, rel.Data, "a never loaded belongsTo cleared locally has no data")
}

func TestReplayLocalLabels(t *testing.T) {
	t.Parallel()

	r := newReplayer(replaySchema())
	require.NoError(t, runOps(t, r,
		`{"op":"add","record":{"type":"user","lid":"me"},"field":"pets","value":[{"type":"pet","lid":"rex"}]}`,
		`{"op":"push","record":{"type":"user","id":"9"},"field":"friends","value":{"data":[{"type":"user","lid":"me"}]}}`,
	))

	me, rex := r.labels["me"], r.labels["rex"]
	require.NotNil(t, me)
	require.NotNil(t, rex)
	assert.True(t, identity.IsNew(me))
	assert.NotEqual(t, "me", me.LID, "file labels map to generated lids")

	rel, err := r.g.GetData(rex, "owner")
	require.NoError(t, err)
	require.NotNil(t, rel.Data.One())
	assert.Equal(t, me.LID, rel.Data.One().LID)
	assert.Equal(t, []string{"lid:" + me.LID}, memberIDs(t, r, r.user("9"), "friends"))
}

func TestReplayUnloadAndDelete(t *testing.T) {
	t.Parallel()

	r := newReplayer(replaySchema())
	require.NoError(t, runOps(t, r,
		`{"op":"push","record":{"type":"user","id":"1"},"field":"friends","value":{"data":[{"type":"user","id":"2"},{"type":"user","id":"3"}]}}`,
		`{"op":"delete","record":{"type":"user","id":"2"}}`,
	))
	assert.Equal(t, []string{"3"}, memberIDs(t, r, r.user("1"), "friends"))

	require.NoError(t, runOps(t, r, `{"op":"remove-record","record":{"type":"user","id":"1"}}`))
	assert.False(t, r.g.Has(r.user("1"), "friends"))
}

func TestReplayErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want string
		is   error
	}{
		{name: "malformed json", line: `{"op":`, want: "ops.jsonl:2:"},
		{name: "unknown op", line: `{"op":"bogus","record":{"type":"user","id":"1"}}`, want: `ops.jsonl:2: bogus: unknown op "bogus"`},
		{name: "missing type", line: `{"op":"unload","record":{"id":"1"}}`, want: "reference without a type"},
		{name: "missing id", line: `{"op":"unload","record":{"type":"user"}}`, want: "needs an id or a lid"},
		{name: "add needs array", line: `{"op":"add","record":{"type":"user","id":"1"},"field":"friends","value":{"type":"user","id":"2"}}`, want: "expects an array"},
		{name: "bad payload", line: `{"op":"push","record":{"type":"user","id":"1"},"field":"friends","value":{"data":{"type":"user","id":"2"}}}`, is: relgraph.ErrInvalidPayload},
		{name: "unknown field", line: `{"op":"push","record":{"type":"user","id":"1"},"field":"enemies","value":{"data":[]}}`, is: relgraph.ErrInvalidSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newReplayer(replaySchema())
			err := runOps(t, r, `{"op":"unload","record":{"type":"user","id":"5"}}`, tt.line)
			require.Error(t, err)
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

// =============================================================================
// Reports
// =============================================================================

func decodeReport(t *testing.T, b []byte) Report {
	t.Helper()
	var rep Report
	require.NoError(t, json.Unmarshal(b, &rep))
	return rep
}

func findEdge(rep Report, typ, id, field string) (EdgeData, bool) {
	for _, e := range rep.Edges {
		if e.Record.Type == typ && e.Record.ID == id && e.Field == field {
			return e, true
		}
	}
	return EdgeData{}, false
}

func TestReport(t *testing.T) {
	t.Parallel()

	r := newReplayer(replaySchema())
	require.NoError(t, runOps(t, r,
		`{"op":"push","record":{"type":"user","id":"1"},"field":"bestFriend","value":{"data":{"type":"user","id":"2"},"links":{"related":"/users/1/best-friend"}}}`,
		`{"op":"add","record":{"type":"user","id":"1"},"field":"tags","value":[{"type":"tag","id":"t"}]}`,
	))
	rep, err := r.report()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, rep))
	out := decodeReport(t, buf.Bytes())

	var notified []string
	for _, n := range out.Notifications {
		notified = append(notified, n.Record.Type+":"+n.Record.ID+"."+n.Field)
	}
	assert.Contains(t, notified, "user:1.bestFriend")
	assert.Contains(t, notified, "user:2.bestFriend")
	e, ok := findEdge(out, "user", "1", "bestFriend")
	require.True(t, ok)
	require.NotNil(t, e.Relationship.Data.One())
	assert.Equal(t, "2", e.Relationship.Data.One().ID)
	assert.Equal(t, "/users/1/best-friend", e.Relationship.Links.Related())

	inv, ok := findEdge(out, "user", "2", "bestFriend")
	require.True(t, ok)
	assert.Equal(t, "1", inv.Relationship.Data.One().ID)

	_, ok = findEdge(out, "tag", "t", graph.ImplicitKey("user", "tags"))
	assert.False(t, ok, "implicit edges are not reported")
}

func TestReportAll(t *testing.T) {
	t.Parallel()

	r := newReplayer(replaySchema())
	require.NoError(t, runOps(t, r,
		`{"op":"push","record":{"type":"pet","id":"p"},"field":"owner","value":{"data":{"type":"user","id":"1"}}}`,
	))
	r.notes, r.touched = nil, nil
	clear(r.seen)

	rep, err := r.reportAll()
	require.NoError(t, err)
	assert.Empty(t, rep.Notifications)
	_, ok := findEdge(*rep, "pet", "p", "owner")
	assert.True(t, ok)
	_, ok = findEdge(*rep, "user", "1", "pets")
	assert.True(t, ok)
}
