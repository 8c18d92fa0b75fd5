// Package snapshot captures the canonical relationship state of a graph and
// restores it into another graph.
//
// Only state confirmed by the source of truth is captured: local pending
// changes, implicit edges and references to records that were never
// persisted are left out. Restoring a snapshot replays it as
// UpdateRelationship operations, so the target graph validates every
// reference and keeps inverses consistent on its own.
//
//	data, err := snapshot.Encode(snapshot.Capture(g))
//	...
//	snap, err := snapshot.Decode(data)
//	err = snapshot.Restore(other, snap)
package snapshot

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/graph"
	"github.com/syssam/relgraph/identity"
	"github.com/syssam/relgraph/jsonapi"
)

// FormatVersion is the version written by Encode. Decode rejects others.
const FormatVersion = 1

// Snapshot is the canonical relationship state of a graph.
type Snapshot struct {
	Version int      `msgpack:"v"`
	Records []Record `msgpack:"r"`
}

// Record holds the captured relationships of one persisted resource.
type Record struct {
	Type          string         `msgpack:"t"`
	ID            string         `msgpack:"i"`
	Relationships []Relationship `msgpack:"rel"`
}

// Relationship is the canonical state of one edge.
type Relationship struct {
	Field string `msgpack:"f"`
	// HasData is false for edges that only received links or meta.
	HasData bool            `msgpack:"d"`
	Many    bool            `msgpack:"m"`
	Members []Ref           `msgpack:"mem,omitempty"`
	Links   map[string]Link `msgpack:"l,omitempty"`
	Meta    map[string]any  `msgpack:"meta,omitempty"`
}

// Ref is a persisted related resource.
type Ref struct {
	Type string `msgpack:"t"`
	ID   string `msgpack:"i"`
}

// Link is a captured relationship link.
type Link struct {
	Href string         `msgpack:"h"`
	Meta map[string]any `msgpack:"m,omitempty"`
}

// Capture returns the canonical state of every persisted record of g.
func Capture(g *graph.Graph) *Snapshot {
	snap := &Snapshot{Version: FormatVersion}
	for _, id := range g.Records() {
		if !persisted(g, id) {
			continue
		}
		rec := Record{Type: id.Type, ID: id.ID}
		for _, e := range g.Edges(id) {
			if rel, ok := capture(g, e); ok {
				rec.Relationships = append(rec.Relationships, rel)
			}
		}
		if len(rec.Relationships) > 0 {
			snap.Records = append(snap.Records, rec)
		}
	}
	return snap
}

// persisted reports whether id can be written to a snapshot: the graph
// treats it as persisted and it carries a server id.
func persisted(g *graph.Graph, id *identity.Identifier) bool {
	return id.ID != "" && !g.IsNew(id)
}

func capture(g *graph.Graph, e graph.Edge) (Relationship, bool) {
	st := graph.StateOf(e)
	if st == nil {
		return Relationship{}, false
	}
	rel := Relationship{Field: e.Definition().Key, HasData: st.HasReceivedData}
	var links jsonapi.Links
	switch e := e.(type) {
	case *graph.BelongsTo:
		if remote := e.RemoteState(); remote != nil && persisted(g, remote) {
			rel.Members = []Ref{{Type: remote.Type, ID: remote.ID}}
		}
		links, rel.Meta = e.Links(), e.Meta()
	case *graph.HasMany:
		rel.Many = true
		for _, m := range e.CanonicalState() {
			if persisted(g, m) {
				rel.Members = append(rel.Members, Ref{Type: m.Type, ID: m.ID})
			}
		}
		links, rel.Meta = e.Links(), e.Meta()
	}
	for name, l := range links {
		if l == nil {
			continue
		}
		if rel.Links == nil {
			rel.Links = make(map[string]Link, len(links))
		}
		rel.Links[name] = Link{Href: l.Href, Meta: l.Meta}
	}
	if !rel.HasData && len(rel.Links) == 0 && len(rel.Meta) == 0 {
		return Relationship{}, false
	}
	return rel, true
}

// Restore pushes snap into g as canonical state. Errors of individual
// relationships are collected; the remaining relationships are still applied.
func Restore(g *graph.Graph, snap *Snapshot) error {
	if snap.Version != FormatVersion {
		return fmt.Errorf("snapshot: version %d: %w", snap.Version, relgraph.ErrInvalidSnapshot)
	}
	ids := g.Identifiers()
	var errs []error
	for _, rec := range snap.Records {
		owner := ids.Get(rec.Type, rec.ID)
		for _, rel := range rec.Relationships {
			if err := g.Push(graph.UpdateRelationship{Record: owner, Field: rel.Field, Value: rel.payload()}); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return relgraph.NewAggregateError(errs...)
}

func (r Relationship) payload() jsonapi.Relationship {
	var out jsonapi.Relationship
	if r.HasData {
		refs := make([]jsonapi.Reference, len(r.Members))
		for i, m := range r.Members {
			refs[i] = jsonapi.Reference{Type: m.Type, ID: m.ID}
		}
		switch {
		case r.Many:
			out.Data = jsonapi.Many(refs...)
		case len(refs) == 0:
			out.Data = jsonapi.Null()
		default:
			out.Data = jsonapi.One(refs[0])
		}
	}
	if len(r.Links) > 0 {
		out.Links = make(jsonapi.Links, len(r.Links))
		for name, l := range r.Links {
			out.Links[name] = &jsonapi.Link{Href: l.Href, Meta: l.Meta}
		}
	}
	if len(r.Meta) > 0 {
		out.Meta = r.Meta
	}
	return out
}

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Encode serializes snap with msgpack and compresses it with zstd.
func Encode(snap *Snapshot) ([]byte, error) {
	raw, err := msgpack.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return encoder.EncodeAll(raw, nil), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*Snapshot, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress: %w: %w", relgraph.ErrInvalidSnapshot, err)
	}
	var snap Snapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w: %w", relgraph.ErrInvalidSnapshot, err)
	}
	if snap.Version != FormatVersion {
		return nil, fmt.Errorf("snapshot: version %d: %w", snap.Version, relgraph.ErrInvalidSnapshot)
	}
	return &snap, nil
}
