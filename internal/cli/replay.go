package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/graph"
	"github.com/syssam/relgraph/identity"
	"github.com/syssam/relgraph/jsonapi"
	"github.com/syssam/relgraph/notify"
	"github.com/syssam/relgraph/schema"
	"github.com/syssam/relgraph/snapshot"
)

// opLine is one line of an operations file:
//
//	{"op": "push", "record": {"type": "user", "id": "1"}, "field": "friends", "value": {"data": [...]}}
//	{"op": "add", "record": {"type": "user", "id": "1"}, "field": "friends", "value": [{"type": "user", "lid": "new-1"}]}
//	{"op": "unload", "record": {"type": "user", "id": "2"}}
//
// Records without an id are client-created; their lid is a label local to
// the file. Local operations (add, remove, replace) are applied as remote
// state when remote is true.
type opLine struct {
	Op     string            `json:"op"`
	Record jsonapi.Reference `json:"record"`
	Field  string            `json:"field,omitempty"`
	Value  json.RawMessage   `json:"value,omitempty"`
	Index  *int              `json:"index,omitempty"`
	Remote bool              `json:"remote,omitempty"`
}

type edgeKey struct {
	id    *identity.Identifier
	field string
}

// Report is the output of a replay.
type Report struct {
	Notifications []Notification `json:"notifications"`
	Edges         []EdgeData     `json:"edges"`
}

// Notification is one delivered change notification.
type Notification struct {
	Record jsonapi.Reference `json:"record"`
	Field  string            `json:"field"`
}

// EdgeData is the relationship object of one edge after the replay.
type EdgeData struct {
	Record       jsonapi.Reference    `json:"record"`
	Field        string               `json:"field"`
	Relationship jsonapi.Relationship `json:"relationship"`
}

// replayer applies operation lines to a graph.
type replayer struct {
	g       *graph.Graph
	ids     *identity.Cache
	labels  map[string]*identity.Identifier // file lid label -> local identifier
	touched []edgeKey
	seen    map[edgeKey]bool
	notes   []Notification
}

func newReplayer(reg *schema.Registry, opts ...graph.Option) *replayer {
	r := &replayer{
		ids:    identity.NewCache(),
		labels: make(map[string]*identity.Identifier),
		seen:   make(map[edgeKey]bool),
	}
	base := []graph.Option{
		graph.WithIdentifiers(r.ids),
		graph.WithNotifier(notify.NotifierFunc(func(id *identity.Identifier, field string) {
			r.notes = append(r.notes, Notification{Record: graph.Ref(id), Field: field})
			r.touch(id, field)
		})),
	}
	r.g = graph.New(reg, append(base, opts...)...)
	return r
}

func (r *replayer) touch(id *identity.Identifier, field string) {
	k := edgeKey{id, field}
	if !r.seen[k] {
		r.seen[k] = true
		r.touched = append(r.touched, k)
	}
}

// ident returns the identifier a file reference stands for.
func (r *replayer) ident(ref jsonapi.Reference) (*identity.Identifier, error) {
	typ := schema.NormalizeType(ref.Type)
	switch {
	case typ == "":
		return nil, errors.New("reference without a type")
	case ref.ID != "":
		return r.ids.Get(typ, ref.ID), nil
	case ref.LID != "":
		if id, ok := r.labels[ref.LID]; ok {
			return id, nil
		}
		id := r.ids.CreateLocal(typ)
		r.labels[ref.LID] = id
		return id, nil
	default:
		return nil, fmt.Errorf("%s reference needs an id or a lid", typ)
	}
}

func (r *replayer) idents(refs []jsonapi.Reference) ([]*identity.Identifier, error) {
	out := make([]*identity.Identifier, 0, len(refs))
	for _, ref := range refs {
		id, err := r.ident(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// local maps the lid labels of a payload reference to real lids.
func (r *replayer) local(ref jsonapi.Reference) (jsonapi.Reference, error) {
	if ref.ID != "" || ref.LID == "" {
		return ref, nil
	}
	id, err := r.ident(ref)
	if err != nil {
		return ref, err
	}
	ref.LID = id.LID
	return ref, nil
}

func (r *replayer) payload(raw json.RawMessage) (jsonapi.Relationship, error) {
	var rel jsonapi.Relationship
	if err := json.Unmarshal(raw, &rel); err != nil {
		return rel, fmt.Errorf("invalid relationship object: %w", err)
	}
	switch d := rel.Data; {
	case d == nil || d.IsNull():
	case d.IsMany():
		refs := make([]jsonapi.Reference, 0, d.Len())
		for _, ref := range d.Many() {
			ref, err := r.local(ref)
			if err != nil {
				return rel, err
			}
			refs = append(refs, ref)
		}
		rel.Data = jsonapi.Many(refs...)
	default:
		ref, err := r.local(*d.One())
		if err != nil {
			return rel, err
		}
		rel.Data = jsonapi.One(ref)
	}
	return rel, nil
}

// apply runs one operation line.
func (r *replayer) apply(line opLine) error {
	id, err := r.ident(line.Record)
	if err != nil {
		return err
	}
	if line.Field != "" {
		r.touch(id, line.Field)
	}
	apply := r.g.Update
	if line.Remote {
		apply = r.g.Push
	}
	switch line.Op {
	case "push":
		rel, err := r.payload(line.Value)
		if err != nil {
			return err
		}
		return r.g.Push(graph.UpdateRelationship{Record: id, Field: line.Field, Value: rel})
	case "add", "remove":
		var refs []jsonapi.Reference
		if err := json.Unmarshal(line.Value, &refs); err != nil {
			return fmt.Errorf("%s expects an array of references: %w", line.Op, err)
		}
		members, err := r.idents(refs)
		if err != nil {
			return err
		}
		if line.Op == "remove" {
			return apply(graph.RemoveFromRelatedRecords{Record: id, Field: line.Field, Value: members})
		}
		index := -1
		if line.Index != nil {
			index = *line.Index
		}
		return apply(graph.AddToRelatedRecords{Record: id, Field: line.Field, Value: members, Index: index})
	case "replace":
		v := bytes.TrimSpace(line.Value)
		switch {
		case len(v) > 0 && v[0] == '[':
			var refs []jsonapi.Reference
			if err := json.Unmarshal(v, &refs); err != nil {
				return err
			}
			members, err := r.idents(refs)
			if err != nil {
				return err
			}
			return apply(graph.ReplaceRelatedRecords{Record: id, Field: line.Field, Value: members})
		case len(v) == 0 || bytes.Equal(v, []byte("null")):
			return apply(graph.ReplaceRelatedRecord{Record: id, Field: line.Field})
		default:
			var ref jsonapi.Reference
			if err := json.Unmarshal(v, &ref); err != nil {
				return err
			}
			member, err := r.ident(ref)
			if err != nil {
				return err
			}
			return apply(graph.ReplaceRelatedRecord{Record: id, Field: line.Field, Value: member})
		}
	case "unload":
		return r.g.Unload(id)
	case "remove-record":
		return r.g.Remove(id)
	case "delete":
		return r.g.Push(graph.DeleteRecord{Record: id})
	case "rollback":
		return r.g.RollbackRelationships(id)
	default:
		return fmt.Errorf("unknown op %q", line.Op)
	}
}

// run applies every line of src. The first failing line stops the replay.
func (r *replayer) run(name string, src io.Reader) error {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for n := 1; sc.Scan(); n++ {
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var line opLine
		if err := json.Unmarshal(text, &line); err != nil {
			return fmt.Errorf("%s:%d: %w", name, n, err)
		}
		if err := r.apply(line); err != nil {
			return fmt.Errorf("%s:%d: %s: %w", name, n, line.Op, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// report returns the notifications and the data of every touched edge that
// still exists. Implicit edges have no relationship object and are skipped.
func (r *replayer) report() (*Report, error) {
	rep := &Report{Notifications: r.notes, Edges: []EdgeData{}}
	if rep.Notifications == nil {
		rep.Notifications = []Notification{}
	}
	for _, k := range r.touched {
		if !r.g.Has(k.id, k.field) {
			continue
		}
		rel, err := r.g.GetData(k.id, k.field)
		if errors.Is(err, relgraph.ErrImplicitEdge) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rep.Edges = append(rep.Edges, EdgeData{Record: graph.Ref(k.id), Field: k.field, Relationship: rel})
	}
	return rep, nil
}

// reportAll is report over every edge of the graph.
func (r *replayer) reportAll() (*Report, error) {
	for _, id := range r.g.Records() {
		for _, e := range r.g.Edges(id) {
			r.touch(id, e.Definition().Key)
		}
	}
	return r.report()
}

func writeReport(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func newReplayCmd(a *app) *cobra.Command {
	var (
		schemaPath string
		save       string
		restore    string
		watch      bool
	)
	cmd := &cobra.Command{
		Use:   "replay OPS.jsonl",
		Short: "Replay relationship operations and print the resulting relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opsPath := args[0]
			once := func(ctx context.Context) error {
				return a.replay(ctx, cmd.OutOrStdout(), schemaPath, opsPath, restore, save)
			}
			if !watch {
				return once(cmd.Context())
			}
			ctx := cmd.Context()
			return watchFiles(ctx, a.log, []string{schemaPath, opsPath}, a.cfg.WatchDebounce, func() {
				if err := once(ctx); err != nil {
					a.log.Error("replay failed", "error", err)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "schema file (.yaml, .yml, .graphql, .gql)")
	cmd.Flags().StringVar(&save, "snapshot", "", "save the canonical state under this snapshot name")
	cmd.Flags().StringVar(&restore, "restore", "", "restore this snapshot before replaying")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "replay again whenever the schema or operations file changes")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func (a *app) replay(ctx context.Context, out io.Writer, schemaPath, opsPath, restore, save string) error {
	reg, err := schema.LoadFile(schemaPath)
	if err != nil {
		return err
	}
	r := newReplayer(reg, graph.WithLogger(a.log))

	var store *snapshot.Store
	if restore != "" || save != "" {
		s, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		store = s
	}
	if restore != "" {
		if err := store.Load(ctx, snapshotKey(restore), r.g); err != nil {
			return err
		}
		// Restored state is the starting point, not part of the output.
		r.notes, r.touched = nil, nil
		clear(r.seen)
	}

	f, err := os.Open(opsPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := r.run(opsPath, f); err != nil {
		return err
	}
	rep, err := r.report()
	if err != nil {
		return err
	}
	if save != "" {
		if err := store.Save(ctx, snapshotKey(save), r.g); err != nil {
			return err
		}
	}
	a.log.Info("replay finished", "ops", opsPath, "notifications", len(rep.Notifications), "edges", len(rep.Edges))
	return writeReport(out, rep)
}
