// Package fetch loads relationship data that the graph does not hold yet.
//
// A Loader sits between a graph.Graph and a Gateway that talks to the source
// of truth. It decides whether an edge needs a fetch, makes sure at most one
// fetch per (record, field) is in flight, and pushes the result into the
// graph as canonical state:
//
//	l := fetch.NewLoader(g, fetch.GatewayFunc(func(ctx context.Context, req fetch.Request) (jsonapi.Relationship, error) {
//	    return client.Related(ctx, req.Current.Links.Related())
//	}))
//	rel, err := l.Load(ctx, user1, "followers")
//
// Loaders are safe for concurrent use. Graph access is serialized by the
// loader, so notifiers of a graph driven by a Loader must not call back
// into it.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/graph"
	"github.com/syssam/relgraph/identity"
	"github.com/syssam/relgraph/jsonapi"
)

// Request describes one relationship fetch.
type Request struct {
	Record     *identity.Identifier
	Field      string
	Definition *graph.Definition
	// Current is the relationship object held by the graph, links included.
	Current jsonapi.Relationship
	// ForceReload is set when cached data must be bypassed.
	ForceReload bool
}

// Gateway fetches the related resources of a relationship.
type Gateway interface {
	FetchRelated(ctx context.Context, req Request) (jsonapi.Relationship, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req Request) (jsonapi.Relationship, error)

// FetchRelated calls f(ctx, req).
func (f GatewayFunc) FetchRelated(ctx context.Context, req Request) (jsonapi.Relationship, error) {
	return f(ctx, req)
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		ld.log = l
	}
}

// WithMetrics records fetch activity in m.
func WithMetrics(m *Metrics) Option {
	return func(ld *Loader) {
		ld.metrics = m
	}
}

// WithConcurrency limits how many fetches LoadAll and LoadMany run at once.
// Zero or a negative value means no limit.
func WithConcurrency(n int) Option {
	return func(ld *Loader) {
		ld.limit = n
	}
}

// Loader fetches relationship data through a Gateway and applies it to a graph.
type Loader struct {
	mu      sync.Mutex // guards g
	g       *graph.Graph
	gw      Gateway
	group   singleflight.Group
	log     *slog.Logger
	metrics *Metrics
	limit   int
}

// NewLoader returns a Loader for g.
func NewLoader(g *graph.Graph, gw Gateway, opts ...Option) *Loader {
	l := &Loader{g: g, gw: gw}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	return l
}

// Graph returns the graph the loader applies results to. Callers must not
// use it concurrently with the loader.
func (l *Loader) Graph() *graph.Graph { return l.g }

// Load returns the relationship object of id.field. It fetches first when
// the edge has no usable data; callers asking for an edge that is already
// being fetched wait for that fetch instead of starting another one.
func (l *Loader) Load(ctx context.Context, id *identity.Identifier, field string) (jsonapi.Relationship, error) {
	req, ok, err := l.prepare(id, field, false)
	if err != nil || !ok {
		return req.Current, err
	}
	return l.do(ctx, req)
}

// Reload fetches id.field regardless of the data the graph holds, clearing
// a previous failure.
func (l *Loader) Reload(ctx context.Context, id *identity.Identifier, field string) (jsonapi.Relationship, error) {
	req, _, err := l.prepare(id, field, true)
	if err != nil {
		return jsonapi.Relationship{}, err
	}
	return l.do(ctx, req)
}

// LoadAll loads several relationships of id concurrently. The results are
// in the order of fields; the first error cancels the remaining fetches.
func (l *Loader) LoadAll(ctx context.Context, id *identity.Identifier, fields ...string) ([]jsonapi.Relationship, error) {
	out := make([]jsonapi.Relationship, len(fields))
	eg, ctx := errgroup.WithContext(ctx)
	if l.limit > 0 {
		eg.SetLimit(l.limit)
	}
	for i, field := range fields {
		eg.Go(func() error {
			rel, err := l.Load(ctx, id, field)
			if err != nil {
				return err
			}
			out[i] = rel
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Result is the outcome of loading one record in LoadMany.
type Result struct {
	Record *identity.Identifier
	Value  jsonapi.Relationship
	Err    error
}

// LoadMany loads the same relationship of several records. Every record
// gets a Result in the order of ids; a failure does not stop the others.
func (l *Loader) LoadMany(ctx context.Context, ids []*identity.Identifier, field string) []Result {
	out := make([]Result, len(ids))
	var eg errgroup.Group
	if l.limit > 0 {
		eg.SetLimit(l.limit)
	}
	for i, id := range ids {
		eg.Go(func() error {
			rel, err := l.Load(ctx, id, field)
			out[i] = Result{Record: id, Value: rel, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// Errors returns the errors of results, or nil when all succeeded.
func Errors(results []Result) error {
	errs := make([]error, 0, len(results))
	for _, r := range results {
		errs = append(errs, r.Err)
	}
	return relgraph.NewAggregateError(errs...)
}

// prepare reads the edge under the lock and reports whether it needs a fetch.
func (l *Loader) prepare(id *identity.Identifier, field string, force bool) (Request, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.g.Get(id, field)
	if err != nil {
		return Request{}, false, err
	}
	st := graph.StateOf(e)
	if st == nil {
		return Request{}, false, fmt.Errorf("fetch: %s.%s: %w", id, field, relgraph.ErrImplicitEdge)
	}
	if force {
		st.ShouldForceReload = true
		st.HasFailedLoadAttempt = false
	}
	current, err := l.g.GetData(id, field)
	if err != nil {
		return Request{}, false, err
	}
	req := Request{
		Record:      id,
		Field:       field,
		Definition:  e.Definition(),
		Current:     current,
		ForceReload: st.ShouldForceReload,
	}
	return req, NeedsFetch(e.Definition(), st), nil
}

// NeedsFetch reports whether an edge must be fetched before its data can be
// trusted. Sync relationships are only fetched on an explicit reload.
func NeedsFetch(def *graph.Definition, st *graph.State) bool {
	if st.ShouldForceReload {
		return true
	}
	if !def.IsAsync {
		return false
	}
	return !st.HasReceivedData || st.IsStale || st.HasDematerializedInverse || st.HasFailedLoadAttempt
}

func key(id *identity.Identifier, field string) string {
	return id.LID + "\x00" + field
}

// do runs the fetch for req, joining a fetch of the same edge in flight.
func (l *Loader) do(ctx context.Context, req Request) (jsonapi.Relationship, error) {
	k := key(req.Record, req.Field)
	leader := false
	v, err, _ := l.group.Do(k, func() (any, error) {
		leader = true
		return l.fetch(ctx, k, req)
	})
	if !leader {
		l.metrics.joined()
	}
	if err != nil {
		return jsonapi.Relationship{}, err
	}
	return v.(jsonapi.Relationship), nil
}

func (l *Loader) fetch(ctx context.Context, k string, req Request) (jsonapi.Relationship, error) {
	done := l.metrics.start(req.Definition.Kind)
	start := time.Now()
	rel, err := l.gw.FetchRelated(ctx, req)
	// Later callers must start a new fetch once this result is applied.
	l.group.Forget(k)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		err = l.g.Push(graph.UpdateRelationship{Record: req.Record, Field: req.Field, Value: rel})
	}
	if err != nil {
		done(outcomeError)
		l.fail(req)
		l.log.Warn("relationship fetch failed",
			"type", req.Record.Type, "lid", req.Record.LID, "field", req.Field,
			"duration", time.Since(start), "error", err)
		if errors.Is(err, relgraph.ErrDestroyed) {
			return jsonapi.Relationship{}, err
		}
		return jsonapi.Relationship{}, &relgraph.FetchError{Type: req.Record.Type, LID: req.Record.LID, Field: req.Field, Err: err}
	}
	done(outcomeOK)
	e, err := l.g.Get(req.Record, req.Field)
	if err != nil {
		return jsonapi.Relationship{}, err
	}
	st := graph.StateOf(e)
	st.ShouldForceReload = false
	st.HasFailedLoadAttempt = false
	if rel.Data != nil {
		st.HasDematerializedInverse = false
	}
	l.log.Debug("relationship fetched",
		"type", req.Record.Type, "lid", req.Record.LID, "field", req.Field, "duration", time.Since(start))
	return l.g.GetData(req.Record, req.Field)
}

// fail marks the edge of req as failed. The lock must be held.
func (l *Loader) fail(req Request) {
	e, err := l.g.Get(req.Record, req.Field)
	if err != nil {
		return
	}
	if st := graph.StateOf(e); st != nil {
		st.HasFailedLoadAttempt = true
		st.ShouldForceReload = false
	}
}

type ctxKey struct{}

// NewContext returns a context carrying l.
func NewContext(ctx context.Context, l *Loader) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the Loader stored in ctx, or nil.
func FromContext(ctx context.Context) *Loader {
	l, _ := ctx.Value(ctxKey{}).(*Loader)
	return l
}
