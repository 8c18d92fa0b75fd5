package graph

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/identity"
	"github.com/syssam/relgraph/jsonapi"
	"github.com/syssam/relgraph/notify"
)

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used for payload diagnostics.
// The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		g.log = l
	}
}

// WithNotifier delivers change notifications synchronously to n.
func WithNotifier(n notify.Notifier) Option {
	return func(g *Graph) {
		g.batcher = notify.NewBatcher(n)
	}
}

// WithBatcher delivers change notifications through b, which may defer
// flushing to a scheduler.
func WithBatcher(b *notify.Batcher) Option {
	return func(g *Graph) {
		g.batcher = b
	}
}

// WithIdentifiers sets the identifier cache used to resolve payload
// references.
func WithIdentifiers(c *identity.Cache) Option {
	return func(g *Graph) {
		g.idents = c
	}
}

// WithIsNew overrides how the graph decides that a resource was never
// persisted. The default is identity.IsNew.
func WithIsNew(fn func(*identity.Identifier) bool) Option {
	return func(g *Graph) {
		g.isNew = fn
	}
}

// node holds the edges of one identifier in creation order.
type node struct {
	edges map[string]Edge
	keys  []string
}

// Graph is the registry of relationship edges of one store session.
// It is not safe for concurrent use.
type Graph struct {
	schema   Schema
	resolver *Resolver
	nodes    map[*identity.Identifier]*node
	order    []*identity.Identifier

	batcher   *notify.Batcher
	log       *slog.Logger
	idents    *identity.Cache
	isNew     func(*identity.Identifier) bool
	destroyed bool
}

// New returns an empty graph over s.
func New(s Schema, opts ...Option) *Graph {
	g := &Graph{
		schema:   s,
		resolver: NewResolver(s),
		nodes:    make(map[*identity.Identifier]*node),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.batcher == nil {
		g.batcher = notify.NewBatcher(nil)
	}
	if g.idents == nil {
		g.idents = identity.NewCache()
	}
	if g.isNew == nil {
		g.isNew = identity.IsNew
	}
	return g
}

// Resolver returns the definition resolver of the graph.
func (g *Graph) Resolver() *Resolver { return g.resolver }

// Schema returns the schema the graph validates against.
func (g *Graph) Schema() Schema { return g.schema }

// Identifiers returns the identifier cache used for payload references.
func (g *Graph) Identifiers() *identity.Cache { return g.idents }

// Batcher returns the notification batcher.
func (g *Graph) Batcher() *notify.Batcher { return g.batcher }

// Has reports whether the edge for id.field was created.
func (g *Graph) Has(id *identity.Identifier, field string) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	_, ok = n.edges[field]
	return ok
}

// Get returns the edge for id.field, creating it on first access.
// The inverse edge is not created.
func (g *Graph) Get(id *identity.Identifier, field string) (Edge, error) {
	if g.destroyed {
		return nil, relgraph.ErrDestroyed
	}
	if id == nil {
		return nil, fmt.Errorf("graph: get %q: nil identifier", field)
	}
	if n, ok := g.nodes[id]; ok {
		if e, ok := n.edges[field]; ok {
			return e, nil
		}
	}
	def, err := g.resolver.Resolve(id.Type, field)
	if err != nil {
		return nil, err
	}
	return g.create(id, def), nil
}

func (g *Graph) create(id *identity.Identifier, def *Definition) Edge {
	n, ok := g.nodes[id]
	if !ok {
		n = &node{edges: make(map[string]Edge)}
		g.nodes[id] = n
		g.order = append(g.order, id)
	}
	e := newEdge(def, id)
	n.edges[def.Key] = e
	n.keys = append(n.keys, def.Key)
	return e
}

// edge is Get for internal callers whose inputs were validated.
func (g *Graph) edge(id *identity.Identifier, field string) Edge {
	e, err := g.Get(id, field)
	if err != nil {
		panic(fmt.Sprintf("graph: unvalidated edge %s.%s: %v", id, field, err))
	}
	return e
}

// GetData returns the relationship object of id.field.
func (g *Graph) GetData(id *identity.Identifier, field string) (jsonapi.Relationship, error) {
	e, err := g.Get(id, field)
	if err != nil {
		return jsonapi.Relationship{}, err
	}
	switch e := e.(type) {
	case *BelongsTo:
		return e.GetData(), nil
	case *HasMany:
		return e.GetData(), nil
	default:
		return jsonapi.Relationship{}, fmt.Errorf("graph: get data %s.%s: %w", id, field, relgraph.ErrImplicitEdge)
	}
}

// Edges returns the edges created for id, in creation order.
func (g *Graph) Edges(id *identity.Identifier) []Edge {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	edges := make([]Edge, 0, len(n.keys))
	for _, k := range n.keys {
		edges = append(edges, n.edges[k])
	}
	return edges
}

// Records returns every identifier that owns at least one edge, in order
// of first edge creation.
func (g *Graph) Records() []*identity.Identifier {
	return slices.Clone(g.order)
}

// IsNew reports whether id was never persisted, using the predicate set
// with WithIsNew.
func (g *Graph) IsNew(id *identity.Identifier) bool { return g.isNew(id) }

// IsReleasable reports whether none of the edges of id has an async
// inverse that still expects id to come back.
func (g *Graph) IsReleasable(id *identity.Identifier) bool {
	n, ok := g.nodes[id]
	if !ok {
		return true
	}
	for _, e := range n.edges {
		if e.Definition().InverseIsAsync {
			return false
		}
	}
	return true
}

// Destroy drops every edge and the resolver memo. Operations on a
// destroyed graph return relgraph.ErrDestroyed.
func (g *Graph) Destroy() {
	for _, id := range g.order {
		g.batcher.Disconnect(id)
	}
	g.nodes = make(map[*identity.Identifier]*node)
	g.order = nil
	g.resolver.Reset()
	g.destroyed = true
}

func (g *Graph) dropNode(id *identity.Identifier) {
	if _, ok := g.nodes[id]; !ok {
		return
	}
	delete(g.nodes, id)
	g.order = slices.DeleteFunc(g.order, func(x *identity.Identifier) bool { return x == id })
}

func (g *Graph) dropEdge(id *identity.Identifier, key string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	delete(n.edges, key)
	n.keys = slices.DeleteFunc(n.keys, func(k string) bool { return k == key })
}

// notifyChange enqueues a notification for a declared edge.
func (g *Graph) notifyChange(e Edge) {
	if e.Definition().IsImplicit {
		return
	}
	g.batcher.Enqueue(e.Identifier(), e.Definition().Key)
}

// batch runs fn while holding notifications so that they are only
// delivered once fn returned.
func (g *Graph) batch(fn func() error) error {
	if g.destroyed {
		return relgraph.ErrDestroyed
	}
	g.batcher.Hold()
	defer g.batcher.Release()
	return fn()
}
