// Package relgraph is an in-memory relationship graph for a client-side
// resource cache.
//
// It tracks belongs-to, has-many and implicit inverse links between
// uniquely identified resources, keeps client-mutated ("local") state apart
// from server-confirmed ("canonical") state, and keeps both sides of every
// relationship consistent when one side changes, is deleted, or is unloaded.
//
// # Packages
//
//   - identity: stable, pointer-comparable resource identifiers
//   - jsonapi: the JSON:API relationship object used at the boundary
//   - schema, schema/edge: relationship declarations per resource type
//   - graph: definition resolution, edge state, and graph operations
//   - notify: batched change notifications
//   - fetch: at-most-one in-flight fetch per relationship
//   - snapshot: persisting canonical relationship state
//
// # Usage
//
//	reg := schema.New()
//	reg.Register("user",
//	    edge.BelongsTo("bestFriend", "user").Inverse("bestFriend"),
//	    edge.HasMany("friends", "user").Inverse("friends").Async(),
//	)
//
//	ids := identity.NewCache()
//	g := graph.New(reg, graph.WithIdentifiers(ids))
//
//	err := g.Push(graph.UpdateRelationship{
//	    Record: ids.Get("user", "1"),
//	    Field:  "bestFriend",
//	    Value:  jsonapi.Relationship{Data: jsonapi.One(jsonapi.Reference{Type: "user", ID: "2"})},
//	})
//
// This root package holds the error types shared by every package and the
// Cache interface used for snapshot persistence.
package relgraph
