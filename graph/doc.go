// Package graph keeps the relationship state of a client-side resource store.
//
// A Graph maps (identifier, field) pairs to edges. Edges are created lazily
// by Get and come in three kinds:
//
//   - *BelongsTo holds a local value and a remote (canonical) value.
//   - *HasMany holds ordered canonical and current member lists.
//   - *Implicit is synthesized on the related side of a relationship that
//     declares no inverse, so that unloading and deleting can find every
//     record pointing at a resource.
//
// # Operations
//
// Push applies canonical data received from the source of truth:
//
//	err := g.Push(graph.UpdateRelationship{
//	    Record: user1,
//	    Field:  "friends",
//	    Value:  jsonapi.Relationship{Data: jsonapi.Many(jsonapi.Reference{Type: "user", ID: "2"})},
//	})
//
// Update applies local changes that are not committed yet:
//
//	err := g.Update(graph.AddToRelatedRecords{Record: user1, Field: "friends", Value: []*identity.Identifier{user4}, Index: -1})
//
// Every operation validates its whole input first and returns an error
// without touching the graph when anything is wrong. When an operation
// returns, every inverse edge reflects the change.
//
// # Reconciling local and canonical state
//
// A canonical push replaces the canonical state and derives the local state
// from it again. Local changes that are still pending are handled as follows:
//
//   - sync relationships: the canonical state wins.
//   - async relationships: pending additions and removals survive until the
//     canonical state agrees with them or RollbackRelationships drops them.
//   - records that were never persisted and were added locally always survive.
//
// # Unloading
//
// Unload dematerializes a record. Sync relationships pointing at it, and any
// relationship pointing at a never persisted record, drop it for good.
// Async relationships keep it and set State.HasDematerializedInverse so the
// record is restored when it is loaded again. DeleteRecord removes a record
// from every relationship regardless of this policy.
//
// # Notifications
//
// Changes are reported through a notify.Batcher once per (identifier, field)
// and operation. Delivery happens after the operation returned, so
// notifications always observe a consistent graph.
package graph
