// Package schema holds the relationship declarations of every resource type.
//
// Relationships are declared with the builders of the [edge] package, or
// loaded from a YAML or GraphQL SDL file:
//
//	reg := schema.New()
//	reg.MustRegister("user",
//	    edge.BelongsTo("bestFriend", "user").Inverse("bestFriend"),
//	    edge.HasMany("friends", "user").Inverse("friends").Async(),
//	    edge.HasMany("pets", "pet").NoInverse(),
//	)
//
// Type names are normalized with [NormalizeType] so that payload types such
// as "users" or "BlogPost" match the registered "user" and "blog-post".
//
// A Registry only stores declarations. Inverse resolution and validation of
// inverse consistency happen in the graph package's resolver.
package schema
