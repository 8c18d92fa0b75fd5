// Package edge provides fluent builders for declaring resource relationships.
//
// # Relationship Kinds
//
//	// to-one: a post has one author
//	edge.BelongsTo("author", "user")
//
//	// to-many: a user has many posts
//	edge.HasMany("posts", "post")
//
// # Inverses
//
// Most relationships are declared on both types and name each other:
//
//	// user
//	edge.HasMany("posts", "post").Inverse("author")
//
//	// post
//	edge.BelongsTo("author", "user").Inverse("posts")
//
// Leaving the inverse out lets the resolver infer it from the one field on
// the related type that points back. NoInverse declares a one-sided
// relationship; the reverse direction is then tracked by an implicit edge:
//
//	edge.HasMany("tags", "tag").NoInverse()
//
// Self-referential relationships may be their own inverse:
//
//	edge.HasMany("friends", "user").Inverse("friends")
//	edge.BelongsTo("bestFriend", "user").Inverse("bestFriend")
//
// # Options
//
//	edge.HasMany("comments", "comment").
//	    Inverse("post").
//	    Async().        // loaded on demand
//	    Polymorphic().  // members may be subtypes
//	    Comment("Post comments")
package edge
