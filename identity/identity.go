// Package identity provides stable resource identifiers.
//
// An Identifier is handed out once per resource and compared by pointer.
// Its LID never changes, even when a client-created resource later receives
// a server-assigned ID through Cache.SetID.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// Identifier is the stable handle of one resource.
// Two identifiers refer to the same resource only if they are the same pointer.
type Identifier struct {
	Type string
	ID   string // empty until the resource is persisted
	LID  string
}

// String returns a debug representation of the identifier.
func (i *Identifier) String() string {
	if i == nil {
		return "<nil>"
	}
	if i.ID == "" {
		return fmt.Sprintf("%s:(new) %s", i.Type, i.LID)
	}
	return fmt.Sprintf("%s:%s", i.Type, i.ID)
}

// IsNew reports whether the identifier has never been persisted.
func IsNew(i *Identifier) bool {
	return i != nil && i.ID == ""
}

// Cache hands out Identifiers and guarantees one identifier per resource.
// Cache is not safe for concurrent use; it is owned by a single store session.
type Cache struct {
	byKey map[string]*Identifier // type + "\x00" + id
	byLID map[string]*Identifier
}

// NewCache returns an empty identifier cache.
func NewCache() *Cache {
	return &Cache{
		byKey: make(map[string]*Identifier),
		byLID: make(map[string]*Identifier),
	}
}

func key(typ, id string) string { return typ + "\x00" + id }

// Get returns the identifier for a persisted resource, creating it on first use.
func (c *Cache) Get(typ, id string) *Identifier {
	if ident, ok := c.byKey[key(typ, id)]; ok {
		return ident
	}
	ident := &Identifier{Type: typ, ID: id, LID: fmt.Sprintf("@lid:%s-%s", typ, id)}
	c.byKey[key(typ, id)] = ident
	c.byLID[ident.LID] = ident
	return ident
}

// CreateLocal returns a new identifier for a resource that only exists on the client.
func (c *Cache) CreateLocal(typ string) *Identifier {
	ident := &Identifier{Type: typ, LID: fmt.Sprintf("@lid:%s-%s", typ, uuid.NewString())}
	c.byLID[ident.LID] = ident
	return ident
}

// Peek returns the identifier for a persisted resource if one was handed out.
func (c *Cache) Peek(typ, id string) (*Identifier, bool) {
	ident, ok := c.byKey[key(typ, id)]
	return ident, ok
}

// PeekLID returns the identifier with the given lid.
func (c *Cache) PeekLID(lid string) (*Identifier, bool) {
	ident, ok := c.byLID[lid]
	return ident, ok
}

// SetID assigns a server id to a client-created identifier.
// The pointer and LID are kept so that every relationship holding the
// identifier keeps pointing at the same resource.
func (c *Cache) SetID(ident *Identifier, id string) error {
	switch {
	case id == "":
		return fmt.Errorf("identity: cannot assign an empty id to %s", ident)
	case ident.ID == id:
		return nil
	case ident.ID != "":
		return fmt.Errorf("identity: %s already has id %q, cannot change it to %q", ident, ident.ID, id)
	}
	if other, ok := c.byKey[key(ident.Type, id)]; ok && other != ident {
		return fmt.Errorf("identity: id %q of type %s is already bound to %s", id, ident.Type, other.LID)
	}
	ident.ID = id
	c.byKey[key(ident.Type, id)] = ident
	return nil
}

// Forget drops the identifier from the cache. Later lookups for the same
// resource hand out a fresh identifier.
func (c *Cache) Forget(ident *Identifier) {
	if ident.ID != "" {
		if cur, ok := c.byKey[key(ident.Type, ident.ID)]; ok && cur == ident {
			delete(c.byKey, key(ident.Type, ident.ID))
		}
	}
	delete(c.byLID, ident.LID)
}

// Len returns the number of identifiers in the cache.
func (c *Cache) Len() int {
	return len(c.byLID)
}
