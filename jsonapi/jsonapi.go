// Package jsonapi defines the JSON:API relationship object exchanged with
// payload producers and consumers.
//
// A relationship object carries optional data, links and meta:
//
//	{"data": {"type": "user", "id": "2"}}
//	{"data": [{"type": "user", "id": "2"}, {"type": "user", "id": 3}]}
//	{"data": null, "links": {"related": "/users/1/best-friend"}}
//	{"links": {"related": {"href": "/users/1/friends", "meta": {"count": 2}}}}
//
// The shape of data (object, array or null) is preserved exactly so that the
// graph can reject an array for a belongs-to relationship and vice versa.
package jsonapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Reference identifies a related resource.
type Reference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	LID  string `json:"lid,omitempty"`
}

// UnmarshalJSON accepts both string and numeric ids.
func (r *Reference) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type any             `json:"type"`
		ID   json.RawMessage `json:"id"`
		LID  string          `json:"lid"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	// A non-string type is kept empty so validation can reject it.
	typ, _ := raw.Type.(string)
	id, err := CoerceID(raw.ID)
	if err != nil {
		return err
	}
	*r = Reference{Type: typ, ID: id, LID: raw.LID}
	return nil
}

// CoerceID converts a raw JSON id (string, number or null) to its string form.
// A null or missing id becomes the empty string.
func CoerceID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("jsonapi: id must be a string or number, got %s", raw)
		}
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return n.String(), nil
	}
}

// Data is the primary data of a relationship object: null, one reference,
// or an array of references.
type Data struct {
	many bool
	one  *Reference
	refs []Reference
}

// Null returns data representing a known-empty to-one relationship.
func Null() *Data { return &Data{} }

// One returns data holding a single reference.
func One(ref Reference) *Data { return &Data{one: &ref} }

// Many returns data holding an array of references. Many() with no
// arguments is a known-empty to-many relationship.
func Many(refs ...Reference) *Data {
	if refs == nil {
		refs = []Reference{}
	}
	return &Data{many: true, refs: refs}
}

// IsMany reports whether the data is an array.
func (d *Data) IsMany() bool { return d.many }

// IsNull reports whether the data is a JSON null.
func (d *Data) IsNull() bool { return !d.many && d.one == nil }

// One returns the single reference, or nil for null or array data.
func (d *Data) One() *Reference { return d.one }

// Many returns the references of array data.
func (d *Data) Many() []Reference { return d.refs }

// Len returns the number of references held.
func (d *Data) Len() int {
	if d.many {
		return len(d.refs)
	}
	if d.one != nil {
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler.
func (d *Data) MarshalJSON() ([]byte, error) {
	switch {
	case d == nil:
		return []byte("null"), nil
	case d.many:
		return json.Marshal(d.refs)
	case d.one != nil:
		return json.Marshal(d.one)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Data) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*d = Data{}
	case len(b) > 0 && b[0] == '[':
		var refs []Reference
		if err := json.Unmarshal(b, &refs); err != nil {
			return err
		}
		*d = *Many(refs...)
	default:
		var ref Reference
		if err := json.Unmarshal(b, &ref); err != nil {
			return err
		}
		*d = Data{one: &ref}
	}
	return nil
}

// Meta holds non-standard meta-information.
type Meta map[string]any

// Link is a JSON:API link, either a bare URL or an object with href and meta.
type Link struct {
	Href string `json:"href"`
	Meta Meta   `json:"meta,omitempty"`
}

// UnmarshalJSON accepts both the string and the object form.
func (l *Link) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var href string
		if err := json.Unmarshal(b, &href); err != nil {
			return err
		}
		*l = Link{Href: href}
		return nil
	}
	type link Link
	var v link
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*l = Link(v)
	return nil
}

// MarshalJSON writes the bare string form when the link has no meta.
func (l *Link) MarshalJSON() ([]byte, error) {
	if len(l.Meta) == 0 {
		return json.Marshal(l.Href)
	}
	type link Link
	return json.Marshal((*link)(l))
}

// Links holds the links of a relationship object, keyed by name
// ("self", "related", pagination links).
type Links map[string]*Link

// Related returns the href of the related link, or "".
func (l Links) Related() string {
	if link := l["related"]; link != nil {
		return link.Href
	}
	return ""
}

// Relationship is a JSON:API relationship object.
// A nil Data means the payload carried no data member at all.
type Relationship struct {
	Data  *Data `json:"data,omitempty"`
	Links Links `json:"links,omitempty"`
	Meta  Meta  `json:"meta,omitempty"`
}

// MarshalJSON implements json.Marshaler. It writes "data": null for null
// data and omits data entirely when Data is nil.
func (r Relationship) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3)
	if r.Data != nil {
		out["data"] = r.Data
	}
	if len(r.Links) > 0 {
		out["links"] = r.Links
	}
	if len(r.Meta) > 0 {
		out["meta"] = r.Meta
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. It distinguishes a missing
// data member from an explicit null.
func (r *Relationship) UnmarshalJSON(b []byte) error {
	var raw struct {
		Data  json.RawMessage `json:"data"`
		Links Links           `json:"links"`
		Meta  Meta            `json:"meta"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Relationship{Links: raw.Links, Meta: raw.Meta}
	if raw.Data != nil {
		r.Data = new(Data)
		if err := r.Data.UnmarshalJSON(raw.Data); err != nil {
			return err
		}
	}
	return nil
}
