package relgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common failure classes.
var (
	// ErrInvalidPayload is returned when a relationship payload has the wrong
	// shape for its relationship kind or carries a malformed reference.
	ErrInvalidPayload = errors.New("relgraph: invalid relationship payload")

	// ErrInvalidSchema is returned for configuration errors such as
	// inconsistent inverse declarations.
	ErrInvalidSchema = errors.New("relgraph: invalid schema")

	// ErrUnknownType is returned when a reference names a resource type
	// the schema does not know.
	ErrUnknownType = errors.New("relgraph: unknown resource type")

	// ErrImplicitEdge is returned when an operation that only makes sense for
	// declared relationships is applied to a synthetic implicit edge.
	ErrImplicitEdge = errors.New("relgraph: operation not supported on implicit relationship")

	// ErrFetchFailed is returned when the fetch gateway fails to load a relationship.
	ErrFetchFailed = errors.New("relgraph: relationship fetch failed")

	// ErrNotFound is returned when a requested snapshot or cache entry does not exist.
	ErrNotFound = errors.New("relgraph: not found")

	// ErrDestroyed is returned by operations on a graph that was destroyed.
	ErrDestroyed = errors.New("relgraph: graph destroyed")

	// ErrInvalidSnapshot is returned when a persisted snapshot cannot be decoded.
	ErrInvalidSnapshot = errors.New("relgraph: invalid snapshot")
)

// PayloadError describes a rejected relationship payload.
// A mutation that returns a PayloadError has not changed the graph.
type PayloadError struct {
	Type    string // Owning resource type
	ID      string // Owning resource id, may be empty for new resources
	Field   string // Relationship field
	Message string
}

// Error returns the error string.
func (e *PayloadError) Error() string {
	var b strings.Builder
	b.WriteString("relgraph: invalid payload")
	if e.Field != "" {
		fmt.Fprintf(&b, " for %s.%s", e.Type, e.Field)
		if e.ID != "" {
			fmt.Fprintf(&b, " (id=%s)", e.ID)
		}
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is reports whether the target matches ErrInvalidPayload.
func (e *PayloadError) Is(target error) bool {
	return target == ErrInvalidPayload
}

// NewPayloadError returns a new PayloadError.
func NewPayloadError(typ, id, field, format string, args ...any) *PayloadError {
	return &PayloadError{Type: typ, ID: id, Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsPayloadError returns true if the error is a PayloadError.
func IsPayloadError(err error) bool {
	if err == nil {
		return false
	}
	var e *PayloadError
	return errors.As(err, &e)
}

// SchemaError represents a schema or relationship configuration error.
type SchemaError struct {
	Type    string // Resource type name
	Field   string // Relationship field (if applicable)
	Message string
	Cause   error
}

// Error returns the error string.
func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("relgraph: schema error")
	if e.Type != "" {
		b.WriteString(" on type ")
		b.WriteString(e.Type)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches ErrInvalidSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// NewSchemaError returns a new SchemaError.
func NewSchemaError(typ, field, message string, cause error) *SchemaError {
	return &SchemaError{Type: typ, Field: field, Message: message, Cause: cause}
}

// IsSchemaError returns true if the error is a SchemaError.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	var e *SchemaError
	return errors.As(err, &e)
}

// UnknownTypeError is returned when a payload references a type with no schema.
type UnknownTypeError struct {
	Type string
}

// Error returns the error string.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("relgraph: no schema found for resource type %q", e.Type)
}

// Is reports whether the target matches ErrUnknownType.
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// NewUnknownTypeError returns a new UnknownTypeError.
func NewUnknownTypeError(typ string) *UnknownTypeError {
	return &UnknownTypeError{Type: typ}
}

// FetchError wraps a failure reported by the fetch gateway.
type FetchError struct {
	Type  string // Owning resource type
	LID   string // Owning resource lid
	Field string // Relationship field
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *FetchError) Error() string {
	return fmt.Sprintf("relgraph: fetching %s.%s (%s): %v", e.Type, e.Field, e.LID, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches ErrFetchFailed.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// IsFetchError returns true if the error is a FetchError.
func IsFetchError(err error) bool {
	if err == nil {
		return false
	}
	var e *FetchError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "relgraph: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("relgraph: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
