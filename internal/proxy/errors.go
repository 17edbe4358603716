package proxy

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a failed request.
type ErrorKind int

const (
	// KindInternal is any fault the taxonomy below does not cover. It
	// is the zero value so an unclassified Error renders safely.
	KindInternal ErrorKind = iota

	// KindUnknownType is a request for a type the registry does not know.
	KindUnknownType

	// KindUnknownCollection is an item request against a type that is
	// not a collection, or not registered at all.
	KindUnknownCollection

	// KindItemNotFound is an upstream 404 for a specific item id.
	KindItemNotFound

	// KindUpstreamFailure is any other failed fetch of a file or item.
	KindUpstreamFailure

	// KindListFailure is a failed fetch of a directory listing.
	KindListFailure
)

// Error is a classified request failure. Status and Message are what
// the client sees; Err carries the cause for server-side logs and is
// never echoed.
type Error struct {
	Kind ErrorKind
	Type string
	ID   string
	Err  error
}

// NewUnknownType reports that name is not a registered data type.
func NewUnknownType(name string) *Error {
	return &Error{Kind: KindUnknownType, Type: name}
}

// NewUnknownCollection reports that name is not a collection type.
func NewUnknownCollection(name string) *Error {
	return &Error{Kind: KindUnknownCollection, Type: name}
}

// NewItemNotFound reports that the upstream has no item id under the
// given collection type.
func NewItemNotFound(typeName, id string) *Error {
	return &Error{Kind: KindItemNotFound, Type: typeName, ID: id}
}

// NewUpstreamFailure wraps a failed file or item fetch.
func NewUpstreamFailure(cause error) *Error {
	return &Error{Kind: KindUpstreamFailure, Err: cause}
}

// NewListFailure wraps a failed directory listing for a type.
func NewListFailure(typeName string, cause error) *Error {
	return &Error{Kind: KindListFailure, Type: typeName, Err: cause}
}

// NewInternal wraps an uncaught fault.
func NewInternal(cause error) *Error {
	return &Error{Kind: KindInternal, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message(), e.Err)
	}
	return e.Message()
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error.
func (e *Error) Status() int {
	switch e.Kind {
	case KindUnknownType, KindUnknownCollection, KindItemNotFound:
		return http.StatusNotFound
	case KindUpstreamFailure, KindListFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message. Formatting lives here, in
// one place, so control flow never assembles error strings ad hoc.
func (e *Error) Message() string {
	switch e.Kind {
	case KindUnknownType:
		return "Unknown data type: " + e.Type
	case KindUnknownCollection:
		return "Unknown collection type: " + e.Type
	case KindItemNotFound:
		return fmt.Sprintf("%s not found: %s", singularize(e.Type), e.ID)
	case KindUpstreamFailure:
		return "Failed to fetch data"
	case KindListFailure:
		return "Failed to list " + e.Type
	default:
		return "Internal server error"
	}
}

// singularize strips a trailing plural "s" from a type name for item
// messages ("items" reads as "item not found: ...").
func singularize(name string) string {
	return strings.TrimSuffix(name, "s")
}
