// Package filter evaluates dotted-path equality predicates against documents.
//
// A predicate has the shape root.segment.field=value. The root only names the
// query namespace (conventionally "metadata"); matching navigates into the
// document's segment object and compares the field's text to value. Exactly
// two levels below the root are supported. Deeper or shallower paths are
// rejected rather than truncated.
package filter

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/txn2/configs-api/pkg/document"
)

// ErrMalformedQuery is returned when a filter expression cannot be parsed.
var ErrMalformedQuery = errors.New("malformed query")

// pathParts is the number of dot-separated parts in a predicate path.
const pathParts = 3

// Predicate is a single equality test against a dotted path.
type Predicate struct {
	Root    string
	Segment string
	Field   string
	Value   string
}

// Parse builds a predicate from a dotted path and its expected value.
func Parse(path, value string) (Predicate, error) {
	parts := strings.Split(path, ".")
	if len(parts) != pathParts {
		return Predicate{}, fmt.Errorf("%w: path %q must have exactly %d dot-separated parts (root.segment.field)",
			ErrMalformedQuery, path, pathParts)
	}
	for _, p := range parts {
		if p == "" {
			return Predicate{}, fmt.Errorf("%w: path %q contains an empty part", ErrMalformedQuery, path)
		}
	}
	return Predicate{Root: parts[0], Segment: parts[1], Field: parts[2], Value: value}, nil
}

// FromValues extracts the single predicate carried by query parameters.
// Exactly one parameter with exactly one value is accepted; extra predicates
// are rejected instead of silently ignored.
func FromValues(values url.Values) (Predicate, error) {
	switch len(values) {
	case 0:
		return Predicate{}, fmt.Errorf("%w: a filter of the form root.segment.field=value is required", ErrMalformedQuery)
	case 1:
	default:
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return Predicate{}, fmt.Errorf("%w: only one filter per request is supported, got %s",
			ErrMalformedQuery, strings.Join(keys, ", "))
	}

	for path, vals := range values {
		if len(vals) != 1 {
			return Predicate{}, fmt.Errorf("%w: filter %q must have exactly one value", ErrMalformedQuery, path)
		}
		return Parse(path, vals[0])
	}
	return Predicate{}, ErrMalformedQuery // unreachable
}

// Matches reports whether doc satisfies the predicate.
func (p Predicate) Matches(doc document.Document) bool {
	segment, ok := doc.Field(p.Segment)
	if !ok || segment.Kind() != document.KindObject {
		return false
	}
	field, ok := segment.Field(p.Field)
	if !ok {
		return false
	}
	return field.Text() == p.Value
}

// CandidateToken returns a substring every matching document's serialized
// form contains, regardless of the encoder that wrote it. Stores use it as a
// coarse pre-filter.
func (p Predicate) CandidateToken() string {
	return document.KeyToken(p.Segment)
}

// String renders the predicate as root.segment.field=value.
func (p Predicate) String() string {
	return p.Root + "." + p.Segment + "." + p.Field + "=" + p.Value
}
