// Package document provides the parsed form of a configuration's JSON metadata.
//
// A Document is a tagged variant (null, bool, number, string, array, object)
// so that navigation is an exhaustive match on Kind instead of type assertions
// on map[string]any. Numbers keep their JSON literal text.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"slices"
	"sort"
)

// ErrInvalidJSON is returned when input is not a single well-formed JSON value.
var ErrInvalidJSON = errors.New("invalid JSON document")

// Kind identifies the variant held by a Document.
type Kind uint8

// Document kinds. The zero Document is Null.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the JSON type name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Document is an immutable parsed JSON value.
type Document struct {
	kind Kind
	b    bool
	s    string // string contents, or the literal text of a number
	arr  []Document
	obj  map[string]Document
}

// Null returns the JSON null document.
func Null() Document { return Document{} }

// Bool returns a boolean document.
func Bool(v bool) Document { return Document{kind: KindBool, b: v} }

// String returns a string document.
func String(v string) Document { return Document{kind: KindString, s: v} }

// Number returns a number document holding the given JSON literal.
func Number(n json.Number) Document { return Document{kind: KindNumber, s: n.String()} }

// Array returns an array document.
func Array(items ...Document) Document {
	return Document{kind: KindArray, arr: slices.Clone(items)}
}

// Object returns an object document. The map is copied.
func Object(fields map[string]Document) Document {
	obj := make(map[string]Document, len(fields))
	for k, v := range fields {
		obj[k] = v
	}
	return Document{kind: KindObject, obj: obj}
}

// Parse decodes exactly one JSON value from data.
func Parse(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Document{}, fmt.Errorf("%w: unexpected data after top-level value", ErrInvalidJSON)
	}
	return fromDecoded(v)
}

// FromInterface converts a Go value (typically decoded map[string]any) into a Document.
func FromInterface(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return Parse(data)
}

// fromDecoded converts the output of a UseNumber decoder.
func fromDecoded(v any) (Document, error) {
	switch val := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		return Number(val), nil
	case string:
		return String(val), nil
	case []any:
		items := make([]Document, 0, len(val))
		for _, item := range val {
			d, err := fromDecoded(item)
			if err != nil {
				return Document{}, err
			}
			items = append(items, d)
		}
		return Document{kind: KindArray, arr: items}, nil
	case map[string]any:
		obj := make(map[string]Document, len(val))
		for k, item := range val {
			d, err := fromDecoded(item)
			if err != nil {
				return Document{}, err
			}
			obj[k] = d
		}
		return Document{kind: KindObject, obj: obj}, nil
	default:
		return Document{}, fmt.Errorf("%w: unsupported value of type %T", ErrInvalidJSON, v)
	}
}

// Kind returns the variant held by d.
func (d Document) Kind() Kind { return d.kind }

// Field returns the value under key when d is an object.
func (d Document) Field(key string) (Document, bool) {
	if d.kind != KindObject {
		return Document{}, false
	}
	v, ok := d.obj[key]
	return v, ok
}

// Keys returns the sorted keys of an object, or nil for other kinds.
func (d Document) Keys() []string {
	if d.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(d.obj))
	for k := range d.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of elements of an array or fields of an object.
func (d Document) Len() int {
	switch d.kind {
	case KindArray:
		return len(d.arr)
	case KindObject:
		return len(d.obj)
	default:
		return 0
	}
}

// Index returns the i-th element of an array.
func (d Document) Index(i int) (Document, bool) {
	if d.kind != KindArray || i < 0 || i >= len(d.arr) {
		return Document{}, false
	}
	return d.arr[i], true
}

// Text returns the loose string form of d used for query comparison:
// string contents for strings, literal text for numbers, true/false, null,
// and canonical JSON for arrays and objects.
func (d Document) Text() string {
	switch d.kind {
	case KindString, KindNumber:
		return d.s
	case KindBool:
		if d.b {
			return "true"
		}
		return "false"
	case KindNull:
		return "null"
	default:
		return string(d.Canonical())
	}
}

// Interface returns d as plain Go values: map[string]any, []any, string,
// bool, json.Number or nil.
func (d Document) Interface() any {
	switch d.kind {
	case KindBool:
		return d.b
	case KindNumber:
		return json.Number(d.s)
	case KindString:
		return d.s
	case KindArray:
		out := make([]any, len(d.arr))
		for i, item := range d.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(d.obj))
		for k, v := range d.obj {
			out[k] = v.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports structural equality. Numbers compare by value, so 1.0 equals 1.
func (d Document) Equal(other Document) bool {
	if d.kind != other.kind {
		return false
	}
	switch d.kind {
	case KindNull:
		return true
	case KindBool:
		return d.b == other.b
	case KindString:
		return d.s == other.s
	case KindNumber:
		return numbersEqual(d.s, other.s)
	case KindArray:
		return slices.EqualFunc(d.arr, other.arr, Document.Equal)
	case KindObject:
		if len(d.obj) != len(other.obj) {
			return false
		}
		for k, v := range d.obj {
			ov, ok := other.obj[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func numbersEqual(a, b string) bool {
	if a == b {
		return true
	}
	fa, _, errA := big.ParseFloat(a, 10, 256, big.ToNearestEven)
	fb, _, errB := big.ParseFloat(b, 10, 256, big.ToNearestEven)
	if errA != nil || errB != nil {
		return false
	}
	return fa.Cmp(fb) == 0
}
