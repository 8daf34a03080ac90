package configstore

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/txn2/configs-api/pkg/document"
)

// emptyObject is stored when a record is created without metadata.
var emptyObject = []byte("{}")

// Record is a named configuration with its parsed metadata.
type Record struct {
	Name     string            `json:"name"`
	Metadata document.Document `json:"metadata"`
}

// Validated is the normalized result of Validate.
type Validated struct {
	Name      string
	Document  document.Document
	Canonical []byte
}

// Record returns the record view of v.
func (v Validated) Record() *Record {
	return &Record{Name: v.Name, Metadata: v.Document}
}

// Validate checks a name and raw metadata and returns the parsed document
// with its canonical serialized form. Missing metadata (empty input or JSON
// null) is normalized to an empty object.
func Validate(name string, rawMetadata []byte) (Validated, error) {
	if strings.TrimSpace(name) == "" {
		return Validated{}, fmt.Errorf("%w: name is required", ErrInvalidName)
	}

	raw := bytes.TrimSpace(rawMetadata)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = emptyObject
	}

	doc, err := document.Parse(raw)
	if err != nil {
		return Validated{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return Validated{
		Name:      name,
		Document:  doc,
		Canonical: doc.Canonical(),
	}, nil
}

// Decode parses a stored entry back into a record.
func Decode(e Entry) (*Record, error) {
	doc, err := document.Parse(e.Document)
	if err != nil {
		return nil, fmt.Errorf("decoding config %q: %w", e.Name, err)
	}
	return &Record{Name: e.Name, Metadata: doc}, nil
}
