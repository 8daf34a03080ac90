// Package configstore defines named configuration records and the storage
// contract they are persisted through.
//
// A record is a unique name plus a JSON metadata document. Stores hold the
// canonical serialized document; callers re-parse it on every read, so no
// cached copies live outside the store.
package configstore

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// Error taxonomy shared by stores and the service layer.
var (
	// ErrInvalidName is returned when a record name is empty.
	ErrInvalidName = errors.New("invalid config name")

	// ErrInvalidDocument is returned when metadata is not valid JSON.
	ErrInvalidDocument = errors.New("invalid metadata document")

	// ErrNameAlreadyUsed is returned when creating a record whose name exists,
	// or when an update names a different record than its target.
	ErrNameAlreadyUsed = errors.New("config name already used")

	// ErrNotFound is returned when an update targets a missing record.
	ErrNotFound = errors.New("config not found")

	// ErrStoreUnavailable wraps I/O failures from the persistence layer.
	ErrStoreUnavailable = errors.New("config store unavailable")
)

// Entry is the durable form of a record: its name and serialized document.
type Entry struct {
	Name     string
	Document []byte
}

// Store persists name → document entries. Writes are atomic per name; there
// are no multi-record guarantees.
type Store interface {
	// Get returns the entry for name, or nil, nil if it does not exist.
	Get(ctx context.Context, name string) (*Entry, error)

	// Insert stores a new entry. Returns ErrNameAlreadyUsed if name exists.
	Insert(ctx context.Context, name string, doc []byte) error

	// Replace overwrites the document of an existing entry.
	// Returns ErrNotFound if name does not exist.
	Replace(ctx context.Context, name string, doc []byte) error

	// Delete removes an entry. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error

	// List returns every entry ordered by name.
	List(ctx context.Context) ([]Entry, error)

	// FindCandidates returns every entry whose serialized document contains
	// substring. It is a coarse text scan used as a search pre-filter.
	FindCandidates(ctx context.Context, substring string) ([]Entry, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Backend returns the backend name: "memory", "postgres" or "nats".
	Backend() string

	// Close releases resources held by the store.
	Close() error
}

// SortByName orders entries by name in place.
func SortByName(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
}
