// Package configs implements the named configuration service: create,
// update, delete, lookup, listing and dotted-path search over a
// configstore.Store.
//
// The service holds no state of its own. Every call goes through the store,
// and every failure is one of the sentinel errors re-exported here so callers
// can classify it with errors.Is without importing the lower packages.
package configs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/txn2/configs-api/pkg/configstore"
	"github.com/txn2/configs-api/pkg/filter"
)

// Error taxonomy.
var (
	ErrInvalidName      = configstore.ErrInvalidName
	ErrInvalidDocument  = configstore.ErrInvalidDocument
	ErrNameAlreadyUsed  = configstore.ErrNameAlreadyUsed
	ErrNotFound         = configstore.ErrNotFound
	ErrStoreUnavailable = configstore.ErrStoreUnavailable
	ErrMalformedQuery   = filter.ErrMalformedQuery
)

// Record is a named configuration with its parsed metadata.
type Record = configstore.Record

// Input is the request body for create and update.
type Input struct {
	Name     string          `json:"name"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Service orchestrates config CRUD and search against a store.
type Service struct {
	store configstore.Store
}

// NewService creates a service over store.
func NewService(store configstore.Store) *Service {
	return &Service{store: store}
}

// Store returns the underlying store.
func (s *Service) Store() configstore.Store {
	return s.store
}

// Create validates and stores a new config.
// Returns ErrNameAlreadyUsed if the name exists; the existing config is untouched.
func (s *Service) Create(ctx context.Context, in Input) (*Record, error) {
	v, err := configstore.Validate(in.Name, in.Metadata)
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, v.Name, v.Canonical); err != nil {
		return nil, fmt.Errorf("creating config %q: %w", v.Name, err)
	}
	return v.Record(), nil
}

// Update replaces the metadata of the config called name.
//
// The name never changes. A body naming a different config is a conflict:
// ErrNameAlreadyUsed when name exists, ErrNotFound otherwise. Names are
// compared case-insensitively for this check.
func (s *Service) Update(ctx context.Context, name string, in Input) (*Record, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if in.Name != "" && !strings.EqualFold(in.Name, name) {
		return nil, s.renameConflict(ctx, name, in.Name)
	}

	v, err := configstore.Validate(name, in.Metadata)
	if err != nil {
		return nil, err
	}
	if err := s.store.Replace(ctx, v.Name, v.Canonical); err != nil {
		return nil, fmt.Errorf("updating config %q: %w", v.Name, err)
	}
	return v.Record(), nil
}

func (s *Service) renameConflict(ctx context.Context, name, bodyName string) error {
	existing, err := s.store.Get(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return fmt.Errorf("%w: cannot rename %q to %q", ErrNameAlreadyUsed, name, bodyName)
}

// Delete removes the config called name. Deleting a missing config succeeds.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("deleting config %q: %w", name, err)
	}
	return nil
}

// Get returns the config called name. A missing config is reported as
// (nil, false, nil).
func (s *Service) Get(ctx context.Context, name string) (*Record, bool, error) {
	entry, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	rec, err := configstore.Decode(*entry)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// List returns every config ordered by name.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAll(entries, nil), nil
}

// Search returns the configs matching the single predicate in params.
// No match yields an empty slice.
func (s *Service) Search(ctx context.Context, params url.Values) ([]Record, error) {
	pred, err := filter.FromValues(params)
	if err != nil {
		return nil, err
	}
	return s.SearchPredicate(ctx, pred)
}

// SearchPredicate runs a parsed predicate. Candidates come from the store's
// text pre-filter and are confirmed by structural evaluation.
func (s *Service) SearchPredicate(ctx context.Context, pred filter.Predicate) ([]Record, error) {
	candidates, err := s.store.FindCandidates(ctx, pred.CandidateToken())
	if err != nil {
		return nil, err
	}
	return decodeAll(candidates, &pred), nil
}

// decodeAll parses entries, keeping those matching pred when it is non-nil.
// Entries that fail to parse are skipped.
func decodeAll(entries []configstore.Entry, pred *filter.Predicate) []Record {
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		rec, err := configstore.Decode(e)
		if err != nil {
			continue
		}
		if pred != nil && !pred.Matches(rec.Metadata) {
			continue
		}
		records = append(records, *rec)
	}
	return records
}
