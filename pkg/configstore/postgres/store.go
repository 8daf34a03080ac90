// Package postgres provides a PostgreSQL-backed config store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/txn2/configs-api/pkg/configstore"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// dataExceptionClass is the SQLSTATE class for data exceptions, raised for
// parameters PostgreSQL text cannot hold, such as NUL bytes or invalid UTF-8.
const dataExceptionClass = "22"

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// configColumns lists columns returned by config SELECT queries.
var configColumns = []string{"name", "metadata"}

// Store persists config documents in the configs table.
// Per-name write serialization comes from the primary key and row locks.
// The metadata column is TEXT holding the canonical form verbatim, so reads
// return exactly what was written and number spellings are never normalized.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL config store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the entry for name, or nil, nil if it does not exist.
func (s *Store) Get(ctx context.Context, name string) (*configstore.Entry, error) {
	query, args, err := psq.Select(configColumns...).
		From("configs").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building config query: %w", err)
	}

	var e configstore.Entry
	var metadata string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&e.Name, &metadata)
	if errors.Is(err, sql.ErrNoRows) || isDataException(err) {
		// A name PostgreSQL cannot store cannot exist.
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, unavailable("loading config", err)
	}
	e.Document = []byte(metadata)
	return &e, nil
}

// Insert stores a new config. Returns configstore.ErrNameAlreadyUsed if name exists.
func (s *Store) Insert(ctx context.Context, name string, doc []byte) error {
	query, args, err := psq.Insert("configs").
		Columns("name", "metadata").
		Values(name, string(doc)).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return configstore.ErrNameAlreadyUsed
		}
		if msg, ok := dataException(err); ok {
			return fmt.Errorf("%w: %s", configstore.ErrInvalidName, msg)
		}
		return unavailable("inserting config", err)
	}
	return requireRow(result, configstore.ErrNameAlreadyUsed)
}

// Replace overwrites the document of an existing config.
func (s *Store) Replace(ctx context.Context, name string, doc []byte) error {
	query, args, err := psq.Update("configs").
		Set("metadata", string(doc)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isDataException(err) {
			return configstore.ErrNotFound
		}
		return unavailable("updating config", err)
	}
	return requireRow(result, configstore.ErrNotFound)
}

// Delete removes a config. Deleting a missing name affects no rows and is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	query, args, err := psq.Delete("configs").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isDataException(err) {
			return nil
		}
		return unavailable("deleting config", err)
	}
	return nil
}

// List returns every config ordered by name.
func (s *Store) List(ctx context.Context) ([]configstore.Entry, error) {
	return s.query(ctx, psq.Select(configColumns...).From("configs").OrderBy("name"))
}

// FindCandidates returns configs whose serialized metadata contains substring.
// strpos avoids LIKE so % and _ in substring need no escaping.
func (s *Store) FindCandidates(ctx context.Context, substring string) ([]configstore.Entry, error) {
	return s.query(ctx, psq.Select(configColumns...).
		From("configs").
		Where(sq.Expr("strpos(metadata, ?) > 0", substring)).
		OrderBy("name"))
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("pinging database", err)
	}
	return nil
}

// Backend returns "postgres".
func (*Store) Backend() string {
	return "postgres"
}

// Close is a no-op; the *sql.DB is owned by the caller.
func (*Store) Close() error {
	return nil
}

func (s *Store) query(ctx context.Context, qb sq.SelectBuilder) ([]configstore.Entry, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building config query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("querying configs", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]configstore.Entry, 0)
	for rows.Next() {
		var name, metadata string
		if err := rows.Scan(&name, &metadata); err != nil {
			return nil, unavailable("scanning config", err)
		}
		entries = append(entries, configstore.Entry{Name: name, Document: []byte(metadata)})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterating configs", err)
	}
	return entries, nil
}

// requireRow returns notAffected when the statement changed no rows.
func requireRow(result sql.Result, notAffected error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return unavailable("reading rows affected", err)
	}
	if n == 0 {
		return notAffected
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// dataException returns the server message when err is a data exception.
func dataException(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == dataExceptionClass {
		return pqErr.Message, true
	}
	return "", false
}

func isDataException(err error) bool {
	_, ok := dataException(err)
	return ok
}

func unavailable(action string, err error) error {
	return fmt.Errorf("%w: %s: %w", configstore.ErrStoreUnavailable, action, err)
}

// Verify interface compliance.
var _ configstore.Store = (*Store)(nil)
