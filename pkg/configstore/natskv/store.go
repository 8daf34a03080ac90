// Package natskv provides a NATS JetStream key-value config store.
package natskv

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/txn2/configs-api/pkg/configstore"
)

const (
	// keyPrefix namespaces config keys inside the bucket.
	keyPrefix = "configs."

	// pingKey is read by Ping; it never holds a config.
	pingKey = "health"

	defaultBucket     = "configs"
	defaultTimeout    = 5 * time.Second
	defaultMaxRetries = 10
)

// Options configures a Store.
type Options struct {
	Bucket     string
	Timeout    time.Duration // per-operation timeout
	MaxRetries int           // CAS retries for Replace
	History    uint8         // revisions kept per key
}

func (o *Options) applyDefaults() {
	if o.Bucket == "" {
		o.Bucket = defaultBucket
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.History == 0 {
		o.History = 1
	}
}

// bucket is the subset of KV operations the store relies on. Implementations
// report jetstream.ErrKeyNotFound and jetstream.ErrKeyExists.
type bucket interface {
	get(ctx context.Context, key string) ([]byte, uint64, error)
	create(ctx context.Context, key string, value []byte) error
	update(ctx context.Context, key string, value []byte, revision uint64) error
	remove(ctx context.Context, key string) error
	keys(ctx context.Context) ([]string, error)
}

// Store persists config documents in a JetStream KV bucket. Names are
// base64url encoded into keys since KV keys only allow a narrow alphabet.
type Store struct {
	bucket  bucket
	opts    Options
	closeFn func()
}

// Open connects to url and returns a store over the configured bucket,
// creating the bucket when it does not exist. The store owns the connection.
func Open(ctx context.Context, url string, opts Options) (*Store, error) {
	opts.applyDefaults()

	nc, err := nats.Connect(url,
		nats.Name("configs-api"),
		nats.Timeout(opts.Timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to nats: %w", configstore.ErrStoreUnavailable, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	kv, err := openBucket(ctx, js, opts)
	if err != nil {
		nc.Close()
		return nil, err
	}

	s := New(kv, opts)
	s.closeFn = nc.Close
	return s, nil
}

// openBucket gets the bucket or creates it, tolerating a concurrent creator.
func openBucket(ctx context.Context, js jetstream.JetStream, opts Options) (jetstream.KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	kv, err := js.KeyValue(ctx, opts.Bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("%w: opening bucket %s: %w", configstore.ErrStoreUnavailable, opts.Bucket, err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      opts.Bucket,
		Description: "named configuration documents",
		History:     opts.History,
	})
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) {
			return js.KeyValue(ctx, opts.Bucket)
		}
		return nil, fmt.Errorf("%w: creating bucket %s: %w", configstore.ErrStoreUnavailable, opts.Bucket, err)
	}
	slog.Info("created config bucket", "bucket", opts.Bucket)
	return kv, nil
}

// New creates a store over an existing KV bucket. The caller owns the connection.
func New(kv jetstream.KeyValue, opts Options) *Store {
	opts.applyDefaults()
	return newStore(jsBucket{kv: kv}, opts)
}

func newStore(b bucket, opts Options) *Store {
	opts.applyDefaults()
	return &Store{bucket: b, opts: opts, closeFn: func() {}}
}

// encodeKey maps a config name to its bucket key.
func encodeKey(name string) string {
	return keyPrefix + base64.RawURLEncoding.EncodeToString([]byte(name))
}

// decodeKey maps a bucket key back to a config name.
func decodeKey(key string) (string, bool) {
	encoded, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", false
	}
	name, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(name), true
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.Timeout)
}

// Get returns the entry for name, or nil, nil if it does not exist.
func (s *Store) Get(ctx context.Context, name string) (*configstore.Entry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	value, _, err := s.bucket.get(ctx, encodeKey(name))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, unavailable("kv get", err)
	}
	return &configstore.Entry{Name: name, Document: value}, nil
}

// Insert stores a new config. Returns configstore.ErrNameAlreadyUsed if name exists.
func (s *Store) Insert(ctx context.Context, name string, doc []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.bucket.create(ctx, encodeKey(name), doc)
	if errors.Is(err, jetstream.ErrKeyExists) {
		return configstore.ErrNameAlreadyUsed
	}
	if err != nil {
		return unavailable("kv create", err)
	}
	return nil
}

// Replace overwrites an existing config using a revision check, retrying
// when a concurrent writer wins the race.
func (s *Store) Replace(ctx context.Context, name string, doc []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := encodeKey(name)
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		_, revision, err := s.bucket.get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return configstore.ErrNotFound
		}
		if err != nil {
			return unavailable("kv get", err)
		}

		err = s.bucket.update(ctx, key, doc, revision)
		if err == nil {
			return nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return unavailable("kv update", err)
		}
		slog.Debug("config revision conflict, retrying", "name", name, "attempt", attempt+1)
	}
	return unavailable("kv update", fmt.Errorf("revision conflict after %d retries", s.opts.MaxRetries))
}

// Delete removes a config. Deleting a missing name is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.bucket.remove(ctx, encodeKey(name))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return unavailable("kv delete", err)
	}
	return nil
}

// List returns every config.
func (s *Store) List(ctx context.Context) ([]configstore.Entry, error) {
	return s.scan(ctx, nil)
}

// FindCandidates returns configs whose stored document contains substring.
// The bucket has no secondary index, so this reads every entry.
func (s *Store) FindCandidates(ctx context.Context, substring string) ([]configstore.Entry, error) {
	needle := []byte(substring)
	return s.scan(ctx, func(doc []byte) bool { return bytes.Contains(doc, needle) })
}

func (s *Store) scan(ctx context.Context, keep func([]byte) bool) ([]configstore.Entry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys, err := s.bucket.keys(ctx)
	if err != nil {
		return nil, unavailable("kv keys", err)
	}

	entries := make([]configstore.Entry, 0, len(keys))
	for _, key := range keys {
		name, ok := decodeKey(key)
		if !ok {
			continue
		}
		value, _, err := s.bucket.get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			// deleted between listing and reading
			continue
		}
		if err != nil {
			return nil, unavailable("kv get", err)
		}
		if keep != nil && !keep(value) {
			continue
		}
		entries = append(entries, configstore.Entry{Name: name, Document: value})
	}
	configstore.SortByName(entries)
	return entries, nil
}

// Ping performs a read round trip against the bucket.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, _, err := s.bucket.get(ctx, pingKey)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return unavailable("kv ping", err)
	}
	return nil
}

// Backend returns "nats".
func (*Store) Backend() string {
	return "nats"
}

// Close releases the NATS connection when the store opened it.
func (s *Store) Close() error {
	s.closeFn()
	return nil
}

func unavailable(action string, err error) error {
	return fmt.Errorf("%w: %s: %w", configstore.ErrStoreUnavailable, action, err)
}

// jsBucket adapts jetstream.KeyValue to bucket.
type jsBucket struct {
	kv jetstream.KeyValue
}

func (b jsBucket) get(ctx context.Context, key string) ([]byte, uint64, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return entry.Value(), entry.Revision(), nil
}

func (b jsBucket) create(ctx context.Context, key string, value []byte) error {
	_, err := b.kv.Create(ctx, key, value)
	if err != nil && isConflict(err) {
		return jetstream.ErrKeyExists
	}
	return err
}

func (b jsBucket) update(ctx context.Context, key string, value []byte, revision uint64) error {
	_, err := b.kv.Update(ctx, key, value, revision)
	if err != nil && isConflict(err) {
		return jetstream.ErrKeyExists
	}
	return err
}

func (b jsBucket) remove(ctx context.Context, key string) error {
	return b.kv.Delete(ctx, key)
}

func (b jsBucket) keys(ctx context.Context) ([]string, error) {
	lister, err := b.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}
	return keys, nil
}

// isConflict reports whether err is a create-on-existing or revision mismatch.
func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "wrong last sequence") || strings.Contains(msg, "10071")
}

// Verify interface compliance.
var _ configstore.Store = (*Store)(nil)
