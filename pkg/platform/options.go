package platform

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/txn2/configs-api/pkg/configstore"
)

// Options configures the platform.
type Options struct {
	// Config is the service configuration.
	Config *Config

	// DB is an open database handle (optional, opened from database.dsn if not provided).
	DB *sql.DB

	// Store overrides the configured backend (optional).
	Store configstore.Store

	// Registry collects metrics (optional, a new registry is created if not provided).
	Registry *prometheus.Registry
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithDB sets the database handle used by the postgres backend.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithStore sets the config store, bypassing store.backend.
func WithStore(s configstore.Store) Option {
	return func(o *Options) {
		o.Store = s
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(o *Options) {
		o.Registry = r
	}
}
