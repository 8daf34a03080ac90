package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // registers the postgres driver
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/txn2/configs-api/pkg/api"
	"github.com/txn2/configs-api/pkg/configs"
	"github.com/txn2/configs-api/pkg/configstore"
	"github.com/txn2/configs-api/pkg/configstore/natskv"
	"github.com/txn2/configs-api/pkg/configstore/postgres"
	"github.com/txn2/configs-api/pkg/database/migrate"
	"github.com/txn2/configs-api/pkg/health"
	"github.com/txn2/configs-api/pkg/mcptools"
)

var errNoConfig = errors.New("config is required")

// Hooks replaced in tests.
var (
	openDB     = func(dsn string) (*sql.DB, error) { return sql.Open("postgres", dsn) }
	runMigrate = migrate.Run
	openNATSKV = openNATSStore
)

// Platform is the assembled config service.
type Platform struct {
	config *Config

	lifecycle *Lifecycle
	db        *sql.DB
	ownsDB    bool
	store     configstore.Store
	service   *configs.Service
	health    *health.Checker
	registry  *prometheus.Registry
	api       *api.Handler
	mcpServer *mcp.Server
	toolkit   *mcptools.Toolkit
}

// New creates a new platform instance.
func New(ctx context.Context, opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, errNoConfig
	}
	if err := options.Config.Validate(); err != nil {
		return nil, err
	}

	p := &Platform{
		config:    options.Config,
		lifecycle: NewLifecycle(),
		health:    health.NewChecker(),
		registry:  options.Registry,
	}

	if err := p.initStore(ctx, options); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	if err := p.initSurfaces(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// initStore opens the configured backend.
func (p *Platform) initStore(ctx context.Context, opts *Options) error {
	if opts.Store != nil {
		p.store = opts.Store
		return nil
	}

	switch p.config.Store.Backend {
	case BackendPostgres:
		return p.initPostgres(opts.DB)
	case BackendNATS:
		store, err := openNATSKV(ctx, p.config.NATS)
		if err != nil {
			return err
		}
		p.store = store
		return nil
	default:
		p.store = configstore.NewMemoryStore()
		return nil
	}
}

func (p *Platform) initPostgres(db *sql.DB) error {
	if db == nil {
		var err error
		db, err = openDB(p.config.Database.DSN)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(p.config.Database.MaxOpenConns)
		p.ownsDB = true
	}
	p.db = db

	if p.config.Database.AutoMigrate {
		if err := runMigrate(db); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}
	p.store = postgres.New(db)
	return nil
}

func openNATSStore(ctx context.Context, cfg NATSConfig) (configstore.Store, error) {
	store, err := natskv.Open(ctx, cfg.URL, natskv.Options{
		Bucket:     cfg.Bucket,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		History:    cfg.History,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// initSurfaces builds the service and everything that exposes it.
func (p *Platform) initSurfaces() error {
	p.service = configs.NewService(p.store)
	p.health.AddDependency("store", p.store)

	var apiOpts []api.Option
	if p.config.Metrics.Enabled {
		if p.registry == nil {
			p.registry = prometheus.NewRegistry()
			p.registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		m, err := api.NewMetrics(p.registry)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		apiOpts = append(apiOpts, api.WithMetrics(m))
	}
	p.api = api.NewHandler(p.service, apiOpts...)

	p.toolkit = mcptools.New(p.service)
	if p.config.MCP.Enabled {
		p.mcpServer = mcp.NewServer(&mcp.Implementation{
			Name:    p.config.Server.Name,
			Version: p.config.Server.Version,
		}, nil)
		p.toolkit.RegisterTools(p.mcpServer)
		p.toolkit.RegisterResources(p.mcpServer)
	}

	p.lifecycle.Append(Hook{
		Name: "store",
		OnStart: func(ctx context.Context) error {
			if err := p.store.Ping(ctx); err != nil {
				return fmt.Errorf("pinging %s store: %w", p.store.Backend(), err)
			}
			slog.Info("config store ready", "backend", p.store.Backend())
			return nil
		},
	})
	p.lifecycle.Append(Hook{
		Name: "readiness",
		OnStart: func(context.Context) error {
			p.health.SetReady()
			return nil
		},
		OnStop: func(context.Context) error {
			p.health.SetDraining()
			return nil
		},
	})
	return nil
}

// Start pings the store and marks the platform ready.
func (p *Platform) Start(ctx context.Context) error {
	return p.lifecycle.Start(ctx)
}

// Stop marks the platform as draining. Call Close to release the store.
func (p *Platform) Stop(ctx context.Context) error {
	return p.lifecycle.Stop(ctx)
}

// Config returns the service configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Service returns the config service.
func (p *Platform) Service() *configs.Service {
	return p.service
}

// Store returns the config store.
func (p *Platform) Store() configstore.Store {
	return p.store
}

// Health returns the readiness checker.
func (p *Platform) Health() *health.Checker {
	return p.health
}

// APIHandler returns the REST handler.
func (p *Platform) APIHandler() *api.Handler {
	return p.api
}

// MCPServer returns the MCP server, or nil when mcp.enabled is false.
func (p *Platform) MCPServer() *mcp.Server {
	return p.mcpServer
}

// Toolkit returns the MCP toolkit.
func (p *Platform) Toolkit() *mcptools.Toolkit {
	return p.toolkit
}

// Registry returns the Prometheus registry, or nil when metrics are disabled.
func (p *Platform) Registry() *prometheus.Registry {
	return p.registry
}

// Closer is something that can be closed.
type Closer interface {
	Close() error
}

// closeResource closes a resource and appends any error.
func closeResource(errs *[]error, closer Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		*errs = append(*errs, err)
	}
}

// Close releases the store and any database handle the platform opened.
func (p *Platform) Close() error {
	var errs []error

	if p.store != nil {
		closeResource(&errs, p.store)
	}
	if p.ownsDB && p.db != nil {
		closeResource(&errs, p.db)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing platform: %w", errors.Join(errs...))
	}
	return nil
}
