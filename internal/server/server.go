// Package server exposes an assembled platform over HTTP: the REST API,
// health probes, Prometheus metrics, the MCP endpoint and Swagger UI.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/txn2/configs-api/internal/apidocs"
	"github.com/txn2/configs-api/pkg/platform"
)

// Build information, set at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const readHeaderTimeout = 10 * time.Second

// Handler returns the root handler for p.
func Handler(p *platform.Platform) http.Handler {
	cfg := p.Config()
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", p.Health().LivenessHandler())
	mux.Handle("GET /readyz", p.Health().ReadinessHandler())

	if reg := p.Registry(); reg != nil {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	if s := p.MCPServer(); s != nil {
		mux.Handle(cfg.MCP.Path, mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s }, nil))
	}
	if cfg.Docs.Enabled {
		apidocs.SwaggerInfo.Version = Version
		mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	}

	mux.Handle("/", p.APIHandler())
	return mux
}

// Run starts p, listens on the configured address and serves until ctx is
// cancelled, then drains and shuts down within the shutdown timeout.
func Run(ctx context.Context, p *platform.Platform) error {
	ln, err := net.Listen("tcp", p.Config().Server.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", p.Config().Server.Address, err)
	}
	return Serve(ctx, p, ln)
}

// Serve is Run on an existing listener. It closes ln.
func Serve(ctx context.Context, p *platform.Platform, ln net.Listener) error {
	cfg := p.Config().Server

	if err := p.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("starting platform: %w", err)
	}

	srv := &http.Server{
		Handler:           Handler(p),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving", "address", ln.Addr().String(), "backend", p.Store().Backend(), "version", Version)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		_ = p.Stop(context.Background())
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := p.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down http server: %w", err))
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
