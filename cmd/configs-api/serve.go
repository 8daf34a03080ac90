package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/txn2/configs-api/internal/server"
	"github.com/txn2/configs-api/pkg/platform"
)

func newServeCmd() *cobra.Command {
	var address, backend string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, MCP endpoint and probes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			if backend != "" {
				cfg.Store.Backend = backend
			}
			platform.SetupLogging(cfg.Logging, os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address, overrides server.address")
	cmd.Flags().StringVar(&backend, "backend", "", "store backend (memory, postgres, nats), overrides store.backend")
	return cmd
}

func serve(ctx context.Context, cfg *platform.Config) error {
	if cfg.Server.Version == "" {
		cfg.Server.Version = server.Version
	}

	p, err := platform.New(ctx, platform.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	return server.Run(ctx, p)
}
