package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/txn2/configs-api/internal/server"
	"github.com/txn2/configs-api/pkg/platform"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "configs-api",
		Short: "Named configuration store with nested metadata search",
		Long: `configs-api stores named JSON configurations in memory, PostgreSQL or
NATS JetStream KV and serves them over a REST API and an MCP endpoint.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       server.Version,
	}
	root.SetVersionTemplate(`{{printf "configs-api version %s\n" .Version}}`)
	root.PersistentFlags().StringP("config", "c", "", "path to a YAML config file (defaults apply when empty)")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newVersionCmd())
	return root
}

// loadConfig reads --config, falling back to $CONFIGS_API_CONFIG and then the defaults.
func loadConfig(cmd *cobra.Command) (*platform.Config, error) {
	var path string
	if f := cmd.Flag("config"); f != nil {
		path = f.Value.String()
	}
	if path == "" {
		path = os.Getenv("CONFIGS_API_CONFIG")
	}
	if path == "" {
		return platform.DefaultConfig(), nil
	}

	cfg, err := platform.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "configs-api version %s (commit %s, built %s)\n",
				server.Version, server.Commit, server.Date)
		},
	}
}
