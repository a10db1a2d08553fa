package main

import (
	"fmt"
	"os"

	"cctvdash/pkg/config"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "cctvdash",
		Short:         "CCTV monitoring dashboard",
		Long:          "cctvdash follows a camera/presence backend, drives the live camera stream and serves the dashboard state to operators over HTTP and websocket.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newDemoBackendCmd(opts),
		newTokenCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig reads the config file; a missing file yields the defaults.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", opts.configPath, err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
