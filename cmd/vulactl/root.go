package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vula-mesh/vula/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
	client  *rpcClient

	rootCmd = &cobra.Command{
		Use:   "vulactl",
		Short: "vula - zero-configuration LAN encryption control tool",
		Long: `vulactl is a command-line tool for talking to a running vula-organize
daemon: processing descriptors, editing preferences, and inspecting peers.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Use == "version" || cmd.Use == "help" {
				return nil
			}

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			client = newRPCClient(cfg.RPC.ListenAddr)
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default /etc/vula/organize.yml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInvalidInput)
	}
}
