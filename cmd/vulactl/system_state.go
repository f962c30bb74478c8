package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var systemStateFile string

var systemStateCmd = &cobra.Command{
	Use:   "system-state",
	Short: "Push a fresh network snapshot to the daemon",
}

var systemStateRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Submit a snapshot JSON file (new_system_state); mainly for test/manual use, since a live daemon normally gathers this itself",
	RunE:  runSystemStateRefresh,
}

func init() {
	systemStateRefreshCmd.Flags().StringVar(&systemStateFile, "file", "", "path to a new_system_state JSON body (required)")
	systemStateRefreshCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(systemStateCmd)
	systemStateCmd.AddCommand(systemStateRefreshCmd)
}

func runSystemStateRefresh(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(systemStateFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInvalidInput)
	}
	var snapshot map[string]any
	if err := json.Unmarshal(data, &snapshot); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInvalidInput)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	env, err := client.newSystemState(ctx, snapshot)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEventError)
	}
	fmt.Println(env.Summary)
	os.Exit(exitCodeFor(env, 0))
	return nil
}
