package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vula daemon status",
	Long:  `Display whether the vula-organize daemon is reachable and how many peers it knows about.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fmt.Println("vula System Status")
	fmt.Println("===================")

	var health map[string]any
	_, err := client.getJSON(ctx, "/health", nil, &health)
	if err != nil {
		fmt.Printf("Daemon (%s): ✗ unreachable: %v\n", cfg.RPC.ListenAddr, err)
		return nil
	}
	fmt.Printf("Daemon (%s): ✓ reachable (%d peers known)\n", cfg.RPC.ListenAddr, int(health["peers"].(float64)))
	return nil
}
