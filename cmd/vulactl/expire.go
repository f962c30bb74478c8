package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Manage descriptor expiry",
}

var expireTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Force one EXPIRE_TICK sweep now (expire_tick)",
	RunE:  runExpireTick,
}

func init() {
	rootCmd.AddCommand(expireCmd)
	expireCmd.AddCommand(expireTickCmd)
}

func runExpireTick(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	env, err := client.expireTick(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEventError)
	}
	fmt.Println(env.Summary)
	os.Exit(exitCodeFor(env, 0))
	return nil
}
