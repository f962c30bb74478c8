package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Manage the default-route gateway peer",
}

var gatewayReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Release the currently elected gateway peer (release_gateway)",
	RunE:  runGatewayRelease,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
	gatewayCmd.AddCommand(gatewayReleaseCmd)
}

func runGatewayRelease(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	env, err := client.releaseGateway(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEventError)
	}
	fmt.Println(env.Summary)
	os.Exit(exitCodeFor(env, 0))
	return nil
}
