package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	peerListWhich string

	peerCmd = &cobra.Command{
		Use:   "peer",
		Short: "Inspect known peers",
	}

	peerShowCmd = &cobra.Command{
		Use:   "show <vk>",
		Short: "Print one peer's details (show_peer)",
		Args:  cobra.ExactArgs(1),
		RunE:  runPeerShow,
	}

	peerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List known peer vks (peer_ids)",
		RunE:  runPeerList,
	}
)

func init() {
	peerListCmd.Flags().StringVar(&peerListWhich, "which", "enabled", "filter: all, enabled, pinned")

	rootCmd.AddCommand(peerCmd)
	peerCmd.AddCommand(peerShowCmd, peerListCmd)
}

func runPeerShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dto, status, err := client.showPeer(ctx, args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEventError)
	}
	if status == http.StatusNotFound {
		fmt.Fprintf(os.Stderr, "no such peer: %s\n", args[0])
		os.Exit(exitInvalidInput)
	}

	fmt.Printf("vk:            %s\n", dto.VK)
	fmt.Printf("hostname:      %s\n", dto.Hostname)
	fmt.Printf("petname:       %s\n", dto.Petname)
	fmt.Printf("enabled:       %t\n", dto.Enabled)
	fmt.Printf("pinned:        %t\n", dto.Pinned)
	fmt.Printf("use_as_gateway: %t\n", dto.UseAsGateway)
	fmt.Printf("nicknames:     %s\n", strings.Join(dto.Nicknames, ", "))
	fmt.Printf("addrs:         %s\n", strings.Join(dto.Addrs, ", "))
	return nil
}

func runPeerList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ids, status, err := client.peerIDs(ctx, peerListWhich)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEventError)
	}
	if status == http.StatusBadRequest {
		fmt.Fprintf(os.Stderr, "invalid --which value %q\n", peerListWhich)
		os.Exit(exitInvalidInput)
	}

	if len(ids) == 0 {
		fmt.Println("No peers.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VK")
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	w.Flush()
	return nil
}
