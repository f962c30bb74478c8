package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var descriptorCmd = &cobra.Command{
	Use:   "descriptor",
	Short: "Process and inspect descriptors",
}

var descriptorProcessCmd = &cobra.Command{
	Use:   "process <text-or-@file>",
	Short: "Feed a signed descriptor string to the daemon (process_descriptor_string)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescriptorProcess,
}

var descriptorShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print our own current descriptor text per interface (our_latest_descriptors)",
	RunE:  runDescriptorShow,
}

func init() {
	rootCmd.AddCommand(descriptorCmd)
	descriptorCmd.AddCommand(descriptorProcessCmd)
	descriptorCmd.AddCommand(descriptorShowCmd)
}

func runDescriptorProcess(cmd *cobra.Command, args []string) error {
	text := args[0]
	if len(text) > 0 && text[0] == '@' {
		data, err := os.ReadFile(text[1:])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInvalidInput)
		}
		text = string(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	env, err := client.processDescriptorString(ctx, text)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEventError)
	}
	fmt.Println(env.Summary)
	os.Exit(exitCodeFor(env, 0))
	return nil
}

func runDescriptorShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	descs, err := client.ourLatestDescriptors(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEventError)
	}

	ifaces := make([]string, 0, len(descs))
	for iface := range descs {
		ifaces = append(ifaces, iface)
	}
	sort.Strings(ifaces)
	for _, iface := range ifaces {
		fmt.Printf("%s:\n%s\n", iface, descs[iface])
	}
	return nil
}
