package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show and edit preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print current preference values (show_prefs)",
	RunE:  runPrefsShow,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <true|false|csv-values>",
	Short: "Overwrite a boolean or list preference (user_edit SET)",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrefsSet,
}

var prefsAddCmd = &cobra.Command{
	Use:   "add <list-key> <value>",
	Short: "Append one value to a list preference (user_edit ADD)",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrefsAdd,
}

var prefsRemoveCmd = &cobra.Command{
	Use:   "remove <list-key> <value>",
	Short: "Remove one value from a list preference (user_edit REMOVE)",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrefsRemove,
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsShowCmd, prefsSetCmd, prefsAddCmd, prefsRemoveCmd)
}

func runPrefsShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dto, err := client.showPrefs(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEventError)
	}

	boolKeys := make([]string, 0, len(dto.Bools))
	for k := range dto.Bools {
		boolKeys = append(boolKeys, k)
	}
	sort.Strings(boolKeys)
	for _, k := range boolKeys {
		fmt.Printf("%s = %t\n", k, dto.Bools[k])
	}

	listKeys := make([]string, 0, len(dto.Lists))
	for k := range dto.Lists {
		listKeys = append(listKeys, k)
	}
	sort.Strings(listKeys)
	for _, k := range listKeys {
		fmt.Printf("%s = %v\n", k, dto.Lists[k])
	}
	return nil
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	var value any
	switch raw {
	case "true":
		value = true
	case "false":
		value = false
	default:
		value = splitCSV(raw)
	}
	return doUserEdit(cmd, "SET", "prefs."+key, value)
}

func runPrefsAdd(cmd *cobra.Command, args []string) error {
	return doUserEdit(cmd, "ADD", "prefs."+args[0], args[1])
}

func runPrefsRemove(cmd *cobra.Command, args []string) error {
	return doUserEdit(cmd, "REMOVE", "prefs."+args[0], args[1])
}

func doUserEdit(cmd *cobra.Command, op, path string, value any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	env, err := client.userEdit(ctx, op, path, value)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEventError)
	}
	fmt.Println(env.Summary)
	os.Exit(exitCodeFor(env, 0))
	return nil
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
