// Package main provides the stackcraft admin CLI: offline inspection of
// snapshots, audit logs and the sqlite index, plus a live state query.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// dataDir and worldID locate a world's runtime directory.
	dataDir string
	worldID string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Inspect stackcraft worlds",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "./data", "runtime data directory")
	rootCmd.PersistentFlags().StringVar(&worldID, "world", "world_1", "world id")

	rootCmd.AddCommand(worldsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(auditsCmd)
	rootCmd.AddCommand(auditLogCmd)
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(stateCmd)
}

var worldsCmd = &cobra.Command{
	Use:   "worlds",
	Short: "List worlds under the data directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := os.ReadDir(filepath.Join(dataDir, "worlds"))
		if err != nil {
			return fmt.Errorf("read worlds: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				fmt.Fprintln(cmd.OutOrStdout(), e.Name())
			}
		}
		return nil
	},
}

func worldDir() string {
	return filepath.Join(dataDir, "worlds", strings.TrimSpace(worldID))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
