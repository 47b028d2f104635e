package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stackcraft.ai/internal/persistence/indexdb"
	persistlog "stackcraft.ai/internal/persistence/log"
	"stackcraft.ai/internal/sim/world"
)

var (
	dbPath      string
	auditsAgent string
	auditsLimit int
	slotsOwner  string
)

var auditsCmd = &cobra.Command{
	Use:   "audits",
	Short: "Query indexed audit entries, newest first",
	Long: `Audits reads the sqlite index written by the server.

Example:
  admin audits --world world_1 --agent A1 --limit 20
  admin audits --db ./world.sqlite`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex()
		if err != nil {
			return err
		}
		defer idx.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		rows, err := idx.QueryAudits(ctx, strings.TrimSpace(auditsAgent), auditsLimit)
		if err != nil {
			return fmt.Errorf("query audits: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), rows)
	},
}

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Show the indexed slot state of an agent, a hand or a container",
	Long: `Slots reads the slot_state table as of the last indexed snapshot.

Example:
  admin slots --owner A1
  admin slots --owner A1/cursor
  admin slots --owner CHEST@base`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(slotsOwner) == "" {
			return fmt.Errorf("missing --owner")
		}
		idx, err := openIndex()
		if err != nil {
			return err
		}
		defer idx.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		rows, err := idx.QuerySlots(ctx, strings.TrimSpace(slotsOwner))
		if err != nil {
			return fmt.Errorf("query slots: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), rows)
	},
}

var auditLogCmd = &cobra.Command{
	Use:   "audit-log <file.jsonl.zst>...",
	Short: "Print entries of rotated audit log files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			err := persistlog.ReadAudits(path, func(e world.AuditEntry) error {
				return printJSON(cmd.OutOrStdout(), e)
			})
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{auditsCmd, slotsCmd} {
		c.Flags().StringVar(&dbPath, "db", "", "sqlite db path (default: <data>/worlds/<world>/index/world.sqlite)")
	}
	auditsCmd.Flags().StringVar(&auditsAgent, "agent", "", "filter by actor id")
	auditsCmd.Flags().IntVar(&auditsLimit, "limit", 20, "result limit")
	slotsCmd.Flags().StringVar(&slotsOwner, "owner", "", "agent id, <agent>/cursor, or container id")
}

func openIndex() (*indexdb.SQLiteIndex, error) {
	path := strings.TrimSpace(dbPath)
	if path == "" {
		path = filepath.Join(worldDir(), "index", "world.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return idx, nil
}
