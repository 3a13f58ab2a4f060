// ABOUTME: Dead-letters command lists and purges permanently-failed embedding jobs
package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/sekha/internal/config"
	"github.com/harper/sekha/internal/storage/sqlite"
)

var purgeMessageID string

// NewDeadLettersCmd creates the dead-letters command group.
func NewDeadLettersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "Inspect and purge the embedding dead-letter queue",
	}
	cmd.AddCommand(newDeadLettersListCmd())
	cmd.AddCommand(newDeadLettersPurgeCmd())
	return cmd
}

func openDeadLetterStore() (*sqlite.DB, *sqlite.DeadLetterStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := sqlite.Open(cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return db, sqlite.NewDeadLetterStore(db), nil
}

func newDeadLettersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List messages permanently stuck in the embedding dead-letter queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := openDeadLetterStore()
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := store.List()
			if err != nil {
				return fmt.Errorf("list dead letters: %w", err)
			}

			if outputFormat == "json" {
				buf, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal dead letters: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", buf)
				return nil
			}

			if len(entries) == 0 {
				if !quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "no dead letters\n")
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "MESSAGE ID\tREASON\tATTEMPTS\tFIRST SEEN\tLAST SEEN\n")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.MessageID, e.Reason, e.Attempts, e.FirstSeen, e.LastSeen)
			}
			return w.Flush()
		},
	}
}

func newDeadLettersPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Purge dead letters (a single --message-id, or all when none is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := openDeadLetterStore()
			if err != nil {
				return err
			}
			defer db.Close()

			if purgeMessageID == "" {
				return store.PurgeAll()
			}
			return store.Purge(purgeMessageID)
		},
	}
	cmd.Flags().StringVar(&purgeMessageID, "message-id", "", "purge only this message id (default: purge all)")
	return cmd
}
