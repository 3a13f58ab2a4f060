// ABOUTME: Config command validates the layered configuration without starting the server
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/sekha/internal/config"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the layered configuration (env, config.toml, defaults)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}

			if outputFormat == "json" {
				buf, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", buf)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "configuration valid\n")
			fmt.Fprintf(cmd.OutOrStdout(), "  server:      %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Fprintf(cmd.OutOrStdout(), "  database:    %s\n", cfg.Database.URL)
			fmt.Fprintf(cmd.OutOrStdout(), "  vector store: %s\n", cfg.VectorStore.URL)
			fmt.Fprintf(cmd.OutOrStdout(), "  embedder:    %s (%s)\n", cfg.Embedder.URL, cfg.Embedder.Model)
			fmt.Fprintf(cmd.OutOrStdout(), "  summarizer:  %s (%s)\n", cfg.Summarizer.URL, cfg.Summarizer.Model)
			return nil
		},
	}
}
