// ABOUTME: Root CLI command and global flags for sekhactl
// ABOUTME: Wires serve, migrate, config, and dead-letters subcommands
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

const banner = `
 ███████╗███████╗██╗  ██╗██╗  ██╗ █████╗
 ██╔════╝██╔════╝██║ ██╔╝██║  ██║██╔══██╗
 ███████╗█████╗  █████╔╝ ███████║███████║
 ╚════██║██╔══╝  ██╔═██╗ ██╔══██║██╔══██║
 ███████║███████╗██║  ██╗██║  ██║██║  ██║
 ╚══════╝╚══════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝
`

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

// NewRootCmd builds the sekhactl root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sekhactl",
		Short: "Operate a sekha memory server",
		Long: banner + `
sekhactl is the operator CLI for sekha: serve the HTTP/MCP interface,
apply database migrations, validate configuration, and manage the
embedding dead-letter queue.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table, json")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewDeadLettersCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
