// Command analyst runs the multi-agent data analyst.
//
// Usage:
//
//	analyst chat                                  # interactive conversation
//	analyst serve --config analyst.yaml           # HTTP API
//	analyst init-db [--drop]                      # create the analytics schema
//	analyst upload-snapshot --dir ./data          # load CSV snapshot files
//	analyst version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "analyst",
		Short: "Multi-agent data analyst for the coffee-shop database",
		Long: `analyst routes natural-language questions through a router, a SQL writer,
an insight generator and an answer summarizer backed by the analytics database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "analyst.yaml", "Path to config file")

	rootCmd.AddCommand(
		newChatCmd(flags),
		newServeCmd(flags),
		newInitDBCmd(flags),
		newUploadSnapshotCmd(flags),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "analyst %s (%s)\n", Version, GitCommit)
		},
	}
}
