package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for shelfcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelfcrawl",
		Short: "Polite, resumable web crawler",
		Long: `shelfcrawl crawls every page reachable from a seed URL within one origin,
extracts a record (title, price, rating by default) from each page and exports
the records as CSV, Markdown or JSON.

Progress is checkpointed after every page. Interrupt a crawl with Ctrl+C and
run the same command again to resume it.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
