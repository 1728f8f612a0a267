package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/shelfcrawl/internal/config"
	"github.com/nao1215/shelfcrawl/internal/export"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the records of a checkpoint",
		Long: `Export writes the records collected so far to a file, without crawling.

It works on finished and interrupted crawls alike, so partial results can be
inspected while a long crawl is paused.

Examples:
  # Export the default checkpoint as CSV
  shelfcrawl export

  # Export as a Markdown table
  shelfcrawl export --format markdown -o books.md

  # Export from the SQLite backend
  shelfcrawl export --backend sqlite --format json -o books.json`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	addStoreFlags(cmd)
	cmd.Flags().StringP("output", "o", config.DefaultOutputFile,
		"Export file path (creates directories if needed)")
	cmd.Flags().StringP("format", "f", config.DefaultExportFormat,
		"Export format: csv, markdown or json")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	if err := readStoreFlags(cmd, cfg); err != nil {
		return err
	}

	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	formatName, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}

	cp, db, err := loadCheckpoint(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	rows, err := export.WriteFile(output, format, cp.ProcessedData)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", rows, output)
	return nil
}
