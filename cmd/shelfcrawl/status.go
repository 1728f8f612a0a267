package main

import (
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/shelfcrawl/internal/config"
	"github.com/nao1215/shelfcrawl/internal/database"
	"github.com/nao1215/shelfcrawl/internal/model"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the progress stored in a checkpoint",
		Long: `Status summarizes a checkpoint: pages visited, records extracted, URLs
pending, retrying and failed. With the sqlite backend the recent runs are
listed as well.

Examples:
  shelfcrawl status
  shelfcrawl status --backend sqlite --runs 5
  shelfcrawl status --json`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	addStoreFlags(cmd)
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	cmd.Flags().IntP("runs", "r", 10, "Number of recent runs to list (sqlite backend)")

	return cmd
}

// statusReport is the JSON form of the status output.
type statusReport struct {
	model.Stats

	Runs []database.Run `json:"runs,omitempty"`
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	if err := readStoreFlags(cmd, cfg); err != nil {
		return err
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("runs")
	if err != nil {
		return err
	}

	cp, db, err := loadCheckpoint(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	report := statusReport{Stats: cp.Stats()}
	if db != nil {
		defer db.Close()
		report.Runs, err = db.Runs(cmd.Context(), limit)
		if err != nil {
			return err
		}
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return writeStatus(cmd.OutOrStdout(), report)
}

// writeStatus renders the status report as Markdown.
func writeStatus(w io.Writer, report statusReport) error {
	md := markdown.NewMarkdown(w)

	md.H2("Checkpoint")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Visited", strconv.Itoa(report.Visited)},
			{"Extracted", strconv.Itoa(report.Extracted)},
			{"Pending", strconv.Itoa(report.Pending)},
			{"Retrying", strconv.Itoa(report.Retrying)},
			{"Failed", strconv.Itoa(report.Failed)},
		},
	})

	if len(report.Runs) > 0 {
		md.PlainText("")
		md.H2("Recent Runs")

		rows := make([][]string, 0, len(report.Runs))
		for _, run := range report.Runs {
			finished := "-"
			if !run.FinishedAt.IsZero() {
				finished = run.FinishedAt.Local().Format(time.DateTime)
			}
			rows = append(rows, []string{
				run.ID,
				run.StartedAt.Local().Format(time.DateTime),
				finished,
				run.Outcome,
				strconv.Itoa(run.Processed),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Run", "Started", "Finished", "Outcome", "Processed"},
			Rows:   rows,
		})
	}

	return md.Build()
}
