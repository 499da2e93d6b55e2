package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/promptloom/internal/cli"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/replay"
)

func newReplayCmd(st *runtimeState) *cobra.Command {
	var (
		projectPath string
		projectID   string
		window      replay.Window
		jsonOut     bool
		showText    bool
	)
	cmd := &cobra.Command{
		Use:   "replay <dataset>",
		Short: "Render a project once per dataset row",
		Long: `Replays a dataset (a JSON array of rows, a dataset document or JSON Lines)
against a project. Each row's fields, or its "variables" object, override the
project variables of the same name. Runs are saved to the configured run
store and summarized in row order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ds, err := cli.ReadDataset(args[0])
			if err != nil {
				return err
			}
			p, err := cli.LoadProject(ctx, projectPath, projectID)
			if err != nil {
				return err
			}

			app, err := st.app()
			if err != nil {
				return err
			}
			defer app.Close()

			now := time.Now().UTC()
			if existing, err := app.Datasets.Load(ctx, ds.ID); err == nil {
				ds.CreatedAt = existing.CreatedAt
			} else {
				ds.CreatedAt = now
			}
			ds.UpdatedAt = now
			if err := app.Datasets.Save(ctx, ds); err != nil {
				return err
			}

			summaries, err := app.Replayer.Replay(ctx, p, ds, window)
			if err != nil {
				return err
			}
			app.Metrics.ObserveRuns(summaries)

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROW\tSTATUS\tMISSING\tDIGEST\tRUN")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%.12s\t%s\n", s.RowIndex, s.Status, s.MissingVariablesCount, s.OutputDigest, s.RunID)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if showText {
				for _, s := range summaries {
					rec, err := app.Runs.Load(ctx, s.RunID)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "\n--- row %d ---\n%s\n", s.RowIndex, rec.Trace.Text)
				}
			}
			return failedRuns(summaries)
		},
	}

	f := cmd.Flags()
	f.StringVar(&projectPath, "project", "", "Project file or directory (required)")
	f.StringVar(&projectID, "project-id", "", "Project ID inside a directory")
	f.IntVar(&window.Offset, "offset", 0, "First row to replay")
	f.IntVar(&window.Limit, "limit", replay.DefaultLimit, fmt.Sprintf("Rows to replay (max %d)", replay.MaxLimit))
	f.BoolVar(&jsonOut, "json", false, "Print the run summaries as JSON")
	f.BoolVar(&showText, "show-text", false, "Print each run's transcript after the table")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// failedRuns reports rows that could not be used as variable overrides.
func failedRuns(summaries []domain.RunSummary) error {
	failed := 0
	for _, s := range summaries {
		if s.Status == domain.RunFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d rows failed", failed, len(summaries))
	}
	return nil
}
