package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"smartkeiba/internal/app"
	"smartkeiba/internal/domain"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run delta exports and inspect their history",
	}
	cmd.AddCommand(newExportRunCmd(opts))
	cmd.AddCommand(newExportJobsCmd(opts))
	cmd.AddCommand(newExportStateCmd(opts))
	cmd.AddCommand(newExportRunsCmd(opts))
	return cmd
}

// withApp builds the full application for the duration of fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(*app.App) error) error {
	cfg, logger, err := opts.loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}

func newExportRunCmd(opts *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "run [job]",
		Short: "Export rows that changed since the last run",
		Args: func(_ *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("--all does not take a job name")
			}
			if !all && len(args) != 1 {
				return errors.New("expected exactly one job name, or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				if all {
					results, err := a.Exports.RunAll(cmd.Context(), domain.TriggerManual)
					if perr := printResults(cmd, results); perr != nil {
						return perr
					}
					return err
				}
				res, err := a.Exports.Run(cmd.Context(), args[0], domain.TriggerManual)
				if err != nil {
					return err
				}
				return printResults(cmd, []*domain.ExportResult{res})
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Run every configured job concurrently")
	return cmd
}

func newExportJobsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List configured export jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				jobs := a.Exports.Jobs()
				if getOutputFormat(cmd) == "json" {
					return PrintJSON(cmd.OutOrStdout(), jobs)
				}
				rows := make([][]string, 0, len(jobs))
				for _, j := range jobs {
					rows = append(rows, []string{j.Name, j.Table, string(j.Mode), strconv.Itoa(j.ChunkSize), j.Schedule})
				}
				PrintTable(cmd.OutOrStdout(), []string{"name", "table", "mode", "chunk", "schedule"}, rows)
				return nil
			})
		},
	}
}

func newExportStateCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "state <job>",
		Short: "Show the last exported hash per key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				states, err := a.Exports.States(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return PrintJSON(cmd.OutOrStdout(), states)
				}
				rows := make([][]string, 0, len(states))
				for _, s := range states {
					rows = append(rows, []string{s.Key, s.ContentHash, s.ExportedAt.Format(time.RFC3339)})
				}
				PrintTable(cmd.OutOrStdout(), []string{"key", "hash", "exported_at"}, rows)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of keys to show (0 uses the default)")
	return cmd
}

func newExportRunsCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [job]",
		Short: "Show recent export runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := ""
			if len(args) == 1 {
				job = args[0]
			}
			return withApp(cmd, opts, func(a *app.App) error {
				runs, err := a.Exports.Runs(cmd.Context(), job, limit)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return PrintJSON(cmd.OutOrStdout(), runs)
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					msg := ""
					if r.ErrorMessage != nil {
						msg = *r.ErrorMessage
					}
					rows = append(rows, []string{
						r.ID, r.Job, r.Status, r.Trigger,
						strconv.FormatInt(r.RowsExported, 10),
						r.StartedAt.Format(time.RFC3339), msg,
					})
				}
				PrintTable(cmd.OutOrStdout(), []string{"id", "job", "status", "trigger", "rows", "started_at", "error"}, rows)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of runs to show (0 uses the default)")
	return cmd
}

func printResults(cmd *cobra.Command, results []*domain.ExportResult) error {
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(cmd.OutOrStdout(), results)
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		msg := fmt.Sprintf("exported %d rows", r.RowsExported)
		if r.NoUpdates() {
			msg = "no updates"
		}
		rows = append(rows, []string{r.Job, strconv.Itoa(r.RowsExported), strings.Join(r.Files, ","), msg})
	}
	PrintTable(cmd.OutOrStdout(), []string{"job", "rows", "files", "message"}, rows)
	return nil
}
