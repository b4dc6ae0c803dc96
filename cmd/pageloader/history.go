package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/pageloader/internal/config"
	"github.com/nao1215/pageloader/internal/database"
	"github.com/nao1215/pageloader/internal/model"
	"github.com/nao1215/pageloader/internal/report"
)

// errLoadNotFound is returned when a requested stored load does not exist.
var errLoadNotFound = errors.New("load not found in history")

// NewHistoryCmd creates the history command.
// This command lists loads recorded in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [page-url]",
		Short: "List past page loads",
		Long: `History lists the loads recorded in the history database, newest first.

Every load is recorded, successful or not, unless --no-history was given.
The database lives in the XDG data directory (~/.local/share/pageloader).

Examples:
  # List the most recent loads
  pageloader history

  # List loads of one page
  pageloader history https://example.com/courses

  # Show the full report of load 12
  pageloader history --id 12

  # Show the full report of the latest load of a page
  pageloader history --latest https://example.com/courses

  # Output in JSON format
  pageloader history --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", config.DefaultHistoryLimit,
		"Maximum number of loads to list (0 = all)")
	cmd.Flags().Int64P("id", "i", 0,
		"Show the full report of the load with this ID")
	cmd.Flags().Bool("latest", false,
		"Show the full report of the latest load of the given page")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	id, err := cmd.Flags().GetInt64("id")
	if err != nil {
		return err
	}
	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	var pageURL string
	if len(args) > 0 {
		pageURL = args[0]
	}

	// Validate arguments before opening the database.
	if latest && pageURL == "" {
		return errors.New("--latest requires a page URL")
	}
	if latest && id != 0 {
		return errors.New("--latest and --id cannot be used together")
	}

	db, err := database.Open(getDBDirFlag(cmd), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case id != 0:
		r, err := db.GetLoadReportByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get load %d: %w", id, err)
		}
		if r == nil {
			return fmt.Errorf("%w: id %d", errLoadNotFound, id)
		}
		return showStoredReport(out, r, asJSON, getVerboseFlag(cmd))

	case latest:
		r, err := db.GetLatest(ctx, pageURL)
		if err != nil {
			return fmt.Errorf("failed to get latest load: %w", err)
		}
		if r == nil {
			return fmt.Errorf("%w: %s", errLoadNotFound, pageURL)
		}
		return showStoredReport(out, r, asJSON, getVerboseFlag(cmd))
	}

	records, err := db.ListLoads(ctx, pageURL, limit)
	if err != nil {
		return fmt.Errorf("failed to list loads: %w", err)
	}

	if asJSON {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(records)
		return err
	}
	return printHistory(out, records)
}

// showStoredReport prints a report read back from the database.
func showStoredReport(w io.Writer, r *model.LoadReport, asJSON, verbose bool) error {
	var writer report.Writer
	if asJSON {
		writer = report.NewJSONWriter(w, report.WithPrettyPrint())
	} else {
		writer = report.NewSimpleWriter(w, report.WithVerbose(verbose))
	}
	_, err := writer.Write(r)
	return err
}

// printHistory prints records as an aligned table.
func printHistory(w io.Writer, records []database.LoadRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No loads recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tASSETS\tSIZE\tDURATION\tURL")
	for _, rec := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			rec.ID,
			rec.StartedAt.Local().Format(time.DateTime),
			historyStatus(rec),
			rec.AssetCount,
			report.FormatBytes(rec.AssetBytes),
			rec.Duration.Round(time.Millisecond),
			rec.PageURL,
		)
	}
	return tw.Flush()
}

// historyStatus returns the status column of rec.
func historyStatus(rec database.LoadRecord) string {
	if rec.Succeeded {
		return "saved"
	}
	if rec.FailedPhase != "" {
		return "failed (" + rec.FailedPhase + ")"
	}
	return "failed"
}
