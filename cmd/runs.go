package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect reconciliation run history",
	Long:  "Commands for listing and viewing reconciliation runs, their phases and the code counts of their output.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reconciliation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			User:   user,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		phases, err := st.ListPhases(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*model.Run
			Phases []model.RunPhase `json:"phases"`
		}{run, phases})
	},
}

// -- runs counts --

var runsCountsCmd = &cobra.Command{
	Use:   "counts <run-id>",
	Short: "Show how often each code occurs in a run's output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := st.ListCodeCounts(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs counts")
		}
		formatCodeCounts(os.Stdout, counts)
		return nil
	},
}

// openHistory opens and migrates the run history store.
func openHistory(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("history"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, redirecting, complete, failed, ...)")
	runsListCmd.Flags().String("user", "", "filter by the user a run was attributed to")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsCountsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tINPUT\tSTATUS\tIN\tOUT\tREDIRECTED\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t--\t---\t----------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		input := r.Input.InputPath
		if len(input) > 30 {
			input = "..." + input[len(input)-27:]
		}

		var in, out, redirected int
		if r.Result != nil {
			in, out, redirected = r.Result.RecordsIn, r.Result.RecordsOut, r.Result.Redirected
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			input,
			r.Status,
			in,
			out,
			redirected,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatCodeCounts writes one line per field and code to w.
func formatCodeCounts(out io.Writer, counts []model.CodeCount) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tSCHEME\tCODE\tCOUNT")
	for _, c := range counts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.Field, c.SchemeID, c.CodeID, c.Count)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
