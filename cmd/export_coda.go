package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/survey-cli/internal/pipeline"
)

var exportInput string

var exportCodaCmd = &cobra.Command{
	Use:   "export-coda",
	Short: "Add un-reviewed responses to the annotation files",
	Long:  "Reads a record file and appends every response whose codes are still missing or unreviewed to its plan's annotation file. Messages already in a file are kept as they are.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		c, err := loadCoding(cfg.Pipeline)
		if err != nil {
			return err
		}

		blobs, err := initBlob(ctx)
		if err != nil {
			return err
		}

		p := pipeline.New(cfg, nil, blobs, c.registry, c.lookup, nil)
		results, err := p.ExportCoda(ctx, exportInput)
		if err != nil {
			return err
		}

		formatExportResults(os.Stdout, results)
		return nil
	},
}

func init() {
	exportCodaCmd.Flags().StringVar(&exportInput, "input", "", "key of the record file to export from")
	_ = exportCodaCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(exportCodaCmd)
}

// formatExportResults writes one line per annotation file to w.
func formatExportResults(out io.Writer, results []pipeline.ExportResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tPENDING\tADDED\tTOTAL")
	_, _ = fmt.Fprintln(w, "----\t-------\t-----\t-----")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", r.Filename, r.Pending, r.Added, r.Total)
	}
	_ = w.Flush()
}
