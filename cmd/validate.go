package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/survey-cli/internal/blob"
	"github.com/sells-group/survey-cli/internal/plan"
	"github.com/sells-group/survey-cli/internal/recordio"
)

var validateInput string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check schemes, coding plans and (optionally) a record file",
	Long:  "Loads every code scheme and the coding plan registry and reports any configuration error. With --input, also checks that every record only uses declared fields.",
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

		report, err := checkSetup(ctx, c.registry, blobs, cfg.Pipeline.AnnotationPrefix, validateInput)
		if err != nil {
			return err
		}
		formatValidateReport(os.Stdout, report)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateInput, "input", "", "key of a record file to check against the registry")
	rootCmd.AddCommand(validateCmd)
}

// validateReport summarizes a loaded coding configuration.
type validateReport struct {
	Plans           int
	Repeating       int
	Singular        int
	Location        int
	Correction      string
	MissingCodas    []string
	Records         int
	RecordsChecked  bool
	AnnotationFiles int
}

// checkSetup inspects reg and, when input is set, loads it against the
// registry schema. Missing annotation files are reported, not fatal.
func checkSetup(ctx context.Context, reg *plan.Registry, blobs blob.Store, prefix, input string) (validateReport, error) {
	r := validateReport{
		Plans:      len(reg.Plans()),
		Repeating:  len(reg.Repeating()),
		Singular:   len(reg.Singular()),
		Location:   len(reg.LocationPlans()),
		Correction: reg.CorrectionScheme().ID(),
	}

	seen := make(map[string]bool)
	for _, p := range reg.Plans() {
		if seen[p.CodaFilename] {
			continue
		}
		seen[p.CodaFilename] = true
		r.AnnotationFiles++
		_, err := blobs.Head(ctx, path.Join(prefix, p.CodaFilename))
		if errors.Is(err, blob.ErrNotFound) {
			r.MissingCodas = append(r.MissingCodas, p.CodaFilename)
			continue
		}
		if err != nil {
			return r, err
		}
	}

	if input != "" {
		records, err := recordio.Load(ctx, blobs, input, reg.Schema())
		if err != nil {
			return r, err
		}
		r.Records = len(records)
		r.RecordsChecked = true
	}
	return r, nil
}

// formatValidateReport writes the report to w.
func formatValidateReport(out io.Writer, r validateReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Plans:\t%d\n", r.Plans)
	_, _ = fmt.Fprintf(w, "  Repeating:\t%d\n", r.Repeating)
	_, _ = fmt.Fprintf(w, "  Singular:\t%d\n", r.Singular)
	_, _ = fmt.Fprintf(w, "  Location levels:\t%d\n", r.Location)
	_, _ = fmt.Fprintf(w, "Correction scheme:\t%s\n", r.Correction)
	_, _ = fmt.Fprintf(w, "Annotation files:\t%d (%d missing)\n", r.AnnotationFiles, len(r.MissingCodas))
	for _, f := range r.MissingCodas {
		_, _ = fmt.Fprintf(w, "  missing:\t%s\n", f)
	}
	if r.RecordsChecked {
		_, _ = fmt.Fprintf(w, "Records:\t%d OK\n", r.Records)
	}
	_ = w.Flush()
}
