package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/survey-cli/internal/metrics"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/pipeline"
)

var (
	runInput  string
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile one batch of survey records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
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

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p := pipeline.New(cfg, st, blobs, c.registry, c.lookup, metrics.New())
		result, err := p.Run(ctx, model.RunInput{
			User:       cfg.Pipeline.User,
			InputPath:  runInput,
			OutputPath: runOutput,
			PlansFile:  cfg.Pipeline.PlansFile,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "key of the input record file (.jsonl or .json, optionally .gz)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "key to write the reconciled records to")
	_ = runCmd.MarkFlagRequired("input")
	_ = runCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(runCmd)
}
