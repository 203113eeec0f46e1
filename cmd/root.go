package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/config"
)

var (
	cfg        *config.Config
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "survey-cli",
	Short: "Survey coding reconciliation pipeline",
	Long:  "Merges manual annotation codes into survey records, moves responses coders flagged as answering the wrong question, and fills every remaining coded field with a control code.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadFrom(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyFlagOverrides(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().String("author", "", "author recorded on pipeline deltas (overrides pipeline.user)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides log.level)")
}

// applyFlagOverrides copies explicitly set persistent flags onto c.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	if f := cmd.Flags().Lookup("author"); f != nil && f.Changed {
		c.Pipeline.User = f.Value.String()
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		c.Log.Level = f.Value.String()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
