package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/praveen131106/ivr-modern"
	"github.com/praveen131106/ivr-modern/internal/cli"
	"github.com/praveen131106/ivr-modern/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check the flows for consistency",
	Long: `Loads the flow documents and reports unknown targets, missing initial states,
unknown responses and unreachable states. With --watch, validation reruns whenever
a document in the directory changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			cfg.FlowsDir = args[0]
		}
		logger := newLogger(cfg)

		check := func() error {
			if err := runValidate(cfg); err != nil {
				fmt.Printf("Validation failed: %v\n", err)
				return err
			}
			fmt.Println("Flows are valid! ✅")
			return nil
		}

		watch, _ := cmd.Flags().GetBool("watch")
		if !watch {
			return check()
		}
		if cfg.FlowsDir == "" {
			return fmt.Errorf("--watch needs a flows directory")
		}

		_ = check()
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()
		return cli.WatchFlows(ctx, cfg.FlowsDir, logger, check)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("watch", false, "Revalidate on every change")
}

// runValidate builds a throwaway engine, which validates the flow set on load.
func runValidate(cfg *config.Config) error {
	if cfg.FlowsDir != "" {
		if _, err := os.Stat(cfg.FlowsDir); err != nil {
			return err
		}
	}
	eng, err := ivr.New(cfg.FlowsDir,
		ivr.WithMainFlow(cfg.MainFlow),
		ivr.WithSettings(cfg.Dialogue),
		ivr.WithIntentConfig(cfg.Intent),
	)
	if err != nil {
		return err
	}
	return eng.Close()
}
