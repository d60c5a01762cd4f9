package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/praveen131106/ivr-modern"
	"github.com/praveen131106/ivr-modern/internal/cli"
	"github.com/praveen131106/ivr-modern/internal/presentation/tui"
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Place a call from the terminal",
	Long: `Starts a call and relays each line typed as caller input. A single key
(0-9, * or #) is a keypad press, anything else is speech. Type 'q' to hang up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, cli.EngineOptions{})
		if err != nil {
			return err
		}
		defer a.engine.Close()

		jsonMode, _ := cmd.Flags().GetBool("json")
		if !jsonMode {
			tui.PrintBanner(os.Stdout, ivr.Version)
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		summary, err := cli.RunCall(ctx, a.engine, cli.CallOptions{
			In:     os.Stdin,
			Out:    os.Stdout,
			Render: tui.NewRenderer(),
			JSON:   jsonMode,
		})
		if summary != nil && !jsonMode {
			cli.PrintSummary(os.Stdout, summary)
		}
		return cli.IgnoreInterrupt(err)
	},
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().Bool("json", false, "Emit turn results as JSON lines")
}
