package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/praveen131106/ivr-modern/internal/cli"
	"github.com/praveen131106/ivr-modern/internal/config"
	"github.com/praveen131106/ivr-modern/pkg/adapters/archive"
)

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Browse archived calls",
	Long: `Lists the most recent archived calls, or prints the full summary of one call.
Needs an archive driver (IVR_ARCHIVE_DRIVER, IVR_ARCHIVE_DSN or the config file).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Archive.Driver == config.ArchiveNone {
			return errors.New("no archive configured")
		}

		a, err := archive.Open(cmd.Context(), cfg.Archive.Driver, cfg.Archive.DSN, archive.WithLogger(newLogger(cfg)))
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			summary, err := a.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error loading call '%s': %w", args[0], err)
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return json.NewEncoder(os.Stdout).Encode(summary)
			}
			cli.PrintSummary(os.Stdout, summary)
			for _, e := range summary.Transcript {
				fmt.Printf("[%d] %s: %s\n", e.Turn, e.Speaker, e.Text)
			}
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		summaries, err := a.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No archived calls.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tENDED\tEXCHANGES\tFINAL")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s/%s\n", s.SessionID, s.EndedAt.Format(time.DateTime), s.TotalExchanges, s.FinalFlow, s.FinalState)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 20, "Number of calls to list")
	historyCmd.Flags().Bool("json", false, "Print the summary as JSON")
}
