package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praveen131106/ivr-modern/internal/cli"
	"github.com/praveen131106/ivr-modern/internal/presentation/graph"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List the loaded flows",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, cli.EngineOptions{})
		if err != nil {
			return err
		}
		defer a.engine.Close()

		flows := a.engine.ListFlows()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(flows)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATES\tOPTIONS\tINITIAL\tDESCRIPTION")
		for _, f := range flows {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", f.Name, len(f.States), f.OptionCount, f.InitialState, f.Description)
		}
		return w.Flush()
	},
}

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the flow graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of every flow; jumps between flows are dotted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, cli.EngineOptions{})
		if err != nil {
			return err
		}
		defer a.engine.Close()

		fmt.Print(graph.GenerateMermaid(a.engine.Flows(), nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flowsCmd)
	rootCmd.AddCommand(graphCmd)
	flowsCmd.Flags().Bool("json", false, "Print the flows as JSON")
}
