package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/praveen131106/ivr-modern"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ivr",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ivr version %s\n", strings.TrimSpace(ivr.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
