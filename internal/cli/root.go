// Package cli implements the tracker commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var formatFlag string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Elapsed time tracker",
	Long:  "Tracks the time elapsed since a start date, notifies on every full hour and serves a small photo gallery.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
