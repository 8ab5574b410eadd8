// Package cli implements the tutu-gym command-line interface using Cobra.
// serve runs the training daemon; train, status, stop and jobs talk to it
// over HTTP; play runs one episode interactively.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tutu-gym",
	Short: "tutu-gym — train agents on turn-bounded code review episodes",
	Long: `tutu-gym runs code review episodes: an agent submits a candidate fix,
a grader approves or rejects it, and the episode ends on approval or when
the turn budget runs out. The daemon trains a policy on these episodes as a
single background job.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var daemonAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&daemonAddr, "addr", "", "Daemon address host:port (default from config)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
