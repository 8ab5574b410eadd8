package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a training job is running",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	st, err := c.Status(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, st.Status)
	if st.JobID != "" {
		fmt.Fprintf(out, "  job:     %s\n", st.JobID)
	}
	if st.StartedAt != nil {
		fmt.Fprintf(out, "  running: %s\n", time.Since(*st.StartedAt).Round(time.Second))
	}
	return nil
}
