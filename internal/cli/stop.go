package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

func init() {
	rootCmd.AddCommand(stopCmd)
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Cancel the running training job",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	resp, err := c.Stop(cmd.Context())
	if errors.Is(err, domain.ErrNoActiveJob) {
		fmt.Fprintln(cmd.OutOrStdout(), "No active training process.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (job %s)\n", resp.Message, resp.JobID)
	return nil
}
