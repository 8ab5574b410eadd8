package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tutu-network/tutu-gym/internal/jobs"
	"github.com/tutu-network/tutu-gym/internal/logging"
)

func init() {
	workerCmd.Flags().StringVar(&workerSpec, "spec", "", "Job spec YAML file")
	workerCmd.Flags().StringVar(&workerReport, "report", "", "Where to write the JSON training report")
	workerCmd.MarkFlagRequired("spec")
	rootCmd.AddCommand(workerCmd)
}

var (
	workerSpec   string
	workerReport string
)

// workerCmd is what the subprocess launcher executes.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run one training job from a spec file",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spec, err := jobs.ReadSpec(workerSpec)
	if err != nil {
		return err
	}
	// The daemon keeps the tail of stderr; the error printed on exit is last.
	logger, closeLog, err := logging.New(spec.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()
	return jobs.RunWorker(ctx, spec, workerReport, logger)
}

