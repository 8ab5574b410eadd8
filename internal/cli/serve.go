package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutu-network/tutu-gym/internal/daemon"
	"github.com/tutu-network/tutu-gym/internal/logging"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveIsolation, "isolation", "", "Job isolation: inprocess or subprocess (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost      string
	servePort      int
	serveIsolation string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the training daemon",
	Long:  `Start the training daemon and its HTTP API (POST /train, GET /status) at localhost:5000.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}
	if serveIsolation != "" {
		cfg.Jobs.Isolation = serveIsolation
	}

	logger, closeLog, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	d, err := daemon.NewWithConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Serve(cmd.Context())
}
