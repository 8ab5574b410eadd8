package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

func init() {
	trainCmd.Flags().StringVarP(&trainProfile, "profile", "p", "", "YAML file of hyperparameter overrides")
	trainCmd.Flags().Int64Var(&trainBreakStep, "break-step", 0, "Total environment step budget")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 0, "Random seed (0 = time based)")
	rootCmd.AddCommand(trainCmd)
}

var (
	trainProfile   string
	trainBreakStep int64
	trainSeed      int64
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Start a training job on the daemon",
	Long: `Start a training job on a running daemon. Hyperparameters default to the
daemon's [training] config; a --profile YAML file and flags override them:

  gamma: 0.95
  break_step: 200000
  eval_gap: 10`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	overrides, err := loadProfile(trainProfile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("break-step") {
		overrides["break_step"] = trainBreakStep
	}
	if cmd.Flags().Changed("seed") {
		overrides["seed"] = trainSeed
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	resp, err := c.Train(cmd.Context(), overrides)
	if errors.Is(err, domain.ErrAlreadyRunning) {
		return errors.New(resp.Message)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	fmt.Fprintf(cmd.OutOrStdout(), "  job: %s\n", resp.JobID)
	return nil
}

// loadProfile reads a YAML mapping of hyperparameter overrides. An empty
// path yields an empty map.
func loadProfile(path string) (map[string]any, error) {
	overrides := map[string]any{}
	if path == "" {
		return overrides, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("%w: profile %s: %v", domain.ErrInvalidConfig, path, err)
	}
	if overrides == nil {
		overrides = map[string]any{}
	}
	return overrides, nil
}
