package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tutu-network/tutu-gym/internal/daemon"
	"github.com/tutu-network/tutu-gym/internal/domain"
	"github.com/tutu-network/tutu-gym/internal/episode"
	"github.com/tutu-network/tutu-gym/internal/grader"
)

func init() {
	playCmd.Flags().StringVar(&playTask, "task", "", "Task text (overrides config)")
	playCmd.Flags().IntVar(&playMaxTurns, "max-turns", 0, "Turn budget (overrides config)")
	rootCmd.AddCommand(playCmd)
}

var (
	playTask     string
	playMaxTurns int
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play one review episode interactively",
	Long: `Play one episode against the configured grader. Type a submission and
end it with a line containing only "." to submit. /quit exits.`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	task := cfg.Episode.Task
	if playTask != "" {
		task = playTask
	}
	maxTurns := cfg.Episode.MaxTurns
	if playMaxTurns > 0 {
		maxTurns = playMaxTurns
	}

	g, err := grader.New(cfg.GraderSettings())
	if err != nil {
		return err
	}
	env := episode.New(task, g, episode.WithMaxTurns(maxTurns))
	return playEpisode(env, cmd.InOrStdin(), cmd.OutOrStdout())
}

// playEpisode reads submissions from in until the episode ends, input is
// exhausted, or the player quits.
func playEpisode(env *episode.Env, in io.Reader, out io.Writer) error {
	env.Reset()
	if err := env.Render(out); err != nil {
		return err
	}
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	var total float64
	for !env.Done() {
		fmt.Fprintf(out, "--- turn %d/%d (end with \".\") ---\n", env.Turn()+1, env.MaxTurns())
		artifact, ok, quit := readSubmission(scanner)
		if quit {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if !ok {
			break
		}
		if err := domain.CheckText(artifact); err != nil {
			fmt.Fprintf(out, "Rejected: %v\n", err)
			continue
		}

		res := env.Step(artifact)
		total += res.Reward
		fmt.Fprintln(out, res.Observation)
		fmt.Fprintf(out, "reward=%.0f done=%t\n\n", res.Reward, res.Done)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Episode %s after %d turn(s), total reward %.0f\n", env.State(), env.Turn(), total)
	return nil
}

// readSubmission collects lines up to a lone ".". ok is false when input
// ended with nothing collected.
func readSubmission(s *bufio.Scanner) (artifact string, ok, quit bool) {
	var lines []string
	for s.Scan() {
		line := s.Text()
		if len(lines) == 0 && strings.TrimSpace(line) == "/quit" {
			return "", false, true
		}
		if line == "." {
			return strings.Join(lines, "\n"), true, false
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "", false, false
	}
	return strings.Join(lines, "\n"), true, false
}
