package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "Maximum number of jobs to list")
	rootCmd.AddCommand(jobsCmd)
}

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs [ID]",
	Short: "List training jobs, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJobs,
}

func runJobs(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		job, err := c.Job(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJob(cmd.OutOrStdout(), job)
	}

	list, err := c.Jobs(cmd.Context(), jobsLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No training jobs yet.")
		return nil
	}
	return printJobTable(cmd.OutOrStdout(), list)
}

func printJobTable(out io.Writer, list []domain.JobRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOUTCOME\tISOLATION\tSTARTED\tDURATION\tSTEPS\tBEST EVAL")
	for _, j := range list {
		steps, best := "-", "-"
		if j.Report != nil {
			steps = fmt.Sprint(j.Report.Steps)
			best = fmt.Sprintf("%.2f", j.Report.BestEvalReward)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID,
			j.Outcome,
			j.Isolation,
			j.StartedAt.Local().Format("2006-01-02 15:04:05"),
			j.Duration().Round(time.Second),
			steps,
			best,
		)
	}
	return w.Flush()
}

func printJob(out io.Writer, j *domain.JobRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", j.ID)
	fmt.Fprintf(w, "Outcome\t%s\n", j.Outcome)
	fmt.Fprintf(w, "Isolation\t%s\n", j.Isolation)
	fmt.Fprintf(w, "Started\t%s\n", j.StartedAt.Local().Format(time.RFC3339))
	if !j.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Finished\t%s\n", j.FinishedAt.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Duration\t%s\n", j.Duration().Round(time.Second))
	if j.Error != "" {
		fmt.Fprintf(w, "Error\t%s\n", j.Error)
	}
	if r := j.Report; r != nil {
		fmt.Fprintf(w, "Steps\t%d\n", r.Steps)
		fmt.Fprintf(w, "Episodes\t%d (%d approved)\n", r.Episodes, r.Approved)
		fmt.Fprintf(w, "Mean reward\t%.3f\n", r.MeanReward)
		fmt.Fprintf(w, "Best eval\t%.3f over %d evaluations\n", r.BestEvalReward, r.Evaluations)
	}
	return w.Flush()
}
