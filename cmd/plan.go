package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chronoplan/chronoplan/app"
	"github.com/chronoplan/chronoplan/core/model"
)

var tasksPath string

// planInput is the batch file format accepted by the plan command.
type planInput struct {
	Tasks       []model.Task             `json:"tasks"`
	Estimates   []model.DurationEstimate `json:"estimates"`
	Constraints []string                 `json:"constraints"`
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Schedule a batch of tasks and print the result",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&tasksPath, "tasks", "t", "tasks.json", "task batch file")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := os.ReadFile(tasksPath)
	if err != nil {
		return fmt.Errorf("read tasks: %w", err)
	}
	var input planInput
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("parse tasks: %w", err)
	}

	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Plan(ctx, input.Tasks, input.Estimates, input.Constraints)
	if err != nil {
		return err
	}

	out := struct {
		RunID           string                `json:"run_id"`
		Status          string                `json:"status"`
		MakespanMinutes float64               `json:"makespan_minutes"`
		Tasks           []model.ScheduledTask `json:"tasks"`
	}{res.RunID, res.Status.String(), res.Makespan.Minutes(), res.Tasks}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
