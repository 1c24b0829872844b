package cli

import (
	"fmt"
	"time"

	"rankledger/internal/models"
	"rankledger/internal/workflows"

	"github.com/spf13/cobra"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

const cronWorkflowID = "rankledger-capture-cron"

type ScheduleOptions struct {
	*RootOptions
	Once   bool
	Status bool
	Period string
	Policy string
	Cron   string
}

func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Start the recurring capture workflow on Temporal",
		Long: `Start the cron capture workflow (default daily at 07:00). Each firing captures the
month of its own start time; months already captured are skipped by the run itself.

Example:
  snapshot schedule
  snapshot schedule --once --period 2025-03
  snapshot schedule --status --period 2025-03`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return schedule(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Once, "once", false, "start a single capture instead of the cron workflow")
	cmd.Flags().BoolVar(&opts.Status, "status", false, "query the status of the capture for --period")
	cmd.Flags().StringVar(&opts.Period, "period", "", "month for --once/--status (YYYY-MM); default current month")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "merge policy (history|current)")
	cmd.Flags().StringVar(&opts.Cron, "cron", rootOpts.Config.CronSchedule, "cron expression for the recurring workflow")
	return cmd
}

func schedule(cmd *cobra.Command, opts *ScheduleOptions) error {
	policy, err := parsePolicy(opts.Policy, opts.Config.Policy)
	if err != nil {
		return err
	}
	period, err := parsePeriodFlag(opts.Period)
	if err != nil {
		return err
	}
	if period.IsZero() {
		period = models.PeriodOf(time.Now())
	}

	c, err := tclient.Dial(tclient.Options{
		HostPort: opts.Config.TemporalAddress,
		Logger:   tlog.NewStructuredLogger(opts.logger(cmd)),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "dial temporal", err)
	}
	defer c.Close()
	ctx := cmd.Context()

	if opts.Status {
		resp, err := c.QueryWorkflow(ctx, workflows.WorkflowID(period), "", workflows.QueryGetStatus)
		if err != nil {
			return err
		}
		var status string
		if err := resp.Get(&status); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	}

	start := tclient.StartWorkflowOptions{
		TaskQueue:                                opts.Config.TemporalTaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	input := workflows.CaptureInput{Policy: string(policy)}
	if opts.Once {
		start.ID = workflows.WorkflowID(period)
		start.WorkflowIDReusePolicy = enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE
		input.Period = period.String()
	} else {
		start.ID = cronWorkflowID
		start.CronSchedule = opts.Cron
		start.WorkflowIDReusePolicy = enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE
	}

	we, err := c.ExecuteWorkflow(ctx, start, workflows.CaptureWorkflow, input)
	if err != nil {
		return WrapExitError(ExitFailure, "start workflow", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "started workflow_id=%s run_id=%s\n", we.GetID(), we.GetRunID())
	return nil
}
