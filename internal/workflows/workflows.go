package workflows

import (
	"fmt"
	"time"

	"rankledger/internal/activities"
	"rankledger/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetStatus = "GetStatus"

// CaptureHeartbeatTimeout covers the slowest single page: every fetch attempt timing out
// plus the backoff waits between them.
const CaptureHeartbeatTimeout = 5 * time.Minute

// WorkflowID is the per-period workflow ID; starting a second capture for the same
// period is rejected by the reuse policy the CLI sets.
func WorkflowID(period models.Period) string {
	return "rankledger-capture-" + period.String()
}

// CaptureWorkflow runs one capture for the month of the workflow clock (or the
// requested period) and records its manifest. A failed run fails the workflow.
func CaptureWorkflow(ctx workflow.Context, input CaptureInput) (CaptureOutput, error) {
	status := "starting"
	if err := workflow.SetQueryHandler(ctx, QueryGetStatus, func() (string, error) {
		return status, nil
	}); err != nil {
		return CaptureOutput{}, err
	}

	period := input.Period
	if period == "" {
		period = models.PeriodOf(workflow.Now(ctx)).String()
	}
	logger := workflow.GetLogger(ctx)
	logger.Info("capture starting", "period", period, "policy", input.Policy)

	captureCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 45 * time.Minute,
		HeartbeatTimeout:    CaptureHeartbeatTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	status = "capturing"
	var captured activities.CaptureSnapshotOutput
	if err := workflow.ExecuteActivity(captureCtx, "CaptureSnapshotActivity", activities.CaptureSnapshotInput{
		Period: period,
		Policy: input.Policy,
	}).Get(ctx, &captured); err != nil {
		status = "failed"
		return CaptureOutput{}, err
	}
	out := CaptureOutput{Result: captured.Result}

	manifestCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	})
	var manifest activities.WriteRunManifestOutput
	if err := workflow.ExecuteActivity(manifestCtx, "WriteRunManifestActivity", activities.WriteRunManifestInput{Result: captured.Result}).Get(ctx, &manifest); err != nil {
		logger.Warn("write run manifest failed", "error", err)
	} else {
		out.ManifestPath = manifest.Path
	}

	status = string(captured.Result.Status)
	logger.Info("capture finished", "status", status, "committed", captured.Result.Committed)
	if captured.Result.Status == models.RunFailed {
		return out, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("capture %s failed: %s", period, captured.Result.Error), "CaptureFailed", nil)
	}
	return out, nil
}
