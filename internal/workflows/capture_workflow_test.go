package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"rankledger/internal/activities"
	"rankledger/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newEnv() *testsuite.TestWorkflowEnvironment {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CaptureWorkflow)
	registerActivityName(env, "CaptureSnapshotActivity", func(context.Context, activities.CaptureSnapshotInput) (activities.CaptureSnapshotOutput, error) {
		return activities.CaptureSnapshotOutput{}, nil
	})
	registerActivityName(env, "WriteRunManifestActivity", func(context.Context, activities.WriteRunManifestInput) (activities.WriteRunManifestOutput, error) {
		return activities.WriteRunManifestOutput{}, nil
	})
	return env
}

func result(status models.RunStatus, committed int) models.RunResult {
	return models.RunResult{RunID: "run-1", Status: status, Committed: committed, Attempted: committed}
}

func TestCaptureWorkflowDerivesPeriodFromClock(t *testing.T) {
	env := newEnv()
	env.SetStartTime(time.Date(2025, 3, 17, 7, 0, 0, 0, time.UTC))

	env.OnActivity("CaptureSnapshotActivity", mock.Anything, activities.CaptureSnapshotInput{Period: "2025-03-01", Policy: "history"}).
		Return(activities.CaptureSnapshotOutput{Result: result(models.RunCompleted, 42)}, nil).Once()
	env.OnActivity("WriteRunManifestActivity", mock.Anything, mock.Anything).
		Return(activities.WriteRunManifestOutput{Path: "/data/out/runs/2025-03-01/run-1.json"}, nil)

	env.ExecuteWorkflow(CaptureWorkflow, CaptureInput{Policy: "history"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out CaptureOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 42, out.Result.Committed)
	require.Equal(t, "/data/out/runs/2025-03-01/run-1.json", out.ManifestPath)
	env.AssertExpectations(t)
}

func TestCaptureWorkflowSkippedRunSucceeds(t *testing.T) {
	env := newEnv()
	env.OnActivity("CaptureSnapshotActivity", mock.Anything, mock.Anything).
		Return(activities.CaptureSnapshotOutput{Result: result(models.RunSkipped, 0)}, nil)
	env.OnActivity("WriteRunManifestActivity", mock.Anything, mock.Anything).
		Return(activities.WriteRunManifestOutput{}, errors.New("disk full"))

	env.ExecuteWorkflow(CaptureWorkflow, CaptureInput{Period: "2025-02-01"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out CaptureOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.RunSkipped, out.Result.Status)
	require.Empty(t, out.ManifestPath)
}

func TestCaptureWorkflowFailsOnFailedRun(t *testing.T) {
	env := newEnv()
	failed := result(models.RunFailed, 0)
	failed.Error = "natural key constraint violation"
	env.OnActivity("CaptureSnapshotActivity", mock.Anything, mock.Anything).
		Return(activities.CaptureSnapshotOutput{Result: failed}, nil)
	env.OnActivity("WriteRunManifestActivity", mock.Anything, mock.Anything).
		Return(activities.WriteRunManifestOutput{Path: "x"}, nil)

	env.ExecuteWorkflow(CaptureWorkflow, CaptureInput{Period: "2025-02-01"})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	require.Contains(t, env.GetWorkflowError().Error(), "constraint violation")
}

func TestCaptureActivityIsNotRetried(t *testing.T) {
	env := newEnv()
	env.OnActivity("CaptureSnapshotActivity", mock.Anything, mock.Anything).
		Return(activities.CaptureSnapshotOutput{}, errors.New("worker lost")).Once()

	env.ExecuteWorkflow(CaptureWorkflow, CaptureInput{Period: "2025-02-01"})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestCaptureActivityHeartbeats(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CaptureWorkflow)
	var heartbeat time.Duration
	registerActivityName(env, "CaptureSnapshotActivity", func(ctx context.Context, in activities.CaptureSnapshotInput) (activities.CaptureSnapshotOutput, error) {
		info := activity.GetInfo(ctx)
		heartbeat = info.HeartbeatTimeout
		return activities.CaptureSnapshotOutput{Result: result(models.RunCompleted, 1)}, nil
	})
	registerActivityName(env, "WriteRunManifestActivity", func(context.Context, activities.WriteRunManifestInput) (activities.WriteRunManifestOutput, error) {
		return activities.WriteRunManifestOutput{}, nil
	})

	env.ExecuteWorkflow(CaptureWorkflow, CaptureInput{Period: "2025-02-01"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	require.Equal(t, CaptureHeartbeatTimeout, heartbeat)
}

func TestWorkflowID(t *testing.T) {
	p, err := models.ParsePeriod("2025-03")
	require.NoError(t, err)
	require.Equal(t, "rankledger-capture-2025-03-01", WorkflowID(p))
}
