package activities

import (
	"context"
	"fmt"
	"log/slog"

	"rankledger/internal/config"
	"rankledger/internal/models"
	"rankledger/internal/pipeline"
	"rankledger/internal/storage"
	"rankledger/internal/util"

	"go.temporal.io/sdk/activity"
)

type Activities struct {
	cfg    config.Config
	runner *pipeline.Runner
}

func New(cfg config.Config, store storage.Store, logger *slog.Logger) (*Activities, error) {
	runner, err := pipeline.FromConfig(cfg, store, logger, func(d *pipeline.Deps) {
		d.Progress = heartbeat
	})
	if err != nil {
		return nil, err
	}
	return &Activities{cfg: cfg, runner: runner}, nil
}

// heartbeat keeps a long capture visible to the server and lets a workflow cancellation
// reach the run's context.
func heartbeat(ctx context.Context, p pipeline.Progress) {
	activity.RecordHeartbeat(ctx, p)
}

// CaptureSnapshotActivity performs one full run. Fetch retries happen inside the run,
// so the activity itself should not be retried by the scheduler.
func (a *Activities) CaptureSnapshotActivity(ctx context.Context, in CaptureSnapshotInput) (CaptureSnapshotOutput, error) {
	var period models.Period
	if in.Period != "" {
		p, err := models.ParsePeriod(in.Period)
		if err != nil {
			return CaptureSnapshotOutput{}, fmt.Errorf("parse period: %w", err)
		}
		period = p
	}
	policy := models.Policy(in.Policy)
	if policy == "" {
		policy = models.Policy(a.cfg.Policy)
	}
	return CaptureSnapshotOutput{Result: a.runner.Run(ctx, period, policy)}, nil
}

func (a *Activities) WriteRunManifestActivity(ctx context.Context, in WriteRunManifestInput) (WriteRunManifestOutput, error) {
	_ = ctx
	path, err := util.WriteRunManifest(a.cfg.DataOut, in.Result)
	if err != nil {
		return WriteRunManifestOutput{}, err
	}
	return WriteRunManifestOutput{Path: path}, nil
}
