package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"rankledger/internal/config"
	"rankledger/internal/models"
	"rankledger/internal/util"
)

const stagingPrefix = "staging_"

var stagingNameRe = regexp.MustCompile(`^staging_[a-z0-9]+$`)

// Store is the permanent table set plus the ability to open per-run staging tables.
type Store interface {
	EnsureSchema(ctx context.Context) error
	// Captured reports whether the policy's permanent table already holds rows for period.
	Captured(ctx context.Context, policy models.Policy, period models.Period) (bool, error)
	OpenStaging(ctx context.Context, runID string, period models.Period) (Staging, error)
	Snapshot(ctx context.Context, policy models.Policy, period models.Period) ([]models.StoredEntity, error)
	Periods(ctx context.Context, policy models.Policy) ([]models.Period, error)
	StagingTables(ctx context.Context) ([]string, error)
	DropStaging(ctx context.Context, name string) error
	Close() error
}

// Staging is one run's scratch table. It is written only by the run that opened it.
type Staging interface {
	Name() string
	// Append stages entities for the period the table was opened for. Entities without
	// a period take the staging period; any other period is rejected.
	Append(ctx context.Context, entities []models.Entity) error
	// Merge moves the latest staged row per name into the permanent table in a single
	// transaction. On any failure nothing is committed.
	Merge(ctx context.Context, policy models.Policy, now time.Time) (models.MergeResult, error)
	// Drop removes the table. Calling it more than once is harmless.
	Drop(ctx context.Context) error
}

// Open builds the store selected by cfg.Store and applies its schema.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Store) {
	case "", "postgres", "postgresql":
		s, err = NewPostgresStore(ctx, cfg.PostgresURL)
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := util.EnsureDir(dir); err != nil {
				return nil, err
			}
		}
		s, err = OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// StagingTableName derives the staging table for a run ID (a UUID in practice).
func StagingTableName(runID string) (string, error) {
	name := stagingPrefix + strings.ToLower(strings.ReplaceAll(runID, "-", ""))
	if !stagingNameRe.MatchString(name) {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return name, nil
}

func checkStagingName(name string) error {
	if !stagingNameRe.MatchString(name) {
		return fmt.Errorf("not a staging table: %q", name)
	}
	return nil
}

func permanentTable(policy models.Policy) (string, error) {
	switch policy {
	case models.PolicyHistory:
		return "entity_snapshots", nil
	case models.PolicyCurrent:
		return "entity_current", nil
	default:
		return "", fmt.Errorf("unknown policy %q", policy)
	}
}

func stagedPeriod(staging models.Period, e models.Entity) (models.Period, error) {
	switch {
	case e.Period.IsZero():
		return staging, nil
	case e.Period.Equal(staging):
		return e.Period, nil
	default:
		return models.Period{}, storageErr("append staging row",
			fmt.Errorf("%q has period %s, staging holds %s", e.Name, e.Period, staging))
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", util.ErrStorage, op, err)
}

func constraintErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", util.ErrConstraintViolation, op, err)
}
