package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"rankledger/internal/models"
	"rankledger/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed schema_postgres.sql
var postgresSchema string

var tracer = otel.Tracer("rankledger/storage")

const pgUniqueViolation = "23505"

var stagingColumns = []string{"name", "rank", "score", "location", "country", "city", "region", "period"}

type PostgresStore struct {
	db *DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := NewDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Captured(ctx context.Context, policy models.Policy, period models.Period) (bool, error) {
	table, err := permanentTable(policy)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE period = $1)`, pgDate(period)).Scan(&exists)
	if err != nil {
		return false, storageErr("check captured period", err)
	}
	return exists, nil
}

func (s *PostgresStore) OpenStaging(ctx context.Context, runID string, period models.Period) (Staging, error) {
	name, err := StagingTableName(runID)
	if err != nil {
		return nil, err
	}
	ident := pgx.Identifier{name}.Sanitize()
	_, err = s.db.Pool.Exec(ctx, `
CREATE TABLE `+ident+` (
  seq      BIGSERIAL PRIMARY KEY,
  name     TEXT NOT NULL,
  rank     INTEGER NOT NULL,
  score    NUMERIC,
  location TEXT NOT NULL DEFAULT '',
  country  TEXT NOT NULL DEFAULT '',
  city     TEXT NOT NULL DEFAULT '',
  region   TEXT NOT NULL DEFAULT '',
  period   DATE NOT NULL
)`)
	if err != nil {
		return nil, storageErr("create staging table", err)
	}
	return &pgStaging{db: s.db, name: name, period: period}, nil
}

func (s *PostgresStore) Snapshot(ctx context.Context, policy models.Policy, period models.Period) ([]models.StoredEntity, error) {
	table, err := permanentTable(policy)
	if err != nil {
		return nil, err
	}
	updated := "NULL::timestamptz"
	if policy == models.PolicyCurrent {
		updated = "updated_at"
	}
	rows, err := s.db.Pool.Query(ctx, `
SELECT name, rank, score, location, country, city, region, period, created_at, `+updated+`
FROM `+table+`
WHERE ($1::date IS NULL OR period = $1)
ORDER BY rank, name`, pgDate(period))
	if err != nil {
		return nil, storageErr("list snapshot", err)
	}
	defer rows.Close()

	out := make([]models.StoredEntity, 0)
	for rows.Next() {
		var (
			e     models.StoredEntity
			score pgtype.Numeric
			day   pgtype.Date
		)
		if err := rows.Scan(&e.Name, &e.Rank, &score, &e.Location, &e.Country, &e.City, &e.Region, &day, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, storageErr("scan snapshot row", err)
		}
		e.Score = fromNumeric(score)
		e.Period = models.PeriodOf(day.Time)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate snapshot", err)
	}
	return out, nil
}

func (s *PostgresStore) Periods(ctx context.Context, policy models.Policy) ([]models.Period, error) {
	table, err := permanentTable(policy)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Pool.Query(ctx, `SELECT DISTINCT period FROM `+table+` ORDER BY period DESC`)
	if err != nil {
		return nil, storageErr("list periods", err)
	}
	defer rows.Close()
	out := make([]models.Period, 0)
	for rows.Next() {
		var day pgtype.Date
		if err := rows.Scan(&day); err != nil {
			return nil, storageErr("scan period", err)
		}
		out = append(out, models.PeriodOf(day.Time))
	}
	return out, rows.Err()
}

func (s *PostgresStore) StagingTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.Pool.Query(ctx, `
SELECT tablename FROM pg_tables
WHERE schemaname = current_schema() AND tablename LIKE 'staging\_%'
ORDER BY tablename`)
	if err != nil {
		return nil, storageErr("list staging tables", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storageErr("scan staging tables", err)
	}
	return names, nil
}

func (s *PostgresStore) DropStaging(ctx context.Context, name string) error {
	if err := checkStagingName(name); err != nil {
		return err
	}
	if _, err := s.db.Pool.Exec(ctx, `DROP TABLE IF EXISTS `+pgx.Identifier{name}.Sanitize()); err != nil {
		return storageErr("drop staging table", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

type pgStaging struct {
	db      *DB
	name    string
	period  models.Period
	dropped bool
}

func (t *pgStaging) Name() string { return t.name }

func (t *pgStaging) Append(ctx context.Context, entities []models.Entity) error {
	if t.dropped {
		return util.ErrStagingClosed
	}
	if len(entities) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(entities))
	for _, e := range entities {
		period, err := stagedPeriod(t.period, e)
		if err != nil {
			return err
		}
		rows = append(rows, []any{e.Name, e.Rank, toNumeric(e.Score), e.Location, e.Country, e.City, e.Region, pgDate(period)})
	}
	n, err := t.db.Pool.CopyFrom(ctx, pgx.Identifier{t.name}, stagingColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return storageErr("copy into staging", err)
	}
	if int(n) != len(entities) {
		return storageErr("copy into staging", fmt.Errorf("copied %d of %d rows", n, len(entities)))
	}
	return nil
}

func (t *pgStaging) Merge(ctx context.Context, policy models.Policy, now time.Time) (models.MergeResult, error) {
	ctx, span := tracer.Start(ctx, "Staging.Merge")
	defer span.End()
	span.SetAttributes(attribute.String("policy", string(policy)), attribute.String("staging", t.name))

	if t.dropped {
		return models.MergeResult{}, util.ErrStagingClosed
	}
	table, err := permanentTable(policy)
	if err != nil {
		return models.MergeResult{}, err
	}
	ident := pgx.Identifier{t.name}.Sanitize()

	tx, err := t.db.Pool.Begin(ctx)
	if err != nil {
		return models.MergeResult{}, storageErr("begin merge", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var res models.MergeResult
	if err := tx.QueryRow(ctx, `SELECT COUNT(DISTINCT name) FROM `+ident).Scan(&res.Attempted); err != nil {
		return res, storageErr("count staged names", err)
	}
	if res.Attempted == 0 {
		return res, nil
	}

	latest := `
SELECT DISTINCT ON (name) name, rank, score, location, country, city, region, period, $1::timestamptz
FROM ` + ident + `
ORDER BY name, seq DESC`

	var q string
	switch policy {
	case models.PolicyHistory:
		q = `INSERT INTO ` + table + ` (name, rank, score, location, country, city, region, period, created_at)` + latest
	case models.PolicyCurrent:
		q = `INSERT INTO ` + table + ` (name, rank, score, location, country, city, region, period, created_at)` + latest + `
ON CONFLICT (name) DO UPDATE SET
  rank = EXCLUDED.rank,
  score = EXCLUDED.score,
  location = EXCLUDED.location,
  country = EXCLUDED.country,
  city = EXCLUDED.city,
  region = EXCLUDED.region,
  period = EXCLUDED.period,
  updated_at = $1
WHERE ` + table + `.period <= EXCLUDED.period`
	}

	tag, err := tx.Exec(ctx, q, now.UTC())
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return res, constraintErr("merge into "+table, err)
		}
		return res, storageErr("merge into "+table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return res, storageErr("commit merge", err)
	}
	res.Committed = int(tag.RowsAffected())
	span.SetAttributes(attribute.Int("attempted", res.Attempted), attribute.Int("committed", res.Committed))
	return res, nil
}

func (t *pgStaging) Drop(ctx context.Context) error {
	if _, err := t.db.Pool.Exec(ctx, `DROP TABLE IF EXISTS `+pgx.Identifier{t.name}.Sanitize()); err != nil {
		return storageErr("drop staging table", err)
	}
	t.dropped = true
	return nil
}

func pgDate(p models.Period) pgtype.Date {
	if p.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: p.Time(), Valid: true}
}

func toNumeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: d.Decimal.Coefficient(), Exp: d.Decimal.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromBigInt(n.Int, n.Exp))
}
