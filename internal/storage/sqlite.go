package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"rankledger/internal/models"
	"rankledger/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLiteStore is the embedded backend. SQLite allows one writer, so the pool holds a
// single connection and staging tables live in the same database file.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Captured(ctx context.Context, policy models.Policy, period models.Period) (bool, error) {
	table, err := permanentTable(policy)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE period = ?)`, period.String()).Scan(&exists)
	if err != nil {
		return false, storageErr("check captured period", err)
	}
	return exists, nil
}

func (s *SQLiteStore) OpenStaging(ctx context.Context, runID string, period models.Period) (Staging, error) {
	name, err := StagingTableName(runID)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
CREATE TABLE `+quoteIdent(name)+` (
  seq      INTEGER PRIMARY KEY AUTOINCREMENT,
  name     TEXT NOT NULL,
  rank     INTEGER NOT NULL,
  score    TEXT,
  location TEXT NOT NULL DEFAULT '',
  country  TEXT NOT NULL DEFAULT '',
  city     TEXT NOT NULL DEFAULT '',
  region   TEXT NOT NULL DEFAULT '',
  period   TEXT NOT NULL
)`)
	if err != nil {
		return nil, storageErr("create staging table", err)
	}
	return &sqliteStaging{db: s.db, name: name, period: period}, nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context, policy models.Policy, period models.Period) ([]models.StoredEntity, error) {
	table, err := permanentTable(policy)
	if err != nil {
		return nil, err
	}
	updated := "NULL"
	if policy == models.PolicyCurrent {
		updated = "updated_at"
	}
	var filter any
	if !period.IsZero() {
		filter = period.String()
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT name, rank, score, location, country, city, region, period, created_at, `+updated+`
FROM `+table+`
WHERE (?1 IS NULL OR period = ?1)
ORDER BY rank, name`, filter)
	if err != nil {
		return nil, storageErr("list snapshot", err)
	}
	defer rows.Close()

	out := make([]models.StoredEntity, 0)
	for rows.Next() {
		var (
			e                models.StoredEntity
			score, upd       sql.NullString
			periodText, crAt string
		)
		if err := rows.Scan(&e.Name, &e.Rank, &score, &e.Location, &e.Country, &e.City, &e.Region, &periodText, &crAt, &upd); err != nil {
			return nil, storageErr("scan snapshot row", err)
		}
		if e.Score, err = parseScoreText(score); err != nil {
			return nil, storageErr("decode score", err)
		}
		if e.Period, err = models.ParsePeriod(periodText); err != nil {
			return nil, storageErr("decode period", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, crAt); err != nil {
			return nil, storageErr("decode created_at", err)
		}
		if upd.Valid {
			ts, err := time.Parse(time.RFC3339Nano, upd.String)
			if err != nil {
				return nil, storageErr("decode updated_at", err)
			}
			e.UpdatedAt = &ts
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate snapshot", err)
	}
	return out, nil
}

func (s *SQLiteStore) Periods(ctx context.Context, policy models.Policy) ([]models.Period, error) {
	table, err := permanentTable(policy)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT period FROM `+table+` ORDER BY period DESC`)
	if err != nil {
		return nil, storageErr("list periods", err)
	}
	defer rows.Close()
	out := make([]models.Period, 0)
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, storageErr("scan period", err)
		}
		p, err := models.ParsePeriod(text)
		if err != nil {
			return nil, storageErr("decode period", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) StagingTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name FROM sqlite_master
WHERE type = 'table' AND name LIKE 'staging\_%' ESCAPE '\'
ORDER BY name`)
	if err != nil {
		return nil, storageErr("list staging tables", err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storageErr("scan staging table", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DropStaging(ctx context.Context, name string) error {
	if err := checkStagingName(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(name)); err != nil {
		return storageErr("drop staging table", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type sqliteStaging struct {
	db      *sql.DB
	name    string
	period  models.Period
	dropped bool
}

func (t *sqliteStaging) Name() string { return t.name }

func (t *sqliteStaging) Append(ctx context.Context, entities []models.Entity) (err error) {
	if t.dropped {
		return util.ErrStagingClosed
	}
	if len(entities) == 0 {
		return nil
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin staging append", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+quoteIdent(t.name)+` (name, rank, score, location, country, city, region, period) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return storageErr("prepare staging append", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		var period models.Period
		if period, err = stagedPeriod(t.period, e); err != nil {
			return err
		}
		if _, err = stmt.ExecContext(ctx, e.Name, e.Rank, scoreText(e.Score), e.Location, e.Country, e.City, e.Region, period.String()); err != nil {
			return storageErr("append staging row", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return storageErr("commit staging append", err)
	}
	return nil
}

func (t *sqliteStaging) Merge(ctx context.Context, policy models.Policy, now time.Time) (models.MergeResult, error) {
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
	ident := quoteIdent(t.name)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return models.MergeResult{}, storageErr("begin merge", err)
	}
	defer func() { _ = tx.Rollback() }()

	var res models.MergeResult
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(DISTINCT name) FROM `+ident).Scan(&res.Attempted); err != nil {
		return res, storageErr("count staged names", err)
	}
	if res.Attempted == 0 {
		return res, nil
	}

	latest := `
SELECT s.name, s.rank, s.score, s.location, s.country, s.city, s.region, s.period, ?1
FROM ` + ident + ` s
JOIN (SELECT name, MAX(seq) AS seq FROM ` + ident + ` GROUP BY name) m ON m.seq = s.seq
WHERE true`

	var q string
	switch policy {
	case models.PolicyHistory:
		q = `INSERT INTO ` + table + ` (name, rank, score, location, country, city, region, period, created_at)` + latest
	case models.PolicyCurrent:
		q = `INSERT INTO ` + table + ` (name, rank, score, location, country, city, region, period, created_at)` + latest + `
ON CONFLICT (name) DO UPDATE SET
  rank = excluded.rank,
  score = excluded.score,
  location = excluded.location,
  country = excluded.country,
  city = excluded.city,
  region = excluded.region,
  period = excluded.period,
  updated_at = ?1
WHERE ` + table + `.period <= excluded.period`
	}

	r, err := tx.ExecContext(ctx, q, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		span.RecordError(err)
		if isUniqueViolation(err) {
			return res, constraintErr("merge into "+table, err)
		}
		return res, storageErr("merge into "+table, err)
	}
	affected, err := r.RowsAffected()
	if err != nil {
		return res, storageErr("merge into "+table, err)
	}
	if err := tx.Commit(); err != nil {
		return res, storageErr("commit merge", err)
	}
	res.Committed = int(affected)
	span.SetAttributes(attribute.Int("attempted", res.Attempted), attribute.Int("committed", res.Committed))
	return res, nil
}

func (t *sqliteStaging) Drop(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(t.name)); err != nil {
		return storageErr("drop staging table", err)
	}
	t.dropped = true
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func scoreText(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func parseScoreText(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
