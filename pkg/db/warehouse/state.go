package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db/clickhouse"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// Watermark returns the committed watermark for a stage, zero when the stage
// has never committed.
func (db *DB) Watermark(ctx context.Context, stage string) (time.Time, error) {
	query := fmt.Sprintf(
		`SELECT watermark FROM "%s"."%s" FINAL WHERE stage = ?`,
		db.Name, WatermarksTable,
	)
	var t time.Time
	if err := db.QueryRow(ctx, query, stage).Scan(&t); err != nil {
		if clickhouse.IsNoRows(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("read watermark for %s: %w", stage, err)
	}
	return t, nil
}

// Commit advances the stage watermark. Watermarks never move backward; a
// stale commit is dropped silently.
func (db *DB) Commit(ctx context.Context, stage string, watermark time.Time, runID string) error {
	current, err := db.Watermark(ctx, stage)
	if err != nil {
		return err
	}
	if current.After(watermark) {
		return nil
	}
	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (stage, watermark, run_id, committed_at) VALUES (?, ?, ?, ?)`,
		db.Name, WatermarksTable,
	)
	if err := db.Exec(ctx, query, stage, watermark, runID, time.Now().UTC()); err != nil {
		return fmt.Errorf("commit watermark for %s: %w", stage, err)
	}
	return nil
}

func (db *DB) RecordRun(ctx context.Context, report *models.RunReport) error {
	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (run_id, stage, mode, started_at, duration_ms, rows_read,
		 rows_skipped, entities_recomputed, rows_written, watermark_before, watermark_after,
		 advanced, cancelled, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		db.Name, RunHistoryTable,
	)
	err := db.Exec(ctx, query,
		report.RunID, report.Stage, report.Mode, report.StartedAt, report.DurationMs,
		report.RowsRead, report.RowsSkipped, report.EntitiesRecomputed, report.RowsWritten,
		report.WatermarkBefore, report.WatermarkAfter, report.Advanced, report.Cancelled,
		report.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", report.RunID, err)
	}
	return nil
}

func (db *DB) RecordValidation(ctx context.Context, report *models.ValidationReport) error {
	checks, err := json.Marshal(report.Checks)
	if err != nil {
		return fmt.Errorf("encode validation checks: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (table_name, run_id, ran_at, passed, blocked, checks)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		db.Name, ValidationsTable,
	)
	if err := db.Exec(ctx, query, report.Table, report.RunID, report.RanAt, report.Passed, report.Blocked, string(checks)); err != nil {
		return fmt.Errorf("record validation for %s: %w", report.Table, err)
	}
	return nil
}

func (db *DB) scanRuns(ctx context.Context, query string, args ...interface{}) ([]*models.RunReport, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.RunReport
	for rows.Next() {
		r := &models.RunReport{}
		if err := rows.Scan(
			&r.RunID, &r.Stage, &r.Mode, &r.StartedAt, &r.DurationMs,
			&r.RowsRead, &r.RowsSkipped, &r.EntitiesRecomputed, &r.RowsWritten,
			&r.WatermarkBefore, &r.WatermarkAfter, &r.Advanced, &r.Cancelled, &r.Error,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const runColumns = `run_id, stage, mode, started_at, duration_ms, rows_read, rows_skipped,
	entities_recomputed, rows_written, watermark_before, watermark_after, advanced, cancelled, error`

func (db *DB) LastRun(ctx context.Context, stage string) (*models.RunReport, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM "%s"."%s" WHERE stage = ? ORDER BY started_at DESC LIMIT 1`,
		runColumns, db.Name, RunHistoryTable,
	)
	runs, err := db.scanRuns(ctx, query, stage)
	if err != nil {
		return nil, fmt.Errorf("last run for %s: %w", stage, err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

func (db *DB) LastValidation(ctx context.Context, table string) (*models.ValidationReport, error) {
	query := fmt.Sprintf(
		`SELECT table_name, run_id, ran_at, passed, blocked, checks
		 FROM "%s"."%s" WHERE table_name = ? ORDER BY ran_at DESC LIMIT 1`,
		db.Name, ValidationsTable,
	)
	report := &models.ValidationReport{}
	var checks string
	err := db.QueryRow(ctx, query, table).Scan(
		&report.Table, &report.RunID, &report.RanAt, &report.Passed, &report.Blocked, &checks,
	)
	if err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("last validation for %s: %w", table, err)
	}
	if err := json.Unmarshal([]byte(checks), &report.Checks); err != nil {
		return nil, fmt.Errorf("decode validation checks for %s: %w", table, err)
	}
	return report, nil
}

func (db *DB) RecentRuns(ctx context.Context, limit int) ([]*models.RunReport, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(
		`SELECT %s FROM "%s"."%s" ORDER BY started_at DESC LIMIT ?`,
		runColumns, db.Name, RunHistoryTable,
	)
	runs, err := db.scanRuns(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return runs, nil
}
