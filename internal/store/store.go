// Package store archives emitted validation reports in postgres. Reports
// are written in their canonical wire encoding so archived and in-flight
// representations never diverge.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/cream-quant/synthcore/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS validation_reports (
	run_id         TEXT PRIMARY KEY,
	indicator_id   TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	overall_passed BOOLEAN NOT NULL,
	gates_passed   INTEGER NOT NULL,
	report         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_validation_reports_indicator
	ON validation_reports (indicator_id, created_at DESC);
`

// ReportRow is one archived report.
type ReportRow struct {
	RunID         string    `db:"run_id" json:"run_id"`
	IndicatorID   string    `db:"indicator_id" json:"indicator_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	OverallPassed bool      `db:"overall_passed" json:"overall_passed"`
	GatesPassed   int       `db:"gates_passed" json:"gates_passed"`
	Report        []byte    `db:"report" json:"report"`
}

// Store wraps the postgres connection.
type Store struct {
	db *sqlx.DB
}

// Open connects to postgres and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing connection; the schema is assumed present.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save archives a report. Re-saving the same run id (a deterministic
// replay) overwrites the previous row.
func (s *Store) Save(ctx context.Context, report *pipeline.ValidationReport) error {
	raw, err := report.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("store: encode report %s: %w", report.RunID, err)
	}

	const query = `
		INSERT INTO validation_reports (run_id, indicator_id, created_at, overall_passed, gates_passed, report)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			overall_passed = EXCLUDED.overall_passed,
			gates_passed = EXCLUDED.gates_passed,
			report = EXCLUDED.report`
	_, err = s.db.ExecContext(ctx, query,
		report.RunID, report.IndicatorID, report.Timestamp,
		report.OverallPassed, report.GatesPassed, raw)
	if err != nil {
		return fmt.Errorf("store: save report %s: %w", report.RunID, err)
	}

	log.Debug().Str("run_id", report.RunID).Str("indicator", report.IndicatorID).
		Bool("passed", report.OverallPassed).Msg("report archived")
	return nil
}

// ByIndicator returns an indicator's archived reports, newest first.
func (s *Store) ByIndicator(ctx context.Context, indicatorID string, limit int) ([]ReportRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows := []ReportRow{}
	const query = `
		SELECT run_id, indicator_id, created_at, overall_passed, gates_passed, report
		FROM validation_reports
		WHERE indicator_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	if err := s.db.SelectContext(ctx, &rows, query, indicatorID, limit); err != nil {
		return nil, fmt.Errorf("store: reports for %s: %w", indicatorID, err)
	}
	return rows, nil
}

// Recent returns the latest reports across all indicators.
func (s *Store) Recent(ctx context.Context, limit int) ([]ReportRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows := []ReportRow{}
	const query = `
		SELECT run_id, indicator_id, created_at, overall_passed, gates_passed, report
		FROM validation_reports
		ORDER BY created_at DESC
		LIMIT $1`
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("store: recent reports: %w", err)
	}
	return rows, nil
}

// Latest returns an indicator's most recent report, or sql.ErrNoRows.
func (s *Store) Latest(ctx context.Context, indicatorID string) (*ReportRow, error) {
	var row ReportRow
	const query = `
		SELECT run_id, indicator_id, created_at, overall_passed, gates_passed, report
		FROM validation_reports
		WHERE indicator_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	if err := s.db.GetContext(ctx, &row, query, indicatorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("store: latest report for %s: %w", indicatorID, err)
	}
	return &row, nil
}

// DecodeReport unpacks the archived canonical JSON.
func (r *ReportRow) DecodeReport() (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal(r.Report, &out); err != nil {
		return nil, fmt.Errorf("store: decode report %s: %w", r.RunID, err)
	}
	return out, nil
}
