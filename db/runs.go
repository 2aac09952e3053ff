package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("search run not found")

// RunStore records search run history.
type RunStore struct {
	conn Conn
}

// NewRunStore returns a store over conn.
func NewRunStore(conn Conn) *RunStore {
	return &RunStore{conn: conn}
}

const upsertRunSQL = `
	INSERT INTO search_runs (
		run_id, status, started_at, finished_at, search_count, valid_route_count,
		optimize_count, cancelled, best_duration_hrs, best_codes, config, error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (run_id) DO UPDATE SET
		status = EXCLUDED.status,
		finished_at = EXCLUDED.finished_at,
		search_count = EXCLUDED.search_count,
		valid_route_count = EXCLUDED.valid_route_count,
		optimize_count = EXCLUDED.optimize_count,
		cancelled = EXCLUDED.cancelled,
		best_duration_hrs = EXCLUDED.best_duration_hrs,
		best_codes = EXCLUDED.best_codes,
		config = EXCLUDED.config,
		error = EXCLUDED.error
	RETURNING id`

const insertRouteSQL = `
	INSERT INTO search_run_routes (
		search_run_id, rank, codes, total_length_mi, total_duration_hrs,
		original_duration_hrs, improvement_pct
	) VALUES ($1, $2, $3, $4, $5, $6, $7)`

// SaveRun writes run and replaces its routes in one transaction. It returns
// the row id of the run.
func (s *RunStore) SaveRun(ctx context.Context, run SearchRun, routes []SearchRunRoute) (int64, error) {
	tx, err := s.conn.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var config any
	if len(run.Config) > 0 {
		config = []byte(run.Config)
	}

	var id int64
	err = tx.QueryRowContext(ctx, upsertRunSQL,
		run.RunID, run.Status, run.StartedAt, run.FinishedAt,
		run.SearchCount, run.ValidRouteCount, run.OptimizeCount, run.Cancelled,
		run.BestDurationHrs, pq.Array(run.BestCodes), config, run.Error,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save run %s: %w", run.RunID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM search_run_routes WHERE search_run_id = $1`, id); err != nil {
		return 0, fmt.Errorf("clear routes of run %s: %w", run.RunID, err)
	}
	for _, r := range routes {
		if _, err := tx.ExecContext(ctx, insertRouteSQL,
			id, r.Rank, pq.Array(r.Codes), r.TotalLengthMi, r.TotalDurationHrs,
			r.OriginalDurationHrs, r.ImprovementPct,
		); err != nil {
			return 0, fmt.Errorf("save route %d of run %s: %w", r.Rank, run.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run %s: %w", run.RunID, err)
	}
	return id, nil
}

// GetRun loads the run row for runID. Routes are not loaded.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (SearchRun, error) {
	run := SearchRun{RunID: runID}
	var config []byte
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, status, started_at, finished_at, search_count, valid_route_count,
			optimize_count, cancelled, best_duration_hrs, best_codes, config, error
		FROM search_runs WHERE run_id = $1`, runID,
	).Scan(
		&run.ID, &run.Status, &run.StartedAt, &run.FinishedAt,
		&run.SearchCount, &run.ValidRouteCount, &run.OptimizeCount, &run.Cancelled,
		&run.BestDurationHrs, pq.Array(&run.BestCodes), &config, &run.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return SearchRun{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return SearchRun{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	run.Config = config
	return run, nil
}
