package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gilby125/seven-continents/planner"
)

// RowScanner defines the interface for scanning a single row result.
// This allows mocking database row scanning behavior.
type RowScanner interface {
	Scan(dest ...any) error
}

// Tx is the subset of *sql.Tx the run store uses.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) RowScanner
	Commit() error
	Rollback() error
}

// Conn is the subset of a database handle the run store uses.
type Conn interface {
	BeginTx(ctx context.Context) (Tx, error)
	QueryRowContext(ctx context.Context, query string, args ...any) RowScanner
}

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// SearchRun is one row of search_runs.
type SearchRun struct {
	ID              int64
	RunID           uuid.UUID
	Status          string
	StartedAt       time.Time
	FinishedAt      sql.NullTime
	SearchCount     int64
	ValidRouteCount int64
	OptimizeCount   int64
	Cancelled       bool
	BestDurationHrs sql.NullFloat64
	BestCodes       []string
	Config          json.RawMessage
	Error           string
}

// SearchRunRoute is one ranked route of a run.
type SearchRunRoute struct {
	Rank                int
	Codes               []string
	TotalLengthMi       float64
	TotalDurationHrs    float64
	OriginalDurationHrs float64
	ImprovementPct      float64
}

// NewSearchRun converts a finished planner result into rows.
func NewSearchRun(id uuid.UUID, started time.Time, res *planner.Result) (SearchRun, []SearchRunRoute, error) {
	cfg, err := json.Marshal(res.Config)
	if err != nil {
		return SearchRun{}, nil, fmt.Errorf("encode run config: %w", err)
	}

	run := SearchRun{
		RunID:           id,
		Status:          StatusCompleted,
		StartedAt:       started,
		FinishedAt:      sql.NullTime{Time: started.Add(res.Elapsed), Valid: true},
		SearchCount:     res.SearchCount,
		ValidRouteCount: res.ValidRouteCount,
		OptimizeCount:   res.OptimizeCount,
		Cancelled:       res.Cancelled,
		Config:          cfg,
	}
	if res.Cancelled {
		run.Status = StatusCancelled
	}
	if best, ok := res.Best(); ok {
		run.BestDurationHrs = sql.NullFloat64{Float64: best.TotalDurationHrs, Valid: true}
		run.BestCodes = best.Codes
	}

	routes := make([]SearchRunRoute, 0, len(res.Routes))
	for _, rr := range res.Routes {
		routes = append(routes, SearchRunRoute{
			Rank:                rr.Rank,
			Codes:               rr.Codes,
			TotalLengthMi:       rr.TotalLengthMi,
			TotalDurationHrs:    rr.TotalDurationHrs,
			OriginalDurationHrs: rr.OriginalDurationHrs,
			ImprovementPct:      rr.ImprovementPct,
		})
	}
	return run, routes, nil
}
