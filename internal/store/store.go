// Package store persists the history of pipeline runs.
package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/equestrolabs/leadgen-cli/internal/model"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status     model.RunStatus `json:"status,omitempty"`
	Area       string          `json:"area,omitempty"`
	Category   string          `json:"category,omitempty"`
	CampaignID string          `json:"campaign_id,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	CreateRun(ctx context.Context, input model.RunInput) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.PipelineSummary) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns a migrated store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			dsn = "leadgen.db"
		}
		s, err = NewSQLite(dsn)
	case "postgres":
		if dsn == "" {
			return nil, eris.New("store: postgres requires store.database_url")
		}
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
