package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landsuit/internal/model"
)

// ErrNotFound is returned when a run or series does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	Operation string          `json:"operation,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store persists analysis runs and the per-feature series they produce.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, operation, input string, params map[string]any) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Series
	SaveSeries(ctx context.Context, runID string, series ...*model.Series) error
	LoadSeries(ctx context.Context, runID, name string) (*model.Series, error)
	SeriesNames(ctx context.Context, runID string) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
