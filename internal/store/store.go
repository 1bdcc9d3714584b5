// Package store persists fit runs and their per-star result records.
package store

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sedfit/internal/model"
)

// ErrNotFound is returned when a run or record does not exist.
var ErrNotFound = eris.New("not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for catalog fits.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, nObjects, nDraws int, seed uint64) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results. Writing a record for an existing (run, index) replaces it.
	WriteRecord(ctx context.Context, runID string, rec *model.ResultRecord) error
	WriteRecords(ctx context.Context, runID string, recs []*model.ResultRecord) error
	GetRecord(ctx context.Context, runID string, index int) (*model.ResultRecord, error)
	CountRecords(ctx context.Context, runID string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

func recordKey(runID string, index int) string {
	return fmt.Sprintf("%s/%d", runID, index)
}

const defaultListLimit = 100

func listLimit(f RunFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
