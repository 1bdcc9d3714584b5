// Package sink delivers per-star results to persistent storage, either one
// record at a time or in a single batch when the run finishes.
package sink

import (
	"context"

	"github.com/sells-group/sedfit/internal/model"
)

// Sink receives the result of each star in catalog order.
type Sink interface {
	Write(ctx context.Context, index int, rec *model.ResultRecord) error
	Close(ctx context.Context) error
}

// RecordWriter persists result records for a run.
type RecordWriter interface {
	WriteRecord(ctx context.Context, runID string, rec *model.ResultRecord) error
	WriteRecords(ctx context.Context, runID string, recs []*model.ResultRecord) error
}
