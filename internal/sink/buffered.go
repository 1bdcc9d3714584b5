package sink

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sedfit/internal/model"
	"github.com/sells-group/sedfit/internal/resilience"
)

// Buffered accumulates records in memory and flushes them in one batch on
// Close.
type Buffered struct {
	w      RecordWriter
	runID  string
	retry  resilience.RetryConfig
	recs   []*model.ResultRecord
	closed bool
}

// NewBuffered returns a sink that writes everything to w on Close.
func NewBuffered(w RecordWriter, runID string, retry resilience.RetryConfig) *Buffered {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(runID, "write_records")
	}
	return &Buffered{w: w, runID: runID, retry: retry}
}

// Write holds rec until Close.
func (b *Buffered) Write(_ context.Context, index int, rec *model.ResultRecord) error {
	if b.closed {
		return eris.New("sink: write after close")
	}
	rec.Index = index
	b.recs = append(b.recs, rec)
	return nil
}

// Pending returns the number of records not yet flushed.
func (b *Buffered) Pending() int { return len(b.recs) }

// Close flushes all held records in a single batch.
func (b *Buffered) Close(ctx context.Context) error {
	if b.closed {
		return nil
	}
	b.closed = true
	if len(b.recs) == 0 {
		return nil
	}
	err := resilience.Do(ctx, b.retry, func(ctx context.Context) error {
		return b.w.WriteRecords(ctx, b.runID, b.recs)
	})
	if err != nil {
		return eris.Wrapf(err, "sink: flush %d records", len(b.recs))
	}
	b.recs = nil
	return nil
}
