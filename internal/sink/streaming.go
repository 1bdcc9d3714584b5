package sink

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sedfit/internal/model"
	"github.com/sells-group/sedfit/internal/resilience"
)

// Streaming writes each record as soon as it arrives, so an interrupted run
// keeps everything written so far.
type Streaming struct {
	w     RecordWriter
	runID string
	retry resilience.RetryConfig
	n     int
}

// NewStreaming returns a sink writing immediately to w.
func NewStreaming(w RecordWriter, runID string, retry resilience.RetryConfig) *Streaming {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(runID, "write_record")
	}
	return &Streaming{w: w, runID: runID, retry: retry}
}

// Write persists rec, retrying transient store errors.
func (s *Streaming) Write(ctx context.Context, index int, rec *model.ResultRecord) error {
	rec.Index = index
	err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.w.WriteRecord(ctx, s.runID, rec)
	})
	if err != nil {
		return eris.Wrapf(err, "sink: write record %d", index)
	}
	s.n++
	return nil
}

// Written returns the number of records persisted.
func (s *Streaming) Written() int { return s.n }

// Close is a no-op; every record is already persisted.
func (s *Streaming) Close(context.Context) error { return nil }
