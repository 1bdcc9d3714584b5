// Package catalog reads star catalogs and model grids from CSV.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // 0 = none
	TrimSpace bool
}

// Row is one CSV record and the line it started on.
type Row struct {
	Line   int
	Fields []string
}

// StreamCSV reads r in a goroutine and sends rows on the returned channel.
// Both channels are closed when reading stops; at most one error is sent.
// Cancel ctx to stop early.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.Comment = opts.Comment
		reader.FieldsPerRecord = -1

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			line, _ := reader.FieldPos(0)
			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- Row{Line: line, Fields: record}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// drain consumes rows until the stream ends, handing each to fn. The first
// error from fn or the stream is returned.
func drain(ctx context.Context, r io.Reader, opts CSVOptions, fn func(Row) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows, errs := StreamCSV(ctx, r, opts)
	for row := range rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return <-errs
}
