package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // 0 = none
	LazyQuotes bool
	TrimSpace  bool
}

// CSVRow is one data row paired with the file's header, so callers can
// address fields by column name instead of position.
type CSVRow struct {
	Header map[string]int
	Fields []string
}

// Get returns the named column's value, or "" when the column is missing
// or the row is short.
func (r CSVRow) Get(column string) string {
	idx, ok := r.Header[column]
	if !ok || idx >= len(r.Fields) {
		return ""
	}
	return r.Fields[idx]
}

// StreamCSV reads a headered CSV file and sends rows to a channel. The
// caller must drain the row channel; both channels are closed when the
// stream ends.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan CSVRow, <-chan error) {
	rowCh := make(chan CSVRow, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		var header map[string]int
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if header == nil {
				header = make(map[string]int, len(record))
				for i, name := range record {
					header[strings.ToLower(strings.TrimSpace(name))] = i
				}
				continue
			}

			select {
			case rowCh <- CSVRow{Header: header, Fields: record}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
