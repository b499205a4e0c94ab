// Package fetcher streams point records out of delimited text files and
// spreadsheets, downloads remote boundary bundles, and unpacks zipped ones.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Row is one input record and the 1-based line (or sheet row) it came from.
type Row struct {
	Num    int
	Fields []string
}

// SourceOptions configures OpenRecords.
type SourceOptions struct {
	Delimiter rune   // delimited text only; default '|'
	Sheet     string // spreadsheets only; default first sheet
}

// OpenRecords streams rows from path, picking the reader by file extension:
// .xlsx files are read as spreadsheets, anything else as delimited text.
// The header row is delivered as the first Row. Opening errors are returned
// immediately; read errors arrive on the error channel.
func OpenRecords(ctx context.Context, path string, opts SourceOptions) (<-chan Row, <-chan error, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		if _, err := os.Stat(path); err != nil {
			return nil, nil, eris.Wrapf(err, "fetcher: stat %s", path)
		}
		rows, errs := StreamXLSX(ctx, path, XLSXOptions{SheetName: opts.Sheet})
		return rows, errs, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "fetcher: open %s", path)
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = '|'
	}
	rows, errs := StreamCSV(ctx, f, CSVOptions{
		Delimiter:  delim,
		LazyQuotes: true,
		TrimSpace:  true,
		Closer:     f,
	})
	return rows, errs, nil
}
