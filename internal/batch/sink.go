package batch

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
)

// Sink receives the assignments of a run in input order.
type Sink interface {
	// Begin is called once with the layer column names before any Write.
	Begin(ctx context.Context, layers []string) error
	Write(ctx context.Context, a Assignment) error
	Close() error
}

// Finisher is implemented by sinks that want the run summary once every
// assignment has been written.
type Finisher interface {
	Finish(ctx context.Context, stats *Stats) error
}

// Header returns the output header for the given layer columns.
func Header(layers []string) []string {
	h := make([]string, 0, len(layers)+3)
	h = append(h, "id")
	h = append(h, layers...)
	return append(h, "longitude", "latitude")
}

// PSVWriter writes assignments as pipe-delimited text.
type PSVWriter struct {
	w      *csv.Writer
	closer io.Closer
}

// NewPSVWriter wraps w. Closing the writer flushes it but does not close w.
func NewPSVWriter(w io.Writer) *PSVWriter {
	cw := csv.NewWriter(w)
	cw.Comma = '|'
	return &PSVWriter{w: cw}
}

// CreatePSV creates (or truncates) path and returns a writer that closes
// the file on Close.
func CreatePSV(path string) (*PSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: create output %s", path)
	}
	p := NewPSVWriter(f)
	p.closer = f
	return p, nil
}

// Begin writes the header row.
func (p *PSVWriter) Begin(_ context.Context, layers []string) error {
	return eris.Wrap(p.w.Write(Header(layers)), "batch: write header")
}

// Write writes one assignment row.
func (p *PSVWriter) Write(_ context.Context, a Assignment) error {
	row := make([]string, 0, len(a.Results)+3)
	row = append(row, a.ID)
	row = append(row, a.Codes()...)
	row = append(row, a.Lon, a.Lat)
	return eris.Wrap(p.w.Write(row), "batch: write row")
}

// Close flushes buffered rows and closes the underlying file, if owned.
func (p *PSVWriter) Close() error {
	p.w.Flush()
	err := eris.Wrap(p.w.Error(), "batch: flush output")
	if p.closer != nil {
		err = multierr.Append(err, eris.Wrap(p.closer.Close(), "batch: close output"))
	}
	return err
}

// MultiSink fans every call out to each sink in order.
type MultiSink []Sink

// Begin implements Sink.
func (m MultiSink) Begin(ctx context.Context, layers []string) error {
	for _, s := range m {
		if err := s.Begin(ctx, layers); err != nil {
			return err
		}
	}
	return nil
}

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, a Assignment) error {
	for _, s := range m {
		if err := s.Write(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Finish passes stats to every member that implements Finisher.
func (m MultiSink) Finish(ctx context.Context, stats *Stats) error {
	for _, s := range m {
		if f, ok := s.(Finisher); ok {
			if err := f.Finish(ctx, stats); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink, returning all errors combined.
func (m MultiSink) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}
