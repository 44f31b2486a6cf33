package csvparse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/spice-ingest/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Stream reads a whole CSV file and calls emit once per data row, in source
// order, with either a record or a row error. Row-level problems never stop
// the stream. Stream returns an error only for file-level failures: an
// unreadable input, a header mismatch, ctx cancellation, or an error from
// emit.
func (p *Parser) Stream(ctx context.Context, spec *model.FormatSpec, path string, r io.Reader, emit func(model.Event) error) error {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	// Metadata lines before the header are often not valid CSV, so they are
	// skipped before the CSV reader sees them.
	for i := 0; i < spec.SkipRows; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to skip preamble: %w", err)
		}
	}
	lineOffset := spec.SkipRows

	cr := csv.NewReader(br)
	cr.Comma = spec.Comma()
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if spec.HasHeaderRow {
		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read header: %w", err)
		}
		if spec.ValidateHeader {
			if err := ValidateHeader(spec, header); err != nil {
				return err
			}
		}
	}

	rows := 0
	for {
		if rows%p.opts.ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("stopped after %d rows: %w", rows, err)
			}
		}

		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		rows++

		event := model.Event{Path: path, FormatID: spec.ID}
		var perr *csv.ParseError
		switch {
		case errors.As(err, &perr):
			event.Kind = model.EventRowError
			event.Line = perr.StartLine + lineOffset
			event.Err = &RowError{Line: event.Line, Err: fmt.Errorf("%w: %v", ErrMalformedRow, perr.Err)}
		case err != nil:
			return fmt.Errorf("failed to read row: %w", err)
		default:
			line, _ := cr.FieldPos(0)
			event.Line = line + lineOffset

			rec, rowErr := p.ParseRow(ctx, spec, row, event.Line)
			if rowErr != nil {
				event.Kind = model.EventRowError
				event.Err = rowErr
			} else {
				rec.SourcePath = path
				event.Kind = model.EventRecord
				event.Record = rec
			}
		}

		if err := emit(event); err != nil {
			return err
		}
	}
}

// ValidateHeader compares header against the configured column headers.
// Columns without a configured header match anything; comparison ignores
// case and surrounding whitespace.
func ValidateHeader(spec *model.FormatSpec, header []string) error {
	want := make([]string, len(spec.Columns))
	mismatch := len(header) != len(spec.Columns)
	for i, col := range spec.Columns {
		want[i] = col.Header
		if want[i] == "" {
			want[i] = "*"
			continue
		}
		if i < len(header) && !strings.EqualFold(strings.TrimSpace(header[i]), col.Header) {
			mismatch = true
		}
	}
	if mismatch {
		return &HeaderError{Got: header, Want: want}
	}
	return nil
}
