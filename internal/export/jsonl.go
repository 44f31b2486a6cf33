// Package export writes pipeline output to files.
package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/Veraticus/spice-ingest/internal/model"
)

// Line is the JSON shape of one event.
type Line struct {
	Record   *RecordLine `json:"record,omitempty"`
	Type     string      `json:"type"`
	Path     string      `json:"path"`
	FormatID string      `json:"format_id,omitempty"`
	Kind     string      `json:"kind,omitempty"`
	Error    string      `json:"error,omitempty"`
	Line     int         `json:"line,omitempty"`
}

// RecordLine carries the canonical fields of a record.
type RecordLine struct {
	Date            string `json:"date"`
	Title           string `json:"title"`
	Charge          string `json:"charge"`
	Category        string `json:"category"`
	Handler         string `json:"handler"`
	SpecialMetadata string `json:"special_metadata"`
	FlagForReview   bool   `json:"flag_for_review"`
	Recurring       bool   `json:"recurring"`
}

// NewLine converts an event into its JSON shape.
func NewLine(e model.Event) Line {
	l := Line{Type: e.Kind.String(), Path: e.Path, FormatID: e.FormatID, Line: e.Line}
	if e.Kind == model.EventRecord {
		r := e.Record
		l.Record = &RecordLine{
			Date:            formatDate(r.Date),
			Title:           r.Title,
			Charge:          r.Charge.String(),
			Category:        r.Category,
			Handler:         r.Handler,
			SpecialMetadata: r.SpecialMetadata,
			FlagForReview:   r.FlagForReview,
			Recurring:       r.Recurring,
		}
		if l.Path == "" {
			l.Path = r.SourcePath
		}
		if l.FormatID == "" {
			l.FormatID = r.FormatID
		}
		if l.Line == 0 {
			l.Line = r.Line
		}
		return l
	}
	if e.Err != nil {
		l.Kind = model.ErrorKind(e.Err)
		l.Error = e.Err.Error()
	}
	return l
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// JSONL writes one JSON object per event.
type JSONL struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONL creates a JSON-lines sink writing to w.
func NewJSONL(w io.Writer) *JSONL {
	bw := bufio.NewWriter(w)
	return &JSONL{w: bw, enc: json.NewEncoder(bw)}
}

// Emit implements service.Sink.
func (j *JSONL) Emit(_ context.Context, e model.Event) error {
	if err := j.enc.Encode(NewLine(e)); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// Flush implements service.Sink.
func (j *JSONL) Flush(_ context.Context) error {
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush json lines: %w", err)
	}
	return nil
}
