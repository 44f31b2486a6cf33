// Package csvparse turns CSV rows into normalized records according to a
// FormatSpec.
package csvparse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/Veraticus/spice-ingest/internal/coerce"
	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/service"
)

// Default option values.
const (
	DefaultSuggestTimeout       = 2 * time.Second
	DefaultContextCheckInterval = 256
)

// Options tunes a Parser.
type Options struct {
	// SuggestTimeout bounds each suggester call. A call that runs longer is
	// treated as declined.
	SuggestTimeout time.Duration
	// ContextCheckInterval is how many rows Stream reads between checks of
	// ctx.
	ContextCheckInterval int
}

// Parser converts rows into records. It holds no per-file state and is safe
// for concurrent use.
type Parser struct {
	suggester service.Suggester
	opts      Options
}

// New creates a parser. A nil suggester declines every suggestion.
func New(suggester service.Suggester, opts Options) *Parser {
	if opts.SuggestTimeout <= 0 {
		opts.SuggestTimeout = DefaultSuggestTimeout
	}
	if opts.ContextCheckInterval <= 0 {
		opts.ContextCheckInterval = DefaultContextCheckInterval
	}
	return &Parser{suggester: suggester, opts: opts}
}

// ParseRow coerces row positionally against spec's columns. Fields the
// format does not populate keep their zero values.
func (p *Parser) ParseRow(ctx context.Context, spec *model.FormatSpec, row []string, line int) (model.Record, error) {
	if len(row) != len(spec.Columns) {
		return model.Record{}, &RowShapeError{Line: line, Got: len(row), Want: len(spec.Columns)}
	}

	rec := model.Record{FormatID: spec.ID, Handler: spec.Handler, Line: line}
	extras := make(map[string]string)

	for i, col := range spec.Columns {
		v, err := coerce.Coerce(col, row[i])
		if err != nil {
			return model.Record{}, &RowError{Line: line, Column: col.Name, Raw: row[i], Err: err}
		}
		if err := assign(&rec, extras, col, v); err != nil {
			return model.Record{}, &RowError{Line: line, Column: col.Name, Raw: row[i], Err: err}
		}
	}

	for _, col := range spec.Columns {
		if !col.Special {
			continue
		}
		if !p.applySuggestion(ctx, spec, &rec, extras, col) && spec.FlagUnsuggested {
			rec.FlagForReview = true
		}
	}

	meta, err := specialMetadata(extras)
	if err != nil {
		return model.Record{}, &RowError{Line: line, Err: err}
	}
	rec.SpecialMetadata = meta

	return rec, nil
}

// specialMetadata encodes non-canonical columns as a JSON object with sorted
// keys. A lone special_metadata column is stored as-is.
func specialMetadata(extras map[string]string) (string, error) {
	if len(extras) == 0 {
		return "", nil
	}
	if raw, ok := extras[model.FieldSpecialMetadata]; ok && len(extras) == 1 {
		return raw, nil
	}
	meta, err := json.Marshal(extras)
	if err != nil {
		return "", fmt.Errorf("failed to encode special metadata: %w", err)
	}
	return string(meta), nil
}

// assign stores a coerced value in its canonical field, or in extras for
// non-canonical columns.
func assign(rec *model.Record, extras map[string]string, col model.ColumnSpec, v coerce.Value) error {
	switch col.Name {
	case model.FieldTitle:
		rec.Title = v.Text
	case model.FieldDate:
		rec.Date = v.Time
	case model.FieldCharge:
		rec.Charge = v.Number
	case model.FieldCategory:
		rec.Category = v.Text
	case model.FieldHandler:
		if v.Text != "" {
			rec.Handler = v.Text
		}
	case model.FieldFlagForReview:
		b, err := coerce.Bool(col.Name, v.Text)
		if err != nil {
			return err
		}
		rec.FlagForReview = b
	case model.FieldRecurring:
		b, err := coerce.Bool(col.Name, v.Text)
		if err != nil {
			return err
		}
		rec.Recurring = b
	case model.FieldSpecialMetadata:
		// Kept verbatim unless other metadata columns exist, in which case
		// it joins them under its own key.
		extras[col.Name] = v.Text
	default:
		extras[col.Name] = v.String()
	}
	return nil
}

func currentText(rec *model.Record, extras map[string]string, col model.ColumnSpec) string {
	switch col.Name {
	case model.FieldTitle:
		return rec.Title
	case model.FieldCategory:
		return rec.Category
	case model.FieldHandler:
		return rec.Handler
	case model.FieldDate:
		if rec.Date.IsZero() {
			return ""
		}
		return rec.Date.Format("2006-01-02")
	case model.FieldCharge:
		return rec.Charge.String()
	case model.FieldFlagForReview:
		return fmt.Sprint(rec.FlagForReview)
	case model.FieldRecurring:
		return fmt.Sprint(rec.Recurring)
	default:
		return extras[col.Name]
	}
}

// applySuggestion asks the suggester to refine col and reports whether a
// suggestion was accepted. Suggestions are coerced like raw input; one that
// fails coercion is discarded.
func (p *Parser) applySuggestion(ctx context.Context, spec *model.FormatSpec, rec *model.Record, extras map[string]string, col model.ColumnSpec) bool {
	snapshot := *rec
	req := service.SuggestionRequest{
		Record:   &snapshot,
		FormatID: spec.ID,
		Column:   col.Name,
		Value:    currentText(rec, extras, col),
	}

	suggestion, ok := p.suggest(ctx, req)
	if !ok {
		return false
	}

	v, err := coerce.Coerce(col, suggestion)
	if err == nil {
		err = assign(rec, extras, col, v)
	}
	if err != nil {
		slog.Debug("Discarding suggestion", "format", spec.ID, "column", col.Name, "suggestion", suggestion, "error", err)
		return false
	}
	return true
}

type suggestResult struct {
	err   error
	value string
	ok    bool
}

// suggest runs the suggester under SuggestTimeout. Errors and timeouts are
// logged and treated as a decline.
func (p *Parser) suggest(ctx context.Context, req service.SuggestionRequest) (string, bool) {
	if p.suggester == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.SuggestTimeout)
	defer cancel()

	done := make(chan suggestResult, 1)
	go func() {
		value, ok, err := p.suggester.Suggest(ctx, req)
		done <- suggestResult{value: value, ok: ok, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			slog.Warn("Suggester failed", "format", req.FormatID, "column", req.Column, "error", res.err)
			return "", false
		}
		return res.value, res.ok
	case <-ctx.Done():
		slog.Debug("Suggestion timed out", "format", req.FormatID, "column", req.Column, "timeout", p.opts.SuggestTimeout)
		return "", false
	}
}
