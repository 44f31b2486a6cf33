// Package suggest provides Suggester implementations for special columns.
package suggest

import (
	"context"
	"log/slog"

	"github.com/Veraticus/spice-ingest/internal/service"
)

// Null declines every request.
type Null struct{}

// Suggest implements service.Suggester.
func (Null) Suggest(context.Context, service.SuggestionRequest) (string, bool, error) {
	return "", false, nil
}

// Chain asks each suggester in turn and returns the first accepted
// suggestion. A failing suggester is logged and skipped.
type Chain []service.Suggester

// Suggest implements service.Suggester.
func (c Chain) Suggest(ctx context.Context, req service.SuggestionRequest) (string, bool, error) {
	for i, s := range c {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		value, ok, err := s.Suggest(ctx, req)
		if err != nil {
			slog.Debug("Suggester in chain failed", "index", i, "column", req.Column, "error", err)
			continue
		}
		if ok {
			return value, true, nil
		}
	}
	return "", false, nil
}

// Func adapts a function to service.Suggester.
type Func func(ctx context.Context, req service.SuggestionRequest) (string, bool, error)

// Suggest implements service.Suggester.
func (f Func) Suggest(ctx context.Context, req service.SuggestionRequest) (string, bool, error) {
	return f(ctx, req)
}
