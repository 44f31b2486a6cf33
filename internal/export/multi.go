package export

import (
	"context"
	"errors"

	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/service"
)

// Multi fans events out to several sinks in order. The first failing sink
// stops the fan-out for that call.
type Multi []service.Sink

// Emit implements service.Sink.
func (m Multi) Emit(ctx context.Context, e model.Event) error {
	for _, s := range m {
		if err := s.Emit(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Flush implements service.Sink. Every sink is flushed even if one fails.
func (m Multi) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

// Emit implements service.Sink.
func (Discard) Emit(context.Context, model.Event) error { return nil }

// Flush implements service.Sink.
func (Discard) Flush(context.Context) error { return nil }
