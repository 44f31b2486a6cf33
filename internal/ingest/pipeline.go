// Package ingest runs files through classification and parsing and hands the
// results to a sink.
package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/service"
)

// Resolver picks the format for a path.
type Resolver interface {
	Resolve(path string) (*model.FormatSpec, error)
}

// RowStreamer parses one file, emitting events in row order.
type RowStreamer interface {
	Stream(ctx context.Context, spec *model.FormatSpec, path string, r io.Reader, emit func(model.Event) error) error
}

// Options tunes a Pipeline.
type Options struct {
	// Open opens a file for reading. Defaults to os.Open.
	Open func(path string) (io.ReadCloser, error)
	// Progress is called from the writer goroutine after each file has been
	// delivered to the sink.
	Progress func(path string, skipped bool)
	Metrics  *Metrics
	// Concurrency bounds how many files are parsed at once. Defaults to
	// GOMAXPROCS.
	Concurrency int
	// FileTimeout bounds reading and parsing one file. Zero means no limit.
	FileTimeout time.Duration
	// PreserveFileOrder delivers files to the sink in input order instead of
	// completion order.
	PreserveFileOrder bool
	// AbortInFlight makes cancellation interrupt files already being parsed.
	// By default they are allowed to finish.
	AbortInFlight bool
}

// Pipeline ingests batches of files.
type Pipeline struct {
	resolver Resolver
	parser   RowStreamer
	opts     Options
}

// New creates a pipeline.
func New(resolver Resolver, parser RowStreamer, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Open == nil {
		opts.Open = func(path string) (io.ReadCloser, error) { return os.Open(path) } //nolint:gosec // paths come from the user
	}
	return &Pipeline{resolver: resolver, parser: parser, opts: opts}
}

// fileResult is everything one file produced. Events are buffered per file
// so the writer can deliver a file's rows contiguously and in order.
type fileResult struct {
	err      *FileError
	path     string
	formatID string
	events   []model.Event
	elapsed  time.Duration
	index    int
}

// Ingest processes paths and delivers their events to sink. Bad files and
// bad rows are reported, never fatal. The returned error is non-nil only
// when the sink fails; the report still describes everything delivered
// before the failure.
//
// Cancelling ctx stops new files from starting; they are reported as
// skipped. Files already being parsed finish unless AbortInFlight is set.
func (p *Pipeline) Ingest(ctx context.Context, paths []string, sink service.Sink) (*Report, error) {
	start := time.Now()
	report := &Report{}

	base := context.WithoutCancel(ctx)
	if p.opts.AbortInFlight {
		base = ctx
	}
	workCtx, cancelWork := context.WithCancel(base)
	defer cancelWork()

	results := make(chan fileResult, p.opts.Concurrency)
	writerDone := make(chan error, 1)
	go func() {
		writerDone <- p.write(ctx, sink, results, report, cancelWork)
	}()

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			results <- p.processFile(ctx, workCtx, i, path)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	err := <-writerDone
	report.Duration = time.Since(start)

	slog.Info("Ingest finished",
		"files", report.Files,
		"records", report.Records,
		"skipped_files", len(report.SkippedFiles),
		"dropped_rows", len(report.DroppedRows),
		"duration", report.Duration)
	return report, err
}

// processFile resolves, opens and parses one file. dispatchCtx decides
// whether the file starts at all; workCtx bounds the work once started.
func (p *Pipeline) processFile(dispatchCtx, workCtx context.Context, index int, path string) fileResult {
	start := time.Now()
	res := fileResult{index: index, path: path}
	fail := func(stage string, err error) fileResult {
		res.err = &FileError{Path: path, FormatID: res.formatID, Stage: stage, Err: err}
		res.events = nil
		res.elapsed = time.Since(start)
		return res
	}

	if err := dispatchCtx.Err(); err != nil {
		return fail(StageDispatch, err)
	}
	if err := workCtx.Err(); err != nil {
		return fail(StageDispatch, err)
	}

	spec, err := p.resolver.Resolve(path)
	if err != nil {
		return fail(StageResolve, err)
	}
	res.formatID = spec.ID

	fileCtx := workCtx
	if p.opts.FileTimeout > 0 {
		var cancel context.CancelFunc
		fileCtx, cancel = context.WithTimeout(workCtx, p.opts.FileTimeout)
		defer cancel()
	}

	f, err := p.opts.Open(path)
	if err != nil {
		return fail(StageOpen, err)
	}
	defer func() { _ = f.Close() }()

	err = p.parser.Stream(fileCtx, spec, path, &ctxReader{ctx: fileCtx, r: f}, func(e model.Event) error {
		res.events = append(res.events, e)
		return nil
	})
	if err != nil {
		return fail(StageParse, err)
	}

	res.elapsed = time.Since(start)
	slog.Debug("Parsed file", "path", path, "format", spec.ID, "events", len(res.events), "elapsed", res.elapsed)
	return res
}

// write is the only goroutine that touches the sink and the report.
func (p *Pipeline) write(ctx context.Context, sink service.Sink, results <-chan fileResult, report *Report, cancelWork context.CancelFunc) error {
	// Sink calls must complete even after ctx is cancelled so that files
	// which did finish are persisted.
	sinkCtx := context.WithoutCancel(ctx)

	var sinkErr error
	deliver := func(res fileResult) {
		if sinkErr != nil {
			return
		}
		if err := p.deliver(sinkCtx, sink, res, report); err != nil {
			slog.Error("Sink failed, stopping ingest", "path", res.path, "error", err)
			sinkErr = err
			cancelWork()
		}
	}

	pending := make(map[int]fileResult)
	next := 0
	for res := range results {
		if !p.opts.PreserveFileOrder {
			deliver(res)
			continue
		}
		pending[res.index] = res
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			deliver(ready)
			next++
		}
	}
	return sinkErr
}

func (p *Pipeline) deliver(ctx context.Context, sink service.Sink, res fileResult, report *Report) error {
	if res.err != nil {
		kind := res.err.Kind()
		slog.Warn("Skipping file", "path", res.path, "reason", kind, "error", res.err.Err)
		report.SkippedFiles = append(report.SkippedFiles, FileFailure{Path: res.path, Reason: kind, Err: res.err})
		p.opts.Metrics.fileSkipped(kind)

		event := model.Event{Kind: model.EventFileError, Path: res.path, FormatID: res.formatID, Err: res.err}
		if err := sink.Emit(ctx, event); err != nil {
			return err
		}
	} else {
		for _, event := range res.events {
			switch event.Kind {
			case model.EventRecord:
				report.Records++
				p.opts.Metrics.recordEmitted()
			case model.EventRowError:
				kind := model.ErrorKind(event.Err)
				report.DroppedRows = append(report.DroppedRows, RowFailure{Path: res.path, Line: event.Line, Reason: kind, Err: event.Err})
				p.opts.Metrics.rowDropped(kind)
			}
			if err := sink.Emit(ctx, event); err != nil {
				return err
			}
		}
		report.Files++
		p.opts.Metrics.observeFile(res.elapsed.Seconds())
	}

	if err := sink.Flush(ctx); err != nil {
		return err
	}
	if p.opts.Progress != nil {
		p.opts.Progress(res.path, res.err != nil)
	}
	return nil
}

// ctxReader fails reads once ctx is done, so a stalled file cannot outlive
// its timeout by more than one read.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
