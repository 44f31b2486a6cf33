package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-ingest/internal/cli"
	"github.com/Veraticus/spice-ingest/internal/common"
	"github.com/Veraticus/spice-ingest/internal/config"
	"github.com/Veraticus/spice-ingest/internal/csvparse"
	"github.com/Veraticus/spice-ingest/internal/discover"
	"github.com/Veraticus/spice-ingest/internal/export"
	"github.com/Veraticus/spice-ingest/internal/ingest"
	"github.com/Veraticus/spice-ingest/internal/model"
	"github.com/Veraticus/spice-ingest/internal/registry"
	"github.com/Veraticus/spice-ingest/internal/service"
	"github.com/Veraticus/spice-ingest/internal/storage"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [paths or globs...]",
		Short: "Classify and ingest CSV files",
		Long: `Classify each file against the configured file formats, parse matching files
into records, and store them in the local database.

Paths are relative to --root and may be globs or directories. Directories are
walked, skipping subtrees no format could match. Files that match no format,
or more than one, are reported and skipped; bad rows are reported and dropped.`,
		RunE: runIngest,
	}

	cmd.Flags().String("root", ".", "directory format rules are matched against")
	cmd.Flags().Int("concurrency", 0, "files parsed at once (default: number of CPUs)")
	cmd.Flags().Duration("file-timeout", 0, "limit for reading and parsing one file (0 = none)")
	cmd.Flags().Bool("preserve-order", true, "deliver files in input order")
	cmd.Flags().Bool("abort-in-flight", false, "on interrupt, abort files already being parsed")
	cmd.Flags().String("jsonl", "", "also write events as JSON lines to this file (- for stdout)")
	cmd.Flags().String("xlsx", "", "also write records and errors to this workbook")
	cmd.Flags().String("metrics-out", "", "write Prometheus metrics to this textfile")
	cmd.Flags().Bool("no-db", false, "do not store records in the database")
	cmd.Flags().Bool("strict", false, "exit with status 2 if any file was skipped or row dropped")
	cmd.Flags().BoolP("quiet", "q", false, "hide the progress bar")

	// Bind to viper
	_ = viper.BindPFlag("ingest.concurrency", cmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("ingest.file_timeout", cmd.Flags().Lookup("file-timeout"))
	_ = viper.BindPFlag("ingest.preserve_order", cmd.Flags().Lookup("preserve-order"))
	_ = viper.BindPFlag("ingest.abort_in_flight", cmd.Flags().Lookup("abort-in-flight"))

	return cmd
}

// ingestJob is one ingest invocation with its collaborators resolved.
type ingestJob struct {
	settings *config.Settings
	registry *registry.Registry
	fsys     fs.FS
	store    *storage.SQLiteStorage // nil disables persistence
	jsonl    io.Writer
	metrics  prometheus.Registerer
	progress func(path string, skipped bool)
	xlsxPath string
	paths    []string
}

// ingestResult is what a job produced.
type ingestResult struct {
	report *ingest.Report
	run    *model.Run
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	flags := cmd.Flags()

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	reg, err := buildRegistry(settings)
	if err != nil {
		return err
	}

	root, _ := flags.GetString("root")
	job := &ingestJob{
		settings: settings,
		registry: reg,
		fsys:     os.DirFS(root),
	}
	patterns := args
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	if noDB, _ := flags.GetBool("no-db"); !noDB {
		store, err := openStorage(ctx, settings.DatabasePath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		job.store = store
	}

	if path, _ := flags.GetString("jsonl"); path != "" {
		if path == "-" {
			job.jsonl = cmd.OutOrStdout()
		} else {
			f, err := os.Create(config.ExpandPath(path)) //nolint:gosec // user-chosen output path
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			defer func() { _ = f.Close() }()
			job.jsonl = f
		}
	}
	xlsxPath, _ := flags.GetString("xlsx")
	job.xlsxPath = config.ExpandPath(xlsxPath)

	metricsOut, _ := flags.GetString("metrics-out")
	gatherer := prometheus.NewRegistry()
	job.metrics = gatherer

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx, stop := handler.HandleInterrupts(ctx, !settings.Ingest.AbortInFlight)
	defer stop()

	quiet, _ := flags.GetBool("quiet")
	job.paths, err = discover.Expand(ctx, job.fsys, patterns, reg)
	if err != nil {
		return common.NewUserError("Nothing to ingest", err)
	}
	if bar := newProgressBar(cmd.ErrOrStderr(), quiet, len(job.paths)); bar != nil {
		job.progress = func(string, bool) { _ = bar.Add(1) }
		defer func() { _ = bar.Finish() }()
	}

	result, err := job.execute(ctx)
	if result != nil {
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderReport(result.report, result.run))
	}
	if metricsOut != "" {
		if werr := prometheus.WriteToTextfile(config.ExpandPath(metricsOut), gatherer); werr != nil {
			slog.Warn("Failed to write metrics", "path", metricsOut, "error", werr)
		}
	}
	if err != nil {
		return err
	}

	if strict, _ := flags.GetBool("strict"); strict && !result.report.Clean() {
		return common.NewUserError("Some files or rows were not ingested", common.ErrIncomplete)
	}
	return nil
}

// execute runs the pipeline over job.paths, which are relative to job.fsys.
func (j *ingestJob) execute(ctx context.Context) (*ingestResult, error) {
	var lookup service.VendorLookup
	if j.store != nil {
		lookup = j.store
		if err := j.store.WarmVendorCache(ctx); err != nil {
			slog.Warn("Failed to warm vendor cache", "error", err)
		}
	}
	suggester, closeSuggester, err := buildSuggester(j.settings.Suggestions, lookup)
	if err != nil {
		return nil, err
	}
	defer closeSuggester()

	var sinks export.Multi
	var dbSink *storage.Sink
	if j.store != nil {
		dbSink, err = storage.NewSink(ctx, j.store)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, dbSink)
	}
	if j.jsonl != nil {
		sinks = append(sinks, export.NewJSONL(j.jsonl))
	}
	var book *export.XLSX
	if j.xlsxPath != "" {
		book, err = export.NewXLSX(j.xlsxPath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, book)
	}
	var sink service.Sink = sinks
	if len(sinks) == 0 {
		sink = export.Discard{}
	}

	parser := csvparse.New(suggester, csvparse.Options{SuggestTimeout: j.settings.Suggestions.Timeout})
	pipeline := ingest.New(j.registry, parser, ingest.Options{
		Open:              func(path string) (io.ReadCloser, error) { return j.fsys.Open(path) },
		Progress:          j.progress,
		Metrics:           ingest.NewMetrics(j.metrics),
		Concurrency:       j.settings.Ingest.Concurrency,
		FileTimeout:       j.settings.Ingest.FileTimeout,
		PreserveFileOrder: j.settings.Ingest.PreserveOrder,
		AbortInFlight:     j.settings.Ingest.AbortInFlight,
	})

	report, ingestErr := pipeline.Ingest(ctx, j.paths, sink)
	result := &ingestResult{report: report}

	// Bookkeeping must complete even when the run was interrupted.
	finishCtx := context.WithoutCancel(ctx)
	if dbSink != nil {
		if err := dbSink.Finish(finishCtx); err != nil && ingestErr == nil {
			ingestErr = err
		}
		result.run = dbSink.Run()
	}
	if book != nil {
		if err := book.Save(); err != nil && ingestErr == nil {
			ingestErr = err
		}
	}
	return result, ingestErr
}
