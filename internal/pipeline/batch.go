package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/nao1215/gerbenv/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor handles concurrent conversion of multiple project
// directories. It uses errgroup to manage goroutines and respect
// concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding
// batch functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-conversion execution
// 2. It allows different batch strategies (e.g., rate limiting, retries)
// 3. It provides cleaner separation of concerns
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each project.
	// We use a factory because each conversion carries its own
	// intermediate state (parsed job, rendered layers).
	pipelineFactory func(projectDir string) *Pipeline

	// concurrency is the maximum number of concurrent conversions.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed conversion reports.
	// Access is synchronized via mutex.
	results []*model.Report
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent conversions.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each project directory to
// create a fresh pipeline instance. This ensures that conversion state
// doesn't leak between projects and allows per-project customization.
func NewBatchProcessor(pipelineFactory func(projectDir string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     4,
		results:         make([]*model.Report, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch converts multiple project directories concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each project gets its own goroutine, but only 'concurrency' goroutines
// run simultaneously.
//
// Returns all reports collected, even for projects that failed.
// The error return indicates if the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, projectDirs []string) ([]*model.Report, error) {
	bp.logger.Info("starting batch conversion",
		"total_projects", len(projectDirs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results slice to maintain order
	bp.results = make([]*model.Report, len(projectDirs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, dir := range projectDirs {
		i, dir := i, dir
		g.Go(func() error {
			// Check for cancellation before starting
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("converting project",
				"project", dir,
				"index", i+1,
				"total", len(projectDirs),
			)

			report := model.NewReport(filepath.Base(dir), "")

			pipeline := bp.pipelineFactory(dir)
			err := pipeline.Execute(ctx, report)

			// Store result regardless of error
			// The report contains error information if the conversion failed
			bp.mu.Lock()
			bp.results[i] = report
			bp.mu.Unlock()

			if err != nil {
				bp.logger.Warn("conversion failed",
					"project", dir,
					"error", err,
				)
				// Don't return error to errgroup - we want to continue
				// the other projects. The error is recorded in the report.
				return nil
			}

			bp.logger.Info("conversion completed",
				"project", dir,
			)

			return nil
		})
	}

	err := g.Wait()

	elapsed := time.Since(startTime)
	bp.logger.Info("batch conversion complete",
		"total_projects", len(projectDirs),
		"elapsed", elapsed,
	)

	return bp.results, err
}

// ProcessBatchWithCallback converts multiple projects and calls a
// callback for each completed conversion. This is useful for streaming
// results.
//
// The callback receives the report and the index of the project in the
// original slice. The callback is called from the goroutine that
// completed the conversion, so it should be thread-safe if it accesses
// shared state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	projectDirs []string,
	callback func(report *model.Report, index int),
) error {
	bp.logger.Info("starting batch conversion with callback",
		"total_projects", len(projectDirs),
		"concurrency", bp.concurrency,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, dir := range projectDirs {
		i, dir := i, dir
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			report := model.NewReport(filepath.Base(dir), "")
			pipeline := bp.pipelineFactory(dir)
			_ = pipeline.Execute(ctx, report) //nolint:errcheck // Error is stored in report

			callback(report, i)

			return nil
		})
	}

	return g.Wait()
}
