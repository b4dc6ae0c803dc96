package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pageloader/internal/model"
)

// DefaultBatchSize is the default number of pages loaded at once.
const DefaultBatchSize = 1

// LoaderFactory returns the Loader used for pageURL. It lets callers apply
// per-host transport settings.
type LoaderFactory func(pageURL string) (*Loader, error)

// SingleLoader returns a LoaderFactory that always returns l.
func SingleLoader(l *Loader) LoaderFactory {
	return func(string) (*Loader, error) {
		return l, nil
	}
}

// BatchProcessor loads several pages concurrently.
// Each page is an independent load with its own plan and report.
type BatchProcessor struct {
	// loaderFactory returns the loader for each page.
	loaderFactory LoaderFactory

	// concurrency is the maximum number of concurrent loads.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent loads.
// Default is 1 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(loaderFactory LoaderFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		loaderFactory: loaderFactory,
		concurrency:   DefaultBatchSize,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch loads every URL in urls into destDir.
//
// A failed load does not stop the others. The returned reports are in the
// order of urls; a report is nil only when the batch was cancelled before
// its load started. The error joins every load failure and is nil when all
// pages were saved.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, urls []string, destDir string) ([]*model.LoadReport, error) {
	bp.logger.Info("starting batch processing",
		"total_pages", len(urls),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	results := make([]*model.LoadReport, len(urls))
	errs := make([]error, len(urls))

	err := bp.run(ctx, urls, destDir, func(report *model.LoadReport, index int, err error) {
		results[index] = report
		errs[index] = err
	})

	bp.logger.Info("batch processing complete",
		"total_pages", len(urls),
		"elapsed", time.Since(startTime),
	)

	return results, errors.Join(append(errs, err)...)
}

// ProcessBatchWithCallback loads every URL and calls callback as each load
// finishes. The callback is called from the goroutine that ran the load,
// so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	urls []string,
	destDir string,
	callback func(report *model.LoadReport, index int),
) error {
	return bp.run(ctx, urls, destDir, func(report *model.LoadReport, index int, _ error) {
		callback(report, index)
	})
}

// run drives the loads and reports each result to done. The returned
// error is non-nil only when ctx ended before every load started.
func (bp *BatchProcessor) run(
	ctx context.Context,
	urls []string,
	destDir string,
	done func(report *model.LoadReport, index int, err error),
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, pageURL := range urls {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("loading page",
				"url", pageURL,
				"index", i+1,
				"total", len(urls),
			)

			report, err := bp.load(ctx, pageURL, destDir)
			done(report, i, err)

			if err != nil {
				// Other pages keep loading; the failure is in the report.
				bp.logger.Warn("load failed",
					"url", pageURL,
					"error", err,
				)
			}
			return nil
		})
	}

	return g.Wait()
}

// load runs one load with the loader built for pageURL.
func (bp *BatchProcessor) load(ctx context.Context, pageURL, destDir string) (*model.LoadReport, error) {
	loader, err := bp.loaderFactory(pageURL)
	if err != nil {
		report := model.NewLoadReport(pageURL, destDir)
		pe := &PhaseError{Phase: model.PhaseFetchPage, Err: err}
		report.Fail(model.PhaseFetchPage, pe)
		report.FinishedAt = time.Now()
		return report, pe
	}
	return loader.Load(ctx, pageURL, destDir)
}
