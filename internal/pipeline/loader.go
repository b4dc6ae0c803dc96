package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/pageloader/internal/fetch"
	"github.com/nao1215/pageloader/internal/model"
	"github.com/nao1215/pageloader/internal/naming"
)

// DefaultConcurrency is the default number of simultaneous asset fetches.
const DefaultConcurrency = 8

// Loader saves pages with their local assets.
// A Loader is safe for concurrent use as long as its Fetcher is.
type Loader struct {
	fetcher     Fetcher
	concurrency int
	logger      *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithAssetConcurrency bounds the number of simultaneous asset fetches
// and writes. Values below 1 keep the default.
func WithAssetConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLoaderLogger sets the logger used by the loader and its steps.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader that downloads through fetcher.
func NewLoader(fetcher Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}

	return l
}

// NewPipeline returns the five-phase pipeline used for a single load.
func (l *Loader) NewPipeline() *Pipeline {
	p := New(WithLogger(l.logger))
	p.AddSteps(
		NewFetchPageStep(l.fetcher, l.logger),
		NewRewritePageStep(l.logger),
		NewEnsureAssetsFolderStep(l.logger),
		NewFetchAssetsStep(l.fetcher, l.concurrency, l.logger),
		NewSaveAssetsStep(l.concurrency, l.logger),
		NewSavePageStep(l.logger),
	)
	return p
}

// Load saves the page at pageURL into destDir and returns the report of the
// load. The report is returned on failure too; the error is a *PhaseError
// matching one of the package's sentinel errors.
func (l *Loader) Load(ctx context.Context, pageURL, destDir string) (*model.LoadReport, error) {
	report := model.NewLoadReport(pageURL, destDir)
	defer func() {
		report.FinishedAt = time.Now()
	}()

	u, err := naming.ParsePageURL(pageURL)
	if err != nil {
		pe := &PhaseError{Phase: model.PhaseFetchPage, Err: err}
		report.Fail(model.PhaseFetchPage, pe)
		return report, pe
	}

	plan, err := naming.NewPlan(u, destDir)
	if err != nil {
		pe := &PhaseError{Phase: model.PhaseFetchPage, Err: err}
		report.Fail(model.PhaseFetchPage, pe)
		return report, pe
	}

	run := NewRun(u, plan, report)
	if err := l.NewPipeline().Execute(ctx, run); err != nil {
		return report, err
	}

	l.logger.Info("page saved",
		"url", pageURL,
		"path", report.PageFile,
		"assets", len(report.Assets),
	)
	return report, nil
}

// LoadPage saves the page at pageURL into destDir and returns the absolute
// path of the saved page file.
func (l *Loader) LoadPage(ctx context.Context, pageURL, destDir string) (string, error) {
	report, err := l.Load(ctx, pageURL, destDir)
	if err != nil {
		return "", err
	}
	return report.PageFile, nil
}

// LoadPage saves the page at pageURL into destDir with a default HTTP
// client and returns the absolute path of the saved page file.
func LoadPage(ctx context.Context, pageURL, destDir string) (string, error) {
	client, err := fetch.New()
	if err != nil {
		return "", err
	}
	return NewLoader(client).LoadPage(ctx, pageURL, destDir)
}
