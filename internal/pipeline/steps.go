package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pageloader/internal/document"
	"github.com/nao1215/pageloader/internal/model"
	"github.com/nao1215/pageloader/internal/naming"
)

const (
	// dirPermission is the mode of the created assets folder.
	dirPermission = 0o755

	// filePermission is the mode of saved page and asset files.
	filePermission = 0o644
)

// Fetcher downloads the body of a URL. Implementations must be safe for
// concurrent use; fetch.Client is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// PageFetcher is a Fetcher that also reports the URL a page was served from
// after redirects. FetchPageStep uses it when available.
type PageFetcher interface {
	Fetcher
	FetchPage(ctx context.Context, rawURL string) ([]byte, *url.URL, error)
}

// FetchPageStep downloads the page body.
// Nothing is written to disk by this step.
type FetchPageStep struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewFetchPageStep creates a FetchPageStep.
func NewFetchPageStep(fetcher Fetcher, logger *slog.Logger) *FetchPageStep {
	return &FetchPageStep{fetcher: fetcher, logger: logger}
}

// Name returns the step name.
func (s *FetchPageStep) Name() string {
	return model.PhaseFetchPage.String()
}

// Phase returns model.PhaseFetchPage.
func (s *FetchPageStep) Phase() model.Phase {
	return model.PhaseFetchPage
}

// Do executes the step.
func (s *FetchPageStep) Do(ctx context.Context, run *Run) error {
	var (
		body  []byte
		final *url.URL
		err   error
	)
	if pf, ok := s.fetcher.(PageFetcher); ok {
		body, final, err = pf.FetchPage(ctx, run.PageURL.String())
	} else {
		body, err = s.fetcher.Fetch(ctx, run.PageURL.String())
	}
	if err != nil {
		return err
	}
	run.pageBody = body

	if final != nil && final.String() != run.PageURL.String() {
		run.BaseURL = final
		run.Report.FinalURL = final.String()
	}

	s.logger.Debug("page fetched",
		"url", run.PageURL.String(),
		"final", run.BaseURL.String(),
		"bytes", len(body),
	)
	return nil
}

// RewritePageStep parses the page, collects its local assets, plans their
// file names and rewrites the references. The result stays in memory.
type RewritePageStep struct {
	logger *slog.Logger
}

// NewRewritePageStep creates a RewritePageStep.
func NewRewritePageStep(logger *slog.Logger) *RewritePageStep {
	return &RewritePageStep{logger: logger}
}

// Name returns the step name.
func (s *RewritePageStep) Name() string {
	return model.PhaseRewritePage.String()
}

// Phase returns model.PhaseRewritePage.
func (s *RewritePageStep) Phase() model.Phase {
	return model.PhaseRewritePage
}

// Do executes the step.
func (s *RewritePageStep) Do(_ context.Context, run *Run) error {
	doc, err := document.Parse(bytes.NewReader(run.pageBody), run.BaseURL)
	if err != nil {
		return err
	}

	refs := doc.CollectAssets()
	content, assetURLs, err := doc.Rewrite(refs, run.Plan)
	if err != nil {
		return err
	}

	// The first reference to an asset decides its kind.
	kinds := make(map[string]document.Kind, len(refs))
	for _, ref := range refs {
		key := naming.AssetKey(ref.URL)
		if _, ok := kinds[key]; !ok {
			kinds[key] = ref.Kind
		}
	}

	for _, entry := range run.Plan.Entries() {
		run.Report.Assets = append(run.Report.Assets, model.AssetRecord{
			Kind:      string(kinds[entry.URL]),
			URL:       entry.URL,
			Reference: run.Plan.RelativePath(entry),
			Path:      entry.Path,
		})
	}

	run.content = content
	run.assetURLs = assetURLs
	run.pageBody = nil
	run.Report.Title = doc.Title()
	run.Report.PageSize = len(content)

	s.logger.Debug("page rewritten",
		"url", run.PageURL.String(),
		"references", len(refs),
		"assets", len(assetURLs),
	)
	return nil
}

// EnsureAssetsFolderStep creates the assets folder when the page has at
// least one local asset. An existing directory is accepted.
type EnsureAssetsFolderStep struct {
	logger *slog.Logger
}

// NewEnsureAssetsFolderStep creates an EnsureAssetsFolderStep.
func NewEnsureAssetsFolderStep(logger *slog.Logger) *EnsureAssetsFolderStep {
	return &EnsureAssetsFolderStep{logger: logger}
}

// Name returns the step name.
func (s *EnsureAssetsFolderStep) Name() string {
	return model.PhaseEnsureAssetsFolder.String()
}

// Phase returns model.PhaseEnsureAssetsFolder.
func (s *EnsureAssetsFolderStep) Phase() model.Phase {
	return model.PhaseEnsureAssetsFolder
}

// Do executes the step.
func (s *EnsureAssetsFolderStep) Do(_ context.Context, run *Run) error {
	if !run.HasAssets() {
		s.logger.Debug("no local assets, skipping folder creation", "url", run.PageURL.String())
		return nil
	}

	folder := run.Plan.AssetsFolderPath
	if err := os.Mkdir(folder, dirPermission); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return err
		}
		info, statErr := os.Stat(folder)
		if statErr != nil {
			return statErr
		}
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", folder)
		}
	}

	run.Report.AssetsFolder = folder
	return nil
}

// FetchAssetsStep downloads every planned asset concurrently.
// Results are stored by plan position, never by completion order. The first
// failure cancels the remaining fetches and nothing is kept.
type FetchAssetsStep struct {
	fetcher     Fetcher
	concurrency int
	logger      *slog.Logger
}

// NewFetchAssetsStep creates a FetchAssetsStep running at most concurrency
// fetches at once.
func NewFetchAssetsStep(fetcher Fetcher, concurrency int, logger *slog.Logger) *FetchAssetsStep {
	return &FetchAssetsStep{
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Name returns the step name.
func (s *FetchAssetsStep) Name() string {
	return model.PhaseFetchAssets.String()
}

// Phase returns model.PhaseFetchAssets.
func (s *FetchAssetsStep) Phase() model.Phase {
	return model.PhaseFetchAssets
}

// Do executes the step.
func (s *FetchAssetsStep) Do(ctx context.Context, run *Run) error {
	if !run.HasAssets() {
		return nil
	}

	bodies := make([][]byte, len(run.assetURLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, assetURL := range run.assetURLs {
		g.Go(func() error {
			body, err := s.fetcher.Fetch(gctx, assetURL)
			if err != nil {
				return fmt.Errorf("%s: %w", assetURL, err)
			}
			bodies[i] = body

			s.logger.Debug("asset fetched",
				"url", assetURL,
				"bytes", len(body),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	run.assetBodies = bodies
	for i := range run.Report.Assets {
		run.Report.Assets[i].Size = int64(len(bodies[i]))
	}
	return nil
}

// SaveAssetsStep writes every fetched asset to its planned path.
// Files already written are left in place when a sibling fails.
type SaveAssetsStep struct {
	concurrency int
	writeFile   func(name string, data []byte, perm os.FileMode) error
	logger      *slog.Logger
}

// NewSaveAssetsStep creates a SaveAssetsStep running at most concurrency
// writes at once.
func NewSaveAssetsStep(concurrency int, logger *slog.Logger) *SaveAssetsStep {
	return &SaveAssetsStep{
		concurrency: concurrency,
		writeFile:   os.WriteFile,
		logger:      logger,
	}
}

// Name returns the step name.
func (s *SaveAssetsStep) Name() string {
	return model.PhaseSaveAssets.String()
}

// Phase returns model.PhaseSaveAssets.
func (s *SaveAssetsStep) Phase() model.Phase {
	return model.PhaseSaveAssets
}

// Do executes the step.
func (s *SaveAssetsStep) Do(ctx context.Context, run *Run) error {
	if !run.HasAssets() {
		return nil
	}

	entries := run.Plan.Entries()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.writeFile(entry.Path, run.assetBodies[i], filePermission); err != nil {
				return err
			}
			s.logger.Debug("asset saved", "path", entry.Path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	run.assetBodies = nil
	return nil
}

// SavePageStep writes the rewritten page.
type SavePageStep struct {
	logger *slog.Logger
}

// NewSavePageStep creates a SavePageStep.
func NewSavePageStep(logger *slog.Logger) *SavePageStep {
	return &SavePageStep{logger: logger}
}

// Name returns the step name.
func (s *SavePageStep) Name() string {
	return model.PhaseSavePage.String()
}

// Phase returns model.PhaseSavePage.
func (s *SavePageStep) Phase() model.Phase {
	return model.PhaseSavePage
}

// Do executes the step.
func (s *SavePageStep) Do(_ context.Context, run *Run) error {
	if err := os.WriteFile(run.Plan.PageFilePath, run.content, filePermission); err != nil {
		return err
	}
	run.Report.PageFile = run.Plan.PageFilePath

	s.logger.Debug("page saved", "path", run.Plan.PageFilePath)
	return nil
}
