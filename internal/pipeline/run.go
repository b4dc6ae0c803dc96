package pipeline

import (
	"net/url"

	"github.com/nao1215/pageloader/internal/model"
	"github.com/nao1215/pageloader/internal/naming"
)

// Run is the state of one load, handed from step to step.
// It is owned by the goroutine executing the pipeline; steps that fan out
// only write to index-addressed slots.
type Run struct {
	// PageURL is the parsed page URL.
	PageURL *url.URL

	// BaseURL resolves relative references in the page. It starts as PageURL
	// and becomes the final URL when the page fetch followed redirects.
	BaseURL *url.URL

	// Plan is the filesystem layout of the load.
	Plan *naming.Plan

	// Report collects the outcome.
	Report *model.LoadReport

	// pageBody is the fetched page, discarded once rewritten.
	pageBody []byte

	// content is the rewritten, serialized page.
	content []byte

	// assetURLs are the distinct absolute asset URLs, in plan order.
	assetURLs []string

	// assetBodies holds the fetched asset bytes, indexed like assetURLs.
	assetBodies [][]byte
}

// NewRun creates the state for loading pageURL according to plan.
func NewRun(pageURL *url.URL, plan *naming.Plan, report *model.LoadReport) *Run {
	return &Run{
		PageURL: pageURL,
		BaseURL: pageURL,
		Plan:    plan,
		Report:  report,
	}
}

// HasAssets reports whether the page references at least one local asset.
func (r *Run) HasAssets() bool {
	return len(r.assetURLs) > 0
}
