package model

import (
	"time"
)

// AssetRecord describes one downloaded asset.
type AssetRecord struct {
	// Kind is the element kind the asset was referenced from (img, script, link).
	Kind string `json:"kind"`

	// URL is the absolute asset URL.
	URL string `json:"url"`

	// Reference is the relative path written into the saved page.
	Reference string `json:"reference"`

	// Path is the absolute file path of the saved asset.
	Path string `json:"path"`

	// Size is the number of bytes downloaded. Zero until fetched.
	Size int64 `json:"size"`
}

// LoadReport collects what happened during one load.
// Steps fill it as the pipeline progresses; on failure it records the phase
// that failed and the error message.
type LoadReport struct {
	// PageURL is the requested page URL.
	PageURL string `json:"pageUrl"`

	// FinalURL is the URL the page was served from after redirects.
	// Empty when it equals PageURL.
	FinalURL string `json:"finalUrl,omitempty"`

	// DestDir is the destination directory as given by the caller.
	DestDir string `json:"destDir"`

	// PageFile is the absolute path of the saved page.
	PageFile string `json:"pageFile,omitempty"`

	// AssetsFolder is the absolute path of the assets folder.
	// Empty when the page has no local assets.
	AssetsFolder string `json:"assetsFolder,omitempty"`

	// Title is the page title, if any.
	Title string `json:"title,omitempty"`

	// PageSize is the size in bytes of the rewritten page.
	PageSize int `json:"pageSize"`

	// Assets lists the distinct local assets in first-reference order.
	Assets []AssetRecord `json:"assets"`

	// CompletedSteps lists the pipeline steps that finished successfully.
	CompletedSteps []string `json:"completedSteps"`

	// FailedPhase is the phase that failed, or PhaseNone.
	FailedPhase Phase `json:"failedPhase"`

	// Error is the failure, if any. Not serialized; see ErrorMessage.
	Error error `json:"-"`

	// ErrorMessage is the failure message for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// Cancelled is true when the load stopped because its context ended.
	Cancelled bool `json:"cancelled,omitempty"`

	// StartedAt is when the load started.
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when the load finished, successfully or not.
	FinishedAt time.Time `json:"finishedAt"`
}

// NewLoadReport creates a report for a load of pageURL into destDir.
func NewLoadReport(pageURL, destDir string) *LoadReport {
	return &LoadReport{
		PageURL:        pageURL,
		DestDir:        destDir,
		Assets:         make([]AssetRecord, 0),
		CompletedSteps: make([]string, 0),
		StartedAt:      time.Now(),
	}
}

// Fail records err as the failure of phase.
func (r *LoadReport) Fail(phase Phase, err error) {
	r.FailedPhase = phase
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Succeeded reports whether the load completed without error.
func (r *LoadReport) Succeeded() bool {
	return r.ErrorMessage == "" && r.FailedPhase == PhaseNone && !r.Cancelled
}

// Duration returns how long the load took. It is zero until FinishedAt is set.
func (r *LoadReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TotalAssetBytes returns the summed size of all downloaded assets.
func (r *LoadReport) TotalAssetBytes() int64 {
	var total int64
	for _, a := range r.Assets {
		total += a.Size
	}
	return total
}

// AssetCountByKind returns the number of assets per kind.
func (r *LoadReport) AssetCountByKind() map[string]int {
	counts := make(map[string]int)
	for _, a := range r.Assets {
		counts[a.Kind]++
	}
	return counts
}
