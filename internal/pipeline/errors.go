package pipeline

import (
	"errors"
	"fmt"

	"github.com/nao1215/pageloader/internal/model"
)

// Sentinel errors identifying the phase a load failed in.
// Match them with errors.Is on any error returned by a Loader.
var (
	// ErrPageFetch matches failures to download the page (transport error or
	// non-2xx status). Nothing has been written to disk.
	ErrPageFetch = errors.New("page fetch failed")

	// ErrPageParse matches failures to parse or render the page.
	ErrPageParse = errors.New("page parse failed")

	// ErrAssetsFolderCreation matches failures to create the assets folder.
	// No asset has been fetched.
	ErrAssetsFolderCreation = errors.New("assets folder creation failed")

	// ErrAssetFetch matches failures to download at least one asset.
	// No asset has been written; the assets folder may exist.
	ErrAssetFetch = errors.New("asset fetch failed")

	// ErrAssetSave matches failures to write an asset file.
	// Sibling asset files may already be on disk.
	ErrAssetSave = errors.New("asset save failed")

	// ErrPageSave matches failures to write the page file.
	// The assets folder and its files may already be on disk.
	ErrPageSave = errors.New("page save failed")
)

// phaseSentinels maps each phase to its sentinel error.
var phaseSentinels = map[model.Phase]error{
	model.PhaseFetchPage:          ErrPageFetch,
	model.PhaseRewritePage:        ErrPageParse,
	model.PhaseEnsureAssetsFolder: ErrAssetsFolderCreation,
	model.PhaseFetchAssets:        ErrAssetFetch,
	model.PhaseSaveAssets:         ErrAssetSave,
	model.PhaseSavePage:           ErrPageSave,
}

// phaseMessages are the human-readable prefixes of phase errors.
var phaseMessages = map[model.Phase]string{
	model.PhaseFetchPage:          "error during page downloading",
	model.PhaseRewritePage:        "error during page parsing",
	model.PhaseEnsureAssetsFolder: "error during assets folder creation",
	model.PhaseFetchAssets:        "error during assets downloading",
	model.PhaseSaveAssets:         "error during assets saving",
	model.PhaseSavePage:           "error during page saving",
}

// PhaseError is an error tagged with the pipeline phase that produced it.
// It wraps the underlying cause.
type PhaseError struct {
	// Phase is the failed phase.
	Phase model.Phase

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *PhaseError) Error() string {
	msg, ok := phaseMessages[e.Phase]
	if !ok {
		msg = "error during " + e.Phase.String()
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel error of e's phase.
func (e *PhaseError) Is(target error) bool {
	sentinel, ok := phaseSentinels[e.Phase]
	return ok && target == sentinel
}

// PhaseOf returns the phase err was tagged with, or model.PhaseNone.
func PhaseOf(err error) model.Phase {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return model.PhaseNone
}
