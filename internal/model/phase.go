package model

import "fmt"

// Phase identifies a stage of the load pipeline.
// Phases run in the order they are declared.
type Phase int

const (
	// PhaseNone is the zero value; a successful load has no failed phase.
	PhaseNone Phase = iota

	// PhaseFetchPage downloads the page.
	PhaseFetchPage

	// PhaseRewritePage parses the page, classifies its assets and rewrites
	// their references.
	PhaseRewritePage

	// PhaseEnsureAssetsFolder creates the assets folder.
	PhaseEnsureAssetsFolder

	// PhaseFetchAssets downloads every asset concurrently.
	PhaseFetchAssets

	// PhaseSaveAssets writes the downloaded assets to disk.
	PhaseSaveAssets

	// PhaseSavePage writes the rewritten page to disk.
	PhaseSavePage
)

// phaseNames maps phases to their stable identifiers.
var phaseNames = map[Phase]string{
	PhaseNone:               "none",
	PhaseFetchPage:          "fetch_page",
	PhaseRewritePage:        "rewrite_page",
	PhaseEnsureAssetsFolder: "ensure_assets_folder",
	PhaseFetchAssets:        "fetch_assets",
	PhaseSaveAssets:         "save_assets",
	PhaseSavePage:           "save_page",
}

// String returns the phase identifier, e.g. "fetch_assets".
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return p, nil
		}
	}
	return PhaseNone, fmt.Errorf("unknown phase %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
