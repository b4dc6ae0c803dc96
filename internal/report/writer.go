package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/pageloader/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs one load report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.LoadReport) (int, error)

	// WriteBatch outputs the reports of several loads as one document.
	WriteBatch(reports []*model.LoadReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.LoadReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBatch outputs the reports to all configured Writers.
func (m *MultiWriter) WriteBatch(reports []*model.LoadReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteBatch(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// titleCaser capitalizes phase names for display.
var titleCaser = cases.Title(language.English)

// phaseTitle returns a display name such as "Fetch Assets".
func phaseTitle(phase model.Phase) string {
	return titleCaser.String(strings.ReplaceAll(phase.String(), "_", " "))
}

// stepTitle returns a display name for a step name such as "save_page".
func stepTitle(step string) string {
	return titleCaser.String(strings.ReplaceAll(step, "_", " "))
}

// statusText summarizes the outcome of a load.
func statusText(report *model.LoadReport) string {
	switch {
	case report.Cancelled:
		return "Cancelled during " + phaseTitle(report.FailedPhase)
	case !report.Succeeded():
		return "Failed during " + phaseTitle(report.FailedPhase)
	default:
		return "Saved"
	}
}

// countSucceeded returns the number of successful reports, ignoring nil ones.
func countSucceeded(reports []*model.LoadReport) int {
	n := 0
	for _, r := range reports {
		if r != nil && r.Succeeded() {
			n++
		}
	}
	return n
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
