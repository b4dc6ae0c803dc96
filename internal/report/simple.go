package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/pageloader/internal/model"
)

// lineWidth is the width of section rules.
const lineWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists completed steps and asset URLs.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.LoadReport) (int, error) {
	var sb strings.Builder
	w.writeReport(&sb, report)
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteBatch outputs every report followed by a summary line.
func (w *SimpleWriter) WriteBatch(reports []*model.LoadReport) (int, error) {
	var sb strings.Builder
	total := 0
	for _, r := range reports {
		if r == nil {
			continue
		}
		total++
		w.writeReport(&sb, r)
	}
	fmt.Fprintf(&sb, "Saved %d of %d pages\n\n", countSucceeded(reports), total)
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// writeReport writes the sections of one report.
func (w *SimpleWriter) writeReport(sb *strings.Builder, report *model.LoadReport) {
	w.writeHeader(sb, report)
	w.writeAssets(sb, report)
	if w.verbose {
		w.writeSteps(sb, report)
	}
}

// writeHeader writes the report header with load information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.LoadReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", lineWidth))
	sb.WriteString("\n")
	sb.WriteString("                        PAGELOADER REPORT\n")
	sb.WriteString(strings.Repeat("=", lineWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Page URL:      %s\n", report.PageURL)
	if report.FinalURL != "" {
		fmt.Fprintf(sb, "Redirected To: %s\n", report.FinalURL)
	}
	if report.Title != "" {
		fmt.Fprintf(sb, "Title:         %s\n", report.Title)
	}
	fmt.Fprintf(sb, "Started:       %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:      %s\n", report.Duration().Round(time.Millisecond))
	if report.PageFile != "" {
		fmt.Fprintf(sb, "Page File:     %s\n", report.PageFile)
	}
	if report.AssetsFolder != "" {
		fmt.Fprintf(sb, "Assets Folder: %s\n", report.AssetsFolder)
	}

	if report.Succeeded() {
		sb.WriteString("Status:        Saved\n")
	} else {
		fmt.Fprintf(sb, "Status:        %s\n", strings.ToUpper(statusText(report)))
		fmt.Fprintf(sb, "Error:         %s\n", report.ErrorMessage)
	}

	sb.WriteString("\n")
}

// writeAssets writes the asset section.
func (w *SimpleWriter) writeAssets(sb *strings.Builder, report *model.LoadReport) {
	sb.WriteString(strings.Repeat("-", lineWidth))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "ASSETS (%d, %s)\n", len(report.Assets), FormatBytes(report.TotalAssetBytes()))
	sb.WriteString(strings.Repeat("-", lineWidth))
	sb.WriteString("\n\n")

	if len(report.Assets) == 0 {
		sb.WriteString("  No local assets.\n\n")
		return
	}

	for _, a := range report.Assets {
		fmt.Fprintf(sb, "  [%-6s] %s (%s)\n", a.Kind, a.Reference, FormatBytes(a.Size))
		if w.verbose {
			fmt.Fprintf(sb, "           from %s\n", a.URL)
		}
	}
	sb.WriteString("\n")
}

// writeSteps writes the completed pipeline steps.
func (w *SimpleWriter) writeSteps(sb *strings.Builder, report *model.LoadReport) {
	sb.WriteString(strings.Repeat("-", lineWidth))
	sb.WriteString("\n")
	sb.WriteString("STEPS\n")
	sb.WriteString(strings.Repeat("-", lineWidth))
	sb.WriteString("\n\n")

	for _, step := range report.CompletedSteps {
		fmt.Fprintf(sb, "  [ok]   %s\n", stepTitle(step))
	}
	if !report.Succeeded() && report.FailedPhase != model.PhaseNone {
		fmt.Fprintf(sb, "  [fail] %s\n", phaseTitle(report.FailedPhase))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", lineWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by pageloader\n")
	sb.WriteString(strings.Repeat("=", lineWidth))
	sb.WriteString("\n")
}
