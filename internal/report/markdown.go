package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/pageloader/internal/model"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.LoadReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Page Load Report")
	md.PlainText("")
	w.writeReport(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteBatch outputs a summary table followed by one section per report.
func (w *MarkdownWriter) WriteBatch(reports []*model.LoadReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	kept := nonNil(reports)

	md.H1("Page Load Summary")
	md.PlainText("")

	rows := make([][]string, len(kept))
	for i, r := range kept {
		rows[i] = []string{
			r.PageURL,
			statusIcon(r) + " " + statusText(r),
			strconv.Itoa(len(r.Assets)),
			FormatBytes(r.TotalAssetBytes()),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Status", "Assets", "Size"},
		Rows:   rows,
	})
	md.PlainText("")

	if ok := countSucceeded(kept); ok == len(kept) {
		md.Tip(fmt.Sprintf("All %d pages were saved.", ok))
	} else {
		md.Warningf("%d of %d pages could not be saved.", len(kept)-ok, len(kept))
	}
	md.PlainText("")

	for _, r := range kept {
		md.H2(r.PageURL)
		md.PlainText("")
		w.writeReport(md, r)
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeReport writes the sections of one report.
func (w *MarkdownWriter) writeReport(md *markdown.Markdown, report *model.LoadReport) {
	w.writeHeader(md, report)
	w.writeStatus(md, report)
	w.writeAssets(md, report)
	w.writeSteps(md, report)
}

// writeHeader writes the load information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.LoadReport) {
	rows := [][]string{
		{"Page URL", "`" + report.PageURL + "`"},
	}
	if report.FinalURL != "" {
		rows = append(rows, []string{"Redirected To", "`" + report.FinalURL + "`"})
	}
	if report.Title != "" {
		rows = append(rows, []string{"Title", report.Title})
	}
	rows = append(rows,
		[]string{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Duration", report.Duration().String()},
	)
	if report.PageFile != "" {
		rows = append(rows, []string{"Page File", "`" + report.PageFile + "`"})
	}
	if report.AssetsFolder != "" {
		rows = append(rows, []string{"Assets Folder", "`" + report.AssetsFolder + "`"})
	}
	rows = append(rows, []string{"Status", statusIcon(report) + " " + statusText(report)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeStatus writes an alert describing the outcome.
func (w *MarkdownWriter) writeStatus(md *markdown.Markdown, report *model.LoadReport) {
	switch {
	case report.Cancelled:
		md.Warningf("The load was cancelled during %s.", phaseTitle(report.FailedPhase))
	case !report.Succeeded():
		md.Cautionf("%s", report.ErrorMessage)
	default:
		md.Tip(fmt.Sprintf("Page saved with %d local asset(s).", len(report.Assets)))
	}
	md.PlainText("")
}

// writeAssets writes the asset table and the distribution by kind.
func (w *MarkdownWriter) writeAssets(md *markdown.Markdown, report *model.LoadReport) {
	md.H3("Assets")
	md.PlainText("")

	if len(report.Assets) == 0 {
		md.PlainText("No local assets.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Assets))
	for i, a := range report.Assets {
		rows[i] = []string{
			a.Kind,
			"`" + a.Reference + "`",
			truncateString(a.URL, 60),
			FormatBytes(a.Size),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Reference", "Source", "Size"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, report)
}

// writePieChart writes a mermaid pie chart of assets by kind.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.LoadReport) {
	counts := report.AssetCountByKind()
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Assets by Kind"),
		piechart.WithShowData(true),
	)
	for _, kind := range kinds {
		chart.LabelAndIntValue(kind, uint64(counts[kind])) //nolint:gosec // counts are positive
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeSteps writes the completed pipeline steps.
func (w *MarkdownWriter) writeSteps(md *markdown.Markdown, report *model.LoadReport) {
	md.H3("Steps")
	md.PlainText("")

	items := make([]string, 0, len(report.CompletedSteps)+1)
	for _, step := range report.CompletedSteps {
		items = append(items, "✅ "+stepTitle(step))
	}
	if !report.Succeeded() && report.FailedPhase != model.PhaseNone {
		items = append(items, "❌ "+phaseTitle(report.FailedPhase))
	}
	if len(items) == 0 {
		md.PlainText("No step completed.")
	} else {
		md.BulletList(items...)
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pageloader](https://github.com/nao1215/pageloader)*")
}

// statusIcon returns an emoji for the outcome of a load.
func statusIcon(report *model.LoadReport) string {
	switch {
	case report.Cancelled:
		return "⚠️"
	case !report.Succeeded():
		return "❌"
	default:
		return "✅"
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
