package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/pageloader/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report as a JSON object.
func (w *JSONWriter) Write(report *model.LoadReport) (int, error) {
	return w.WriteValue(report)
}

// WriteBatch outputs the reports as a JSON array, skipping nil entries.
func (w *JSONWriter) WriteBatch(reports []*model.LoadReport) (int, error) {
	return w.WriteValue(nonNil(reports))
}

// WriteValue marshals v to JSON and writes it followed by a newline.
func (w *JSONWriter) WriteValue(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps reports with the version of the tool that produced them.
type JSONReport struct {
	// Version is the pageloader version that generated this report.
	Version string `json:"version"`

	// Succeeded is the number of pages saved.
	Succeeded int `json:"succeeded"`

	// Failed is the number of pages not saved.
	Failed int `json:"failed"`

	// Reports are the load reports in input order.
	Reports []*model.LoadReport `json:"reports"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(reports []*model.LoadReport, version string) *JSONReport {
	kept := nonNil(reports)
	ok := countSucceeded(kept)
	return &JSONReport{
		Version:   version,
		Succeeded: ok,
		Failed:    len(kept) - ok,
		Reports:   kept,
	}
}

// FullJSONWriter outputs reports inside a JSONReport wrapper.
type FullJSONWriter struct {
	*JSONWriter

	// version is the pageloader version string.
	version string
}

// NewFullJSONWriter creates a writer for reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.LoadReport) (int, error) {
	return w.WriteBatch([]*model.LoadReport{report})
}

// WriteBatch outputs the reports wrapped with metadata.
func (w *FullJSONWriter) WriteBatch(reports []*model.LoadReport) (int, error) {
	return w.WriteValue(NewJSONReport(reports, w.version))
}

// nonNil returns reports without nil entries.
func nonNil(reports []*model.LoadReport) []*model.LoadReport {
	kept := make([]*model.LoadReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			kept = append(kept, r)
		}
	}
	return kept
}
