// Package report renders load reports.
//
// Writers for three formats implement the Writer interface:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter and FullJSONWriter: JSON for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown with tables and a mermaid
//     chart of assets by kind
//
// Writers can be combined with MultiWriter.
package report
