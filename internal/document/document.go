package document

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/pageloader/internal/naming"
)

// Document is the parsed, mutable form of one fetched page.
// It belongs to a single load and must not be shared between goroutines.
type Document struct {
	doc     *goquery.Document
	pageURL *url.URL
}

// Parse parses HTML content fetched from pageURL.
// Malformed markup is tolerated the way browsers tolerate it.
func Parse(content io.Reader, pageURL *url.URL) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{doc: doc, pageURL: pageURL}, nil
}

// PageURL returns the URL the document was fetched from.
func (d *Document) PageURL() *url.URL {
	return d.pageURL
}

// Title returns the trimmed text of the first <title> element.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Rewrite points every asset reference at its planned local file and
// serializes the document. Assets are added to plan in the given order,
// so repeated references share one file. It returns the rendered page and
// the distinct absolute asset URLs to fetch, in first-reference order.
func (d *Document) Rewrite(assets []AssetReference, plan *naming.Plan) ([]byte, []string, error) {
	for _, a := range assets {
		entry := plan.Add(a.URL)
		a.sel.SetAttr(a.Attribute, plan.RelativePath(entry))
	}

	content, err := d.Render()
	if err != nil {
		return nil, nil, err
	}

	entries := plan.Entries()
	urls := make([]string, len(entries))
	for i, e := range entries {
		urls[i] = e.URL
	}
	return content, urls, nil
}

// Render serializes the whole document, including the doctype.
func (d *Document) Render() ([]byte, error) {
	var buf bytes.Buffer
	for _, n := range d.doc.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return nil, fmt.Errorf("failed to render html: %w", err)
		}
	}
	return buf.Bytes(), nil
}
