package document

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Kind is the element kind an asset reference was found on.
type Kind string

const (
	// KindImage is an <img src>.
	KindImage Kind = "img"

	// KindScript is a <script src>.
	KindScript Kind = "script"

	// KindLink is a <link href>, usually a stylesheet or an icon.
	KindLink Kind = "link"
)

// referenceAttributes maps each asset kind to the attribute holding its URL.
var referenceAttributes = map[Kind]string{
	KindImage:  "src",
	KindScript: "src",
	KindLink:   "href",
}

// AssetReference is one same-origin asset found in a document.
type AssetReference struct {
	// Kind is the element kind.
	Kind Kind

	// Attribute is the attribute holding the reference.
	Attribute string

	// RawURL is the attribute value as written in the page.
	RawURL string

	// URL is RawURL resolved against the page URL.
	URL *url.URL

	sel *goquery.Selection
}

// CollectAssets returns the local asset references of the document in
// document order. Elements without their reference attribute, or whose
// reference is not local, are skipped.
func (d *Document) CollectAssets() []AssetReference {
	assets := make([]AssetReference, 0)

	d.doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		kind := Kind(goquery.NodeName(s))
		attr, ok := referenceAttributes[kind]
		if !ok {
			return
		}

		raw, ok := s.Attr(attr)
		if !ok || !IsLocal(raw, d.pageURL) {
			return
		}

		ref, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return
		}

		assets = append(assets, AssetReference{
			Kind:      kind,
			Attribute: attr,
			RawURL:    raw,
			URL:       d.pageURL.ResolveReference(ref),
			sel:       s,
		})
	})

	return assets
}

// IsLocal reports whether rawURL, found on the page at pageURL, points to
// the same host. Root-relative paths are always local; protocol-relative
// and absolute URLs are local only when they resolve to the page's host.
// Non-HTTP schemes, fragments and empty values are never local.
func IsLocal(rawURL string, pageURL *url.URL) bool {
	raw := strings.TrimSpace(rawURL)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return true
	}

	resolved := pageURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return false
	}
	return strings.EqualFold(resolved.Host, pageURL.Host)
}
