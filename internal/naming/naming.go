package naming

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

const (
	// pageExtension is appended to page file names and used as the default
	// extension for assets whose path has none.
	pageExtension = ".html"

	// assetsFolderSuffix is appended to the page token to name the folder
	// holding downloaded assets.
	assetsFolderSuffix = "_files"

	// indexBaseName replaces an empty base name (e.g. "/" or "/docs/").
	indexBaseName = "index"
)

// ErrNotAbsoluteURL is returned when a page URL lacks a scheme or host.
var ErrNotAbsoluteURL = errors.New("url must be absolute with scheme and host")

// ParsePageURL parses raw and checks that it is an absolute URL with
// scheme and host.
func ParsePageURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrNotAbsoluteURL, raw)
	}
	return u, nil
}

// Normalize returns host[:port], followed by the path unless it is just "/",
// followed by "?query" when a query is present. The scheme is dropped.
func Normalize(u *url.URL) string {
	var sb strings.Builder
	sb.WriteString(u.Host)
	if p := u.EscapedPath(); p != "/" {
		sb.WriteString(p)
	}
	if u.RawQuery != "" {
		sb.WriteString("?")
		sb.WriteString(u.RawQuery)
	}
	return sb.String()
}

// FileToken maps every character that is not an ASCII letter or digit to '-'.
// Distinct inputs can produce the same token; see Plan for how collisions
// between assets are handled.
func FileToken(s string) string {
	return strings.Map(func(r rune) rune {
		if isASCIIAlnum(r) {
			return r
		}
		return '-'
	}, s)
}

func isASCIIAlnum(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}

// PageFileName returns the file name of the saved page.
func PageFileName(pageURL *url.URL) string {
	return FileToken(Normalize(pageURL)) + pageExtension
}

// AssetsFolderName returns the name of the folder holding the page's assets.
func AssetsFolderName(pageURL *url.URL) string {
	return FileToken(Normalize(pageURL)) + assetsFolderSuffix
}

// AssetFileName returns the local file name for assetURL, resolved against
// baseURL. The directory part, prefixed with the base host, is tokenized and
// joined with the original base name. The real extension is kept so the saved
// file opens correctly; a path without extension gets ".html".
func AssetFileName(assetURL, baseURL *url.URL) string {
	resolved := baseURL.ResolveReference(assetURL)

	p := resolved.Path
	if p == "" {
		p = "/"
	}
	dir, base := path.Split(p)
	if base == "" {
		base = indexBaseName
	}
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		// Dot files such as "/.htaccess" keep their whole name.
		name, ext = base, ""
	}
	if ext == "" {
		ext = pageExtension
	}

	prefix := FileToken(baseURL.Host + strings.TrimSuffix(dir, "/"))
	return prefix + "-" + name + ext
}
