// Package document classifies and rewrites the asset references of an HTML page.
//
// A Document wraps a parsed page (golang.org/x/net/html through goquery).
// CollectAssets finds the same-origin <img src>, <script src> and
// <link href> references in document order, and Rewrite replaces each one
// with the relative path of its local copy before serializing the page.
//
// A Document is owned by a single load: it is parsed, classified, rewritten
// and rendered sequentially before any concurrent work starts.
package document
