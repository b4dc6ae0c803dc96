// Package main provides the entry point for the pageloader CLI.
//
// pageloader saves a web page to disk together with the images, scripts
// and stylesheets it loads from its own host, rewriting the references so
// the saved copy opens offline.
//
// Usage:
//
//	pageloader [-o dir] <page-url>...
//	pageloader history [page-url]
//	pageloader init
//
// See --help for all available options.
package main

// main is the entry point for pageloader.
func main() {
	Execute()
}
