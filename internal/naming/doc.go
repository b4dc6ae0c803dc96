// Package naming converts URLs into filesystem-safe names.
//
// It derives the saved page file name, the assets folder name and one file
// name per asset from a URL, and builds a Plan describing where every file
// of a load is written. Nothing in this package performs I/O.
//
// Names are built from a normalized URL (host, non-root path and query,
// without scheme) whose non-alphanumeric characters are replaced by '-':
//
//	https://example.test/courses        -> example-test-courses.html
//	                                    -> example-test-courses_files/
//	/assets/p/x.png (on example.test)   -> example-test-assets-p-x.png
package naming
