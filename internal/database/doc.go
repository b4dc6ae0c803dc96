// Package database provides the SQLite-backed load history of pageloader.
//
// Every load, successful or not, can be stored with a summary (URL, page
// file, failed phase, asset count and size) and its full JSON report. The
// history command lists these records.
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, so the
// database is a single file under the XDG data directory.
package database
