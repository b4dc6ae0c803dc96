package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/pageloader/internal/config"
	"github.com/nao1215/pageloader/internal/naming"
	"github.com/nao1215/pageloader/internal/pipeline"
	"github.com/nao1215/pageloader/internal/report"
)

var testPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0xff}

// newSiteServer starts a server with a page referencing local and remote
// assets, and a private page that needs the session cookie.
func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/courses", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Courses</title>`+
			`<link rel="stylesheet" href="/assets/app.css"></head>`+
			`<body><img src="/assets/p/x.png">`+
			`<script src="https://cdn.other.test/lib.js"></script></body></html>`)
	})
	mux.HandleFunc("/assets/app.css", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "body { margin: 0; }")
	})
	mux.HandleFunc("/assets/p/x.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(testPNG)
	})
	mux.HandleFunc("/private/", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path == "/private/page" {
			fmt.Fprint(w, `<html><body><img src="/private/x.png"></body></html>`)
			return
		}
		_, _ = w.Write(testPNG)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// writeConfig writes a configuration file into a temporary directory.
// Passing it with -c keeps tests away from the user's own configuration.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".pageloader")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// executeRoot runs the root command with args and returns its stdout.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// expectedPagePath returns the absolute page file path for rawURL in dir.
func expectedPagePath(t *testing.T, rawURL, dir string) string {
	t.Helper()

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("failed to parse %s: %v", rawURL, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		t.Fatalf("failed to resolve %s: %v", dir, err)
	}
	return filepath.Join(abs, naming.PageFileName(u))
}

// TestRunLoadCmd tests the load operation end to end.
func TestRunLoadCmd(t *testing.T) {
	t.Parallel()

	server := newSiteServer(t)
	emptyConfig := writeConfig(t, "sites: {}\n")

	t.Run("saves page with assets and prints its path", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		pageURL := server.URL + "/courses"

		out, err := executeRoot(t, "-c", emptyConfig, "--no-history", "-o", dir, pageURL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := expectedPagePath(t, pageURL, dir)
		if got := strings.TrimSpace(out); got != want {
			t.Errorf("expected printed path %q, got %q", want, got)
		}

		content, err := os.ReadFile(want)
		if err != nil {
			t.Fatalf("page file not written: %v", err)
		}
		page := string(content)
		if strings.Contains(page, `src="/assets/p/x.png"`) {
			t.Error("expected image reference to be rewritten")
		}
		if !strings.Contains(page, "https://cdn.other.test/lib.js") {
			t.Error("expected remote script to be left untouched")
		}

		folder := strings.TrimSuffix(want, ".html") + "_files"
		entries, err := os.ReadDir(folder)
		if err != nil {
			t.Fatalf("assets folder not created: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("expected 2 assets, got %d", len(entries))
		}
		for _, e := range entries {
			if !strings.Contains(page, filepath.Base(folder)+"/"+e.Name()) {
				t.Errorf("expected page to reference %s", e.Name())
			}
		}
	})

	t.Run("missing page fails without writing", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()

		out, err := executeRoot(t, "-c", emptyConfig, "--no-history", "-o", dir, server.URL+"/missing")
		if err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(err, pipeline.ErrPageFetch) {
			t.Errorf("expected ErrPageFetch, got %v", err)
		}
		if !strings.Contains(err.Error(), "404") {
			t.Errorf("expected status code in error, got %v", err)
		}
		if out != "" {
			t.Errorf("expected no output, got %q", out)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected empty directory, got %d entries", len(entries))
		}
	})

	t.Run("rejects non-http target", func(t *testing.T) {
		t.Parallel()

		_, err := executeRoot(t, "-c", emptyConfig, "--no-history", "ftp://example.com/file")
		if !errors.Is(err, config.ErrInvalidTarget) {
			t.Errorf("expected ErrInvalidTarget, got %v", err)
		}
	})

	t.Run("rejects conflicting report formats", func(t *testing.T) {
		t.Parallel()

		_, err := executeRoot(t, "-c", emptyConfig, "--no-history", "-j", "-m", server.URL+"/courses")
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("fails on missing explicit config", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "nope.yaml")
		_, err := executeRoot(t, "-c", missing, "--no-history", server.URL+"/courses")
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("json report replaces printed path", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		out, err := executeRoot(t, "-c", emptyConfig, "--no-history", "-j", "-o", dir, server.URL+"/courses")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got report.JSONReport
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", out, err)
		}
		if got.Succeeded != 1 || got.Failed != 0 {
			t.Errorf("expected 1 succeeded and 0 failed, got %d/%d", got.Succeeded, got.Failed)
		}
		if len(got.Reports) != 1 {
			t.Fatalf("expected 1 report, got %d", len(got.Reports))
		}
		if got.Reports[0].Title != "Courses" {
			t.Errorf("expected title Courses, got %q", got.Reports[0].Title)
		}
		if len(got.Reports[0].Assets) != 2 {
			t.Errorf("expected 2 assets, got %d", len(got.Reports[0].Assets))
		}
	})

	t.Run("markdown report goes to report file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		reportFile := filepath.Join(dir, "reports", "load.md")
		pageURL := server.URL + "/courses"

		out, err := executeRoot(t, "-c", emptyConfig, "--no-history", "-m",
			"--report-file", reportFile, "-o", dir, pageURL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := strings.TrimSpace(out); got != expectedPagePath(t, pageURL, dir) {
			t.Errorf("expected path on stdout when report goes to a file, got %q", got)
		}

		content, err := os.ReadFile(reportFile)
		if err != nil {
			t.Fatalf("report file not written: %v", err)
		}
		if !strings.Contains(string(content), "Page Load Report") {
			t.Errorf("expected markdown report, got %q", string(content))
		}
	})

	t.Run("applies site cookie from config", func(t *testing.T) {
		t.Parallel()

		host := strings.TrimPrefix(server.URL, "http://")
		cfgPath := writeConfig(t, fmt.Sprintf("sites:\n  %q:\n    cookie: \"session=abc\"\n", host))
		dir := t.TempDir()

		out, err := executeRoot(t, "-c", cfgPath, "--no-history", "-o", dir, server.URL+"/private/page")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(out) == "" {
			t.Error("expected saved path")
		}

		_, err = executeRoot(t, "-c", emptyConfig, "--no-history", "-o", t.TempDir(), server.URL+"/private/page")
		if !errors.Is(err, pipeline.ErrPageFetch) {
			t.Errorf("expected ErrPageFetch without cookie, got %v", err)
		}
	})

	t.Run("batch keeps going after a failure", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		good := server.URL + "/courses"
		bad := server.URL + "/missing"

		out, err := executeRoot(t, "-c", emptyConfig, "--no-history", "-b", "2", "-o", dir, bad, good)
		if err == nil {
			t.Fatal("expected error for the failed page")
		}
		if !strings.Contains(err.Error(), bad) {
			t.Errorf("expected error to name %s, got %v", bad, err)
		}
		if strings.Contains(err.Error(), good+":") {
			t.Errorf("expected no error for %s, got %v", good, err)
		}

		if got := strings.TrimSpace(out); got != expectedPagePath(t, good, dir) {
			t.Errorf("expected only the saved page path, got %q", got)
		}
	})
}
