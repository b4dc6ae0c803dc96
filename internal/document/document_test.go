package document

import (
	"net/url"
	"strings"
	"testing"

	"github.com/nao1215/pageloader/internal/naming"
)

const coursesPage = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <title>Programming courses</title>
    <link rel="stylesheet" media="all" href="https://cdn.example.net/assets/menu.css">
    <link rel="stylesheet" media="all" href="/assets/application.css" />
    <link href="/courses" rel="canonical">
  </head>
  <body>
    <img src="/assets/professions/nodejs.png" alt="Node.js developer icon" />
    <h3>
      <a href="/professions/nodejs">Node.js developer</a>
    </h3>
    <script src="https://js.stripe.com/v3/"></script>
    <script src="https://site.example/packs/js/runtime.js"></script>
    <script>console.log("inline")</script>
  </body>
</html>`

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

func parseDocument(t *testing.T, content, pageURL string) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(content), mustParseURL(t, pageURL))
	if err != nil {
		t.Fatalf("failed to parse document: %v", err)
	}
	return doc
}

// TestIsLocal tests the same-origin filter.
func TestIsLocal(t *testing.T) {
	t.Parallel()

	page := mustParseURL(t, "https://h/x")

	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "root-relative path", raw: "/a.png", want: true},
		{name: "absolute same host", raw: "https://h/a.png", want: true},
		{name: "other host", raw: "https://other/a.png", want: false},
		{name: "same host over http", raw: "http://h/a.png", want: true},
		{name: "host compared case-insensitively", raw: "https://H/a.png", want: true},
		{name: "relative path", raw: "img/a.png", want: true},
		{name: "protocol-relative same host", raw: "//h/a.png", want: true},
		{name: "protocol-relative other host", raw: "//cdn.other/a.png", want: false},
		{name: "other port", raw: "https://h:8443/a.png", want: false},
		{name: "data url", raw: "data:image/png;base64,AAAA", want: false},
		{name: "javascript url", raw: "javascript:void(0)", want: false},
		{name: "fragment", raw: "#top", want: false},
		{name: "empty", raw: "  ", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsLocal(tt.raw, page); got != tt.want {
				t.Errorf("IsLocal(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

// TestCollectAssets tests asset classification.
func TestCollectAssets(t *testing.T) {
	t.Parallel()

	t.Run("collects local assets in document order", func(t *testing.T) {
		t.Parallel()

		doc := parseDocument(t, coursesPage, "https://site.example/courses")
		assets := doc.CollectAssets()

		want := []struct {
			kind Kind
			url  string
		}{
			{KindLink, "https://site.example/assets/application.css"},
			{KindLink, "https://site.example/courses"},
			{KindImage, "https://site.example/assets/professions/nodejs.png"},
			{KindScript, "https://site.example/packs/js/runtime.js"},
		}

		if len(assets) != len(want) {
			t.Fatalf("expected %d assets, got %d: %+v", len(want), len(assets), assets)
		}
		for i, w := range want {
			if assets[i].Kind != w.kind {
				t.Errorf("asset %d: kind %q, want %q", i, assets[i].Kind, w.kind)
			}
			if assets[i].URL.String() != w.url {
				t.Errorf("asset %d: url %q, want %q", i, assets[i].URL, w.url)
			}
		}
	})

	t.Run("records attribute and raw value", func(t *testing.T) {
		t.Parallel()

		doc := parseDocument(t, `<img src="/a.png"><link href="/b.css">`, "https://h/")
		assets := doc.CollectAssets()
		if len(assets) != 2 {
			t.Fatalf("expected 2 assets, got %d", len(assets))
		}
		if assets[0].Attribute != "src" || assets[0].RawURL != "/a.png" {
			t.Errorf("unexpected first asset: %+v", assets[0])
		}
		if assets[1].Attribute != "href" || assets[1].RawURL != "/b.css" {
			t.Errorf("unexpected second asset: %+v", assets[1])
		}
	})

	t.Run("skips elements without reference attribute", func(t *testing.T) {
		t.Parallel()

		doc := parseDocument(t, `<img alt="x"><script>var a;</script><link rel="preconnect"><a href="/page">p</a>`, "https://h/")
		if assets := doc.CollectAssets(); len(assets) != 0 {
			t.Errorf("expected no assets, got %+v", assets)
		}
	})

	t.Run("page without assets", func(t *testing.T) {
		t.Parallel()

		doc := parseDocument(t, `<html><body><p>hello</p></body></html>`, "https://h/")
		if assets := doc.CollectAssets(); len(assets) != 0 {
			t.Errorf("expected no assets, got %d", len(assets))
		}
	})
}

// TestRewrite tests reference rewriting and serialization.
func TestRewrite(t *testing.T) {
	t.Parallel()

	t.Run("rewrites concrete scenario", func(t *testing.T) {
		t.Parallel()

		pageURL := mustParseURL(t, "https://example.test/courses")
		doc, err := Parse(strings.NewReader(`<html><body><img src="/assets/p/x.png"></body></html>`), pageURL)
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		plan, err := naming.NewPlan(pageURL, t.TempDir())
		if err != nil {
			t.Fatalf("failed to create plan: %v", err)
		}

		content, urls, err := doc.Rewrite(doc.CollectAssets(), plan)
		if err != nil {
			t.Fatalf("rewrite failed: %v", err)
		}

		want := `src="example-test-courses_files/example-test-assets-p-x.png"`
		if !strings.Contains(string(content), want) {
			t.Errorf("expected %s in output, got %s", want, content)
		}
		if len(urls) != 1 || urls[0] != "https://example.test/assets/p/x.png" {
			t.Errorf("unexpected urls: %v", urls)
		}
	})

	t.Run("keeps external references untouched", func(t *testing.T) {
		t.Parallel()

		doc := parseDocument(t, coursesPage, "https://site.example/courses")
		plan, err := naming.NewPlan(doc.PageURL(), t.TempDir())
		if err != nil {
			t.Fatalf("failed to create plan: %v", err)
		}

		content, urls, err := doc.Rewrite(doc.CollectAssets(), plan)
		if err != nil {
			t.Fatalf("rewrite failed: %v", err)
		}
		out := string(content)

		for _, external := range []string{"https://cdn.example.net/assets/menu.css", "https://js.stripe.com/v3/", `href="/professions/nodejs"`} {
			if !strings.Contains(out, external) {
				t.Errorf("expected %q to be kept", external)
			}
		}
		for _, local := range []string{
			`href="site-example-courses_files/site-example-assets-application.css"`,
			`href="site-example-courses_files/site-example-courses.html"`,
			`src="site-example-courses_files/site-example-assets-professions-nodejs.png"`,
			`src="site-example-courses_files/site-example-packs-js-runtime.js"`,
		} {
			if !strings.Contains(out, local) {
				t.Errorf("expected %s in output", local)
			}
		}
		if len(urls) != 4 {
			t.Errorf("expected 4 urls, got %v", urls)
		}
		if !strings.HasPrefix(out, "<!DOCTYPE html>") {
			t.Errorf("expected doctype to be preserved, got %q", out[:20])
		}
	})

	t.Run("repeated references share one file", func(t *testing.T) {
		t.Parallel()

		doc := parseDocument(t, `<img src="/logo.png"><img src="https://h/logo.png">`, "https://h/")
		plan, err := naming.NewPlan(doc.PageURL(), t.TempDir())
		if err != nil {
			t.Fatalf("failed to create plan: %v", err)
		}

		content, urls, err := doc.Rewrite(doc.CollectAssets(), plan)
		if err != nil {
			t.Fatalf("rewrite failed: %v", err)
		}
		if len(urls) != 1 {
			t.Errorf("expected 1 url, got %v", urls)
		}
		if n := strings.Count(string(content), `src="h_files/h-logo.png"`); n != 2 {
			t.Errorf("expected 2 rewritten references, got %d in %s", n, content)
		}
	})
}

// TestTitle tests title extraction.
func TestTitle(t *testing.T) {
	t.Parallel()

	doc := parseDocument(t, `<html><head><title>  Hello </title></head></html>`, "https://h/")
	if got := doc.Title(); got != "Hello" {
		t.Errorf("expected title 'Hello', got %q", got)
	}
}
