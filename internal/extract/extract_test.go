package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"specforge/internal/template"
)

const convexReadme = `# Convex

Convex is the backend application platform with everything you need to build your product in TypeScript.

## Queries

Queries read data from the database and are reactive.

` + "```ts\nexport const list = query({ handler: async (ctx) => ctx.db.query(\"tasks\").collect() });\n```" + `

## Mutations

Mutations write data inside a transaction.

## License

Apache-2.0
`

func newTestClient() *http.Client {
	return &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseDepth(t *testing.T) {
	tests := []struct {
		in      string
		want    Depth
		wantErr bool
	}{
		{"", DepthStandard, false},
		{"shallow", DepthShallow, false},
		{" Deep ", DepthDeep, false},
		{"exhaustive", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDepth(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	assert.False(t, DepthStandard.Limits().FollowLinks)
	assert.True(t, DepthDeep.Limits().FollowLinks)
	assert.Less(t, DepthShallow.Limits().MaxDocs, DepthDeep.Limits().MaxDocs)
}

func TestParseSource(t *testing.T) {
	e := New()

	src, err := e.ParseSource("https://docs.convex.dev/")
	require.NoError(t, err)
	assert.IsType(t, &webSource{}, src)

	src, err = e.ParseSource("llms:get-convex/convex-backend")
	require.NoError(t, err)
	assert.IsType(t, &repoSource{}, src)
	assert.Equal(t, "llms:get-convex/convex-backend", src.Location())

	src, err = e.ParseSource("docs/**/*.md")
	require.NoError(t, err)
	assert.IsType(t, &localSource{}, src)

	for _, bad := range []string{"", "  ", "llms:", "github:owner", "llms:a/b/c"} {
		_, err := e.ParseSource(bad)
		assert.Error(t, err, bad)
	}
}

func TestExtract_LocalDirectory(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "README.md"), convexReadme)
	writeFile(t, filepath.Join(dir, "guides", "recipes.md"), "# Recipes\n\nUsing Convex with React and Next.js.\n")
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n")

	k, err := New(WithMaxConcurrency(2)).Extract(context.Background(), []string{dir}, DepthStandard)
	require.NoError(t, err)

	require.Len(t, k.Documents, 2)
	assert.Empty(t, k.Failures)
	assert.Equal(t, template.DocRecipes, k.Documents[1].Type)
	assert.Equal(t, "Convex", k.Documents[0].Title)

	assert.Contains(t, k.Concepts, "Queries")
	assert.NotContains(t, k.Concepts, "License")
	assert.Contains(t, k.TechStack, "typescript")
	assert.Contains(t, k.TechStack, "react")
	assert.Contains(t, k.TechStack, "next.js")

	tags := make([]string, len(k.Capabilities))
	for i, c := range k.Capabilities {
		tags[i] = c.Tag
	}
	assert.Equal(t, []string{"queries", "mutations"}, tags)
	assert.Equal(t, "Queries read data from the database and are reactive.", k.Capabilities[0].Description)

	require.Len(t, k.CodeExamples, 1)
	assert.Equal(t, "typescript", k.CodeExamples[0].Language)
	assert.True(t, strings.HasPrefix(k.Summary, "Convex is the backend application platform"))
}

func TestExtract_Glob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "one.md"), "# One\n\nfirst")
	writeFile(t, filepath.Join(dir, "b", "c", "two.md"), "# Two\n\nsecond")
	writeFile(t, filepath.Join(dir, "b", "skip.txt"), "not matched")

	k, err := New().Extract(context.Background(), []string{filepath.Join(dir, "**", "*.md")}, DepthShallow)
	require.NoError(t, err)
	require.Len(t, k.Documents, 2)
	assert.Equal(t, "One", k.Documents[0].Title)
	assert.Equal(t, "Two", k.Documents[1].Title)
}

func TestExtract_ShallowCapsDocuments(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.md", "c.md", "d.md", "e.md"} {
		writeFile(t, filepath.Join(dir, name), "# "+name+"\n\ncontent")
	}

	k, err := New().Extract(context.Background(), []string{dir}, DepthShallow)
	require.NoError(t, err)
	assert.Len(t, k.Documents, DepthShallow.Limits().MaxDocs)
}

func TestExtract_TotalFailureKeepsShape(t *testing.T) {
	dir := t.TempDir()
	k, err := New().Extract(context.Background(), []string{
		filepath.Join(dir, "missing.md"),
		"llms:",
		filepath.Join(dir, "*.none"),
	}, "")
	require.NoError(t, err)

	assert.Equal(t, DepthStandard, k.Depth)
	require.Len(t, k.Failures, 3)
	assert.Equal(t, "llms:", k.Failures[1].Source)
	assert.NotNil(t, k.Documents)
	assert.NotNil(t, k.Concepts)
	assert.NotNil(t, k.TechStack)
	assert.NotNil(t, k.Capabilities)
	assert.NotNil(t, k.CodeExamples)
	assert.Empty(t, k.Summary)
}

func TestExtract_WebPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/guide":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><head><title>Guide</title><script>x()</script></head><body>
<nav>menu</nav>
<h1>Getting started</h1>
<p>Install the <code>convex</code> package with <strong>npm</strong>.</p>
<h2>Schemas</h2>
<p>Define tables in TypeScript.</p>
<pre><code class="language-ts">defineSchema({ tasks: defineTable({ text: v.string() }) })</code></pre>
</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := New(WithHTTPClient(newTestClient()))
	k, err := e.Extract(context.Background(), []string{srv.URL + "/guide", srv.URL + "/missing"}, DepthStandard)
	require.NoError(t, err)

	require.Len(t, k.Documents, 1)
	doc := k.Documents[0]
	assert.Equal(t, "Guide", doc.Title)
	assert.True(t, doc.IsURL)
	assert.Contains(t, doc.Content, "# Getting started")
	assert.Contains(t, doc.Content, "`convex`")
	assert.Contains(t, doc.Content, "```ts")
	assert.NotContains(t, doc.Content, "menu")
	assert.NotContains(t, doc.Content, "x()")

	require.Len(t, k.Failures, 1)
	assert.Contains(t, k.Failures[0].Error, "HTTP 404")
	assert.Contains(t, k.TechStack, "typescript")
}

func TestExtract_RepoLlmsTxt(t *testing.T) {
	var userAgent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/acme/widgets/master/llms.txt":
			_, _ = w.Write([]byte("# Widgets\n\n> Widget toolkit\n\n- [Guide](docs/guide.md): usage\n- [API](docs/api.md)\n"))
		case "/acme/widgets/master/docs/guide.md":
			_, _ = w.Write([]byte("# Guide\n\n" + strings.Repeat("Widgets are composable building blocks. ", 5)))
		case "/acme/widgets/master/docs/api.md":
			_, _ = w.Write([]byte("# API\n\n" + strings.Repeat("Every widget exposes a render method. ", 5)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := New(WithHTTPClient(newTestClient()), WithRawBaseURL(srv.URL), WithUserAgent("specforge-test"))

	k, err := e.Extract(context.Background(), []string{"llms:acme/widgets"}, DepthStandard)
	require.NoError(t, err)
	require.Len(t, k.Documents, 1)
	assert.Equal(t, "Widgets", k.Documents[0].Title)
	assert.Equal(t, srv.URL+"/acme/widgets/master/llms.txt", k.Documents[0].Location)
	assert.Equal(t, "specforge-test", userAgent.Load())

	k, err = e.Extract(context.Background(), []string{"llms:acme/widgets"}, DepthDeep)
	require.NoError(t, err)
	require.Len(t, k.Documents, 3)
	assert.Equal(t, "Guide", k.Documents[1].Title)
	assert.Equal(t, "API", k.Documents[2].Title)
}

func TestExtract_RepoReadmeFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/acme/tool/main/README.md" {
			_, _ = w.Write([]byte(convexReadme))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := New(WithHTTPClient(newTestClient()), WithRawBaseURL(srv.URL))
	k, err := e.Extract(context.Background(), []string{"github:acme/tool", "github:acme/empty"}, DepthStandard)
	require.NoError(t, err)

	require.Len(t, k.Documents, 1)
	assert.Equal(t, "Convex", k.Documents[0].Title)
	require.Len(t, k.Failures, 1)
	assert.Equal(t, "github:acme/empty", k.Failures[0].Source)
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, []string{t.TempDir()}, DepthStandard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseLlmsLinks(t *testing.T) {
	content := `# Project
> summary
- [Intro](docs/intro.md): start here
- docs/api.md: reference
[External](https://example.com/x.md)

`
	assert.Equal(t, []string{"docs/intro.md", "docs/api.md", "https://example.com/x.md"}, parseLlmsLinks(content))
}

func TestFirstParagraph(t *testing.T) {
	content := "# Title\n\n[![badge](x)](y)\n\nFirst line\ncontinues here.\n\nSecond paragraph."
	assert.Equal(t, "First line continues here.", firstParagraph(content, 100))
	assert.Equal(t, "First...", firstParagraph(content, 5))
}

func TestSplitSectionsIgnoresFences(t *testing.T) {
	content := "# A\n```sh\n# not a heading\n```\n## B\ntext"
	sections := splitSections(content)
	require.Len(t, sections, 2)
	assert.Equal(t, "A", sections[0].title)
	assert.Equal(t, 2, sections[1].level)
	assert.Equal(t, "text", sections[1].body)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab\n\n[...truncated...]", truncate("abcdef", 2))

	// "é" is two bytes; cutting inside it backs up to the rune start.
	cut := truncate("aébc", 2)
	assert.Equal(t, "a\n\n[...truncated...]", cut)
	assert.True(t, utf8.ValidString(cut))
}
