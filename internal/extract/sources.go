package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Source produces documents from one location.
type Source interface {
	Location() string
	Fetch(ctx context.Context, limits Limits) ([]Document, error)
}

// ParseSource interprets a location string:
//
//	http(s)://...                    a web page
//	llms:owner/repo, github:owner/repo  repository docs via llms.txt, then READMEs
//	anything else                    a local file, directory, or doublestar glob
func (e *Extractor) ParseSource(location string) (Source, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, errors.New("empty source location")
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return &webSource{url: location, fetcher: e.fetcher}, nil
	case strings.HasPrefix(location, "llms:"), strings.HasPrefix(location, "github:"):
		_, repo, _ := strings.Cut(location, ":")
		owner, name, ok := strings.Cut(strings.Trim(repo, "/"), "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("repository source %q must look like llms:owner/repo", location)
		}
		return &repoSource{location: location, owner: owner, repo: name, rawBase: e.rawBaseURL, fetcher: e.fetcher, log: e.log}, nil
	default:
		return &localSource{pattern: location}, nil
	}
}

// =============================================================================
// HTTP
// =============================================================================

type fetcher struct {
	client    *http.Client
	userAgent string
}

// get fetches url and returns the body (capped at maxBytes) and content type.
func (f *fetcher) get(ctx context.Context, url string, maxBytes int) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,text/markdown,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}

	// Read a little past the cap so HTML conversion sees closing tags of
	// truncated pages; the converted text is capped again by the caller.
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)*4))
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", url, err)
	}
	return string(body), resp.Header.Get("Content-Type"), nil
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n\n[...truncated...]"
}

// =============================================================================
// WEB PAGE
// =============================================================================

type webSource struct {
	url     string
	fetcher *fetcher
}

func (s *webSource) Location() string { return s.url }

func (s *webSource) Fetch(ctx context.Context, limits Limits) ([]Document, error) {
	body, contentType, err := s.fetcher.get(ctx, s.url, limits.MaxBytes)
	if err != nil {
		return nil, err
	}

	content, title := body, ""
	if !strings.Contains(contentType, "text/plain") && !strings.Contains(contentType, "text/markdown") {
		content, title, err = htmlToMarkdown(body)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s to markdown: %w", s.url, err)
		}
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%s has no readable content", s.url)
	}
	if title == "" {
		title = firstHeading(content)
	}

	return []Document{{
		Source:   s.url,
		Location: s.url,
		Title:    title,
		Type:     inferDocType(s.url, true),
		Content:  truncate(content, limits.MaxBytes),
		IsURL:    true,
	}}, nil
}

// =============================================================================
// REPOSITORY (llms.txt)
// =============================================================================

type repoSource struct {
	location string
	owner    string
	repo     string
	rawBase  string
	fetcher  *fetcher
	log      *zap.Logger
}

func (s *repoSource) Location() string { return s.location }

func (s *repoSource) rawURL(branch, path string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", strings.TrimRight(s.rawBase, "/"), s.owner, s.repo, branch, strings.TrimPrefix(path, "/"))
}

func (s *repoSource) Fetch(ctx context.Context, limits Limits) ([]Document, error) {
	docs, err := s.fetchLlmsTxt(ctx, limits)
	if err == nil {
		return docs, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.log.Debug("no llms.txt, trying common docs", zap.String("source", s.location), zap.Error(err))

	docs = s.fetchCommonDocs(ctx, limits)
	if len(docs) == 0 {
		return nil, fmt.Errorf("no llms.txt or README found for %s/%s", s.owner, s.repo)
	}
	return docs, nil
}

func (s *repoSource) fetchLlmsTxt(ctx context.Context, limits Limits) ([]Document, error) {
	locations := []struct{ branch, path string }{
		{"main", "llms.txt"},
		{"master", "llms.txt"},
		{"main", ".llms.txt"},
	}

	for _, loc := range locations {
		url := s.rawURL(loc.branch, loc.path)
		content, _, err := s.fetcher.get(ctx, url, limits.MaxBytes)
		if err != nil || len(strings.TrimSpace(content)) <= 10 {
			continue
		}
		s.log.Debug("found llms.txt", zap.String("url", url))

		docs := []Document{{
			Source:   s.location,
			Location: url,
			Title:    firstHeading(content),
			Type:     inferDocType(url, true),
			Content:  truncate(content, limits.MaxBytes),
			IsURL:    true,
		}}
		if limits.FollowLinks {
			docs = append(docs, s.followLinks(ctx, loc.branch, content, limits.MaxDocs-1, limits.MaxBytes)...)
		}
		return docs, nil
	}
	return nil, errors.New("no llms.txt found")
}

// parseLlmsLinks returns the document links listed in an llms.txt file.
func parseLlmsLinks(content string) []string {
	var links []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ">") {
			continue
		}

		var link string
		if start := strings.Index(line, "]("); start > 0 {
			if end := strings.Index(line[start:], ")"); end > 0 {
				link = line[start+2 : start+end]
			}
		} else if strings.HasPrefix(line, "-") {
			parts := strings.SplitN(line, ":", 2)
			link = strings.TrimSpace(strings.TrimPrefix(parts[0], "-"))
		}
		if link != "" {
			links = append(links, link)
		}
	}
	return links
}

func (s *repoSource) followLinks(ctx context.Context, branch, content string, maxDocs, maxBytes int) []Document {
	var docs []Document
	for _, link := range parseLlmsLinks(content) {
		if len(docs) >= maxDocs || ctx.Err() != nil {
			break
		}
		url := link
		if !strings.HasPrefix(url, "http") {
			url = s.rawURL(branch, link)
		}
		body, _, err := s.fetcher.get(ctx, url, maxBytes)
		if err != nil || len(strings.TrimSpace(body)) <= 50 {
			continue
		}
		docs = append(docs, Document{
			Source:   s.location,
			Location: url,
			Title:    firstHeading(body),
			Type:     inferDocType(url, false),
			Content:  truncate(body, maxBytes),
			IsURL:    true,
		})
	}
	return docs
}

var commonDocPaths = []string{
	"README.md",
	"docs/README.md",
	"documentation/README.md",
	"docs/getting-started.md",
	"docs/quickstart.md",
	"GETTING_STARTED.md",
}

func (s *repoSource) fetchCommonDocs(ctx context.Context, limits Limits) []Document {
	var docs []Document
	for _, path := range commonDocPaths {
		if len(docs) >= limits.MaxDocs || ctx.Err() != nil {
			break
		}
		url := s.rawURL("main", path)
		content, _, err := s.fetcher.get(ctx, url, limits.MaxBytes)
		if err != nil || len(strings.TrimSpace(content)) <= 100 {
			continue
		}
		docs = append(docs, Document{
			Source:   s.location,
			Location: url,
			Title:    firstHeading(content),
			Type:     inferDocType(url, false),
			Content:  truncate(content, limits.MaxBytes),
			IsURL:    true,
		})
	}
	return docs
}

// =============================================================================
// LOCAL FILES
// =============================================================================

type localSource struct {
	pattern string
}

func (s *localSource) Location() string { return s.pattern }

var docExtensions = map[string]bool{".md": true, ".mdx": true, ".markdown": true, ".txt": true, ".rst": true}

func (s *localSource) files() ([]string, error) {
	info, err := os.Stat(s.pattern)
	switch {
	case err == nil && !info.IsDir():
		return []string{s.pattern}, nil
	case err == nil:
		matches, err := doublestar.Glob(os.DirFS(s.pattern), "**/*.{md,mdx,markdown,txt,rst}")
		if err != nil {
			return nil, err
		}
		files := make([]string, len(matches))
		for i, m := range matches {
			files[i] = filepath.Join(s.pattern, filepath.FromSlash(m))
		}
		sort.Strings(files)
		return files, nil
	case errors.Is(err, fs.ErrNotExist) && strings.ContainsAny(s.pattern, "*?[{"):
		matches, err := doublestar.FilepathGlob(s.pattern)
		if err != nil {
			return nil, fmt.Errorf("bad glob %q: %w", s.pattern, err)
		}
		var files []string
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() {
				files = append(files, m)
			}
		}
		sort.Strings(files)
		return files, nil
	default:
		return nil, err
	}
}

func (s *localSource) Fetch(ctx context.Context, limits Limits) ([]Document, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	var docs []Document
	for _, path := range files {
		if len(docs) >= limits.MaxDocs {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !docExtensions[strings.ToLower(filepath.Ext(path))] && path != s.pattern {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}
		title := firstHeading(content)
		if title == "" {
			title = filepath.Base(path)
		}
		docs = append(docs, Document{
			Source:   s.pattern,
			Location: path,
			Title:    title,
			Type:     inferDocType(path, false),
			Content:  truncate(content, limits.MaxBytes),
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no readable documents matched %s", s.pattern)
	}
	return docs, nil
}
