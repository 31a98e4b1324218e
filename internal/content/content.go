// Package content renders the static text pages from markdown with YAML front matter.
package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.md
var defaults embed.FS

const defaultCacheTTL = 5 * time.Minute

// ErrNotFound is returned when neither the content directory nor the defaults carry the slug.
var ErrNotFound = errors.New("content: page not found")

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Page is a rendered text page.
type Page struct {
	Slug    string
	Title   string
	Summary string
	HTML    template.HTML
}

type frontMatter struct {
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
}

type cacheEntry struct {
	page    Page
	expires time.Time
}

// Library loads pages from a directory, falling back to the embedded defaults.
type Library struct {
	dir    string
	ttl    time.Duration
	logger *zap.Logger
	md     goldmark.Markdown
	policy *bluemonday.Policy
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// Option customises a Library.
type Option func(*Library)

// WithCacheTTL overrides the cache lifetime.
func WithCacheTTL(d time.Duration) Option {
	return func(l *Library) {
		if d > 0 {
			l.ttl = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Library) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLibrary returns a Library reading <dir>/<slug>.md.
func NewLibrary(dir string, opts ...Option) *Library {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	l := &Library{
		dir:    strings.TrimSpace(dir),
		ttl:    defaultCacheTTL,
		logger: zap.NewNop(),
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM, extension.Typographer)),
		policy: policy,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Get returns the rendered page for slug.
func (l *Library) Get(slug string) (Page, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !slugPattern.MatchString(slug) {
		return Page{}, ErrNotFound
	}

	l.mu.RLock()
	entry, ok := l.cache[slug]
	l.mu.RUnlock()
	if ok && l.now().Before(entry.expires) {
		return entry.page, nil
	}

	raw, err := l.read(slug)
	if err != nil {
		return Page{}, err
	}
	page, err := l.render(slug, raw)
	if err != nil {
		return Page{}, err
	}

	l.mu.Lock()
	l.cache[slug] = cacheEntry{page: page, expires: l.now().Add(l.ttl)}
	l.mu.Unlock()
	return page, nil
}

func (l *Library) read(slug string) ([]byte, error) {
	if l.dir != "" {
		data, err := os.ReadFile(filepath.Join(l.dir, slug+".md"))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("content: read failed; using default", zap.String("slug", slug), zap.Error(err))
		}
	}
	data, err := defaults.ReadFile("defaults/" + slug + ".md")
	if err != nil {
		return nil, ErrNotFound
	}
	return data, nil
}

func (l *Library) render(slug string, raw []byte) (Page, error) {
	fm, body := splitFrontMatter(string(raw))
	var front frontMatter
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return Page{}, fmt.Errorf("content: parse front matter %s: %w", slug, err)
		}
	}
	var buf bytes.Buffer
	if err := l.md.Convert([]byte(body), &buf); err != nil {
		return Page{}, fmt.Errorf("content: render %s: %w", slug, err)
	}
	title := strings.TrimSpace(front.Title)
	if title == "" {
		title = prettifySlug(slug)
	}
	return Page{
		Slug:    slug,
		Title:   title,
		Summary: strings.TrimSpace(front.Summary),
		HTML:    template.HTML(l.policy.SanitizeBytes(buf.Bytes())),
	}, nil
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimPrefix(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n\r")
		}
	}
	return "", input
}

func prettifySlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
