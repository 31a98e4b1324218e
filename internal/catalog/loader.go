package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/xotten/portfolio/internal/domain"
)

const (
	defaultFeedTimeout = 10 * time.Second
	maxFeedBytes       = 8 << 20
)

var (
	// ErrFeedNotConfigured is returned when no feed location is set.
	ErrFeedNotConfigured = errors.New("catalog: feed not configured")
	// ErrUnexpectedShape is returned when the payload is neither an array nor an object with an items array.
	ErrUnexpectedShape = errors.New("catalog: unexpected feed shape")
)

// StatusError reports a non-2xx feed response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: feed responded %d", e.Code)
}

// Loader fetches the artwork list from an external source.
type Loader interface {
	Fetch(ctx context.Context) ([]domain.Artwork, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]domain.Artwork, error)

// Fetch calls f.
func (f LoaderFunc) Fetch(ctx context.Context) ([]domain.Artwork, error) { return f(ctx) }

// HTTPLoader GETs the feed URL, always bypassing caches.
type HTTPLoader struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// Fetch performs a single GET attempt.
func (l HTTPLoader) Fetch(ctx context.Context) ([]domain.Artwork, error) {
	if strings.TrimSpace(l.URL) == "" {
		return nil, ErrFeedNotConfigured
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("catalog: read feed: %w", err)
	}
	return Decode(body)
}

// FileLoader reads the feed from a local JSON file.
type FileLoader struct {
	Path string
}

// Fetch reads and decodes the file.
func (l FileLoader) Fetch(ctx context.Context) ([]domain.Artwork, error) {
	if strings.TrimSpace(l.Path) == "" {
		return nil, ErrFeedNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read feed file: %w", err)
	}
	return Decode(body)
}

// LoaderFor picks an HTTP loader for http(s) URLs and a file loader otherwise.
func LoaderFor(location string, client *http.Client, timeout time.Duration) Loader {
	trimmed := strings.TrimSpace(location)
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return HTTPLoader{URL: trimmed, Client: client, Timeout: timeout}
	}
	return FileLoader{Path: strings.TrimPrefix(trimmed, "file://")}
}

// Decode accepts either a JSON array of artworks or an object carrying an items array.
func Decode(body []byte) ([]domain.Artwork, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("catalog: malformed feed json: %w", ErrUnexpectedShape)
	}
	parsed := gjson.ParseBytes(body)
	var raw string
	switch {
	case parsed.IsArray():
		raw = parsed.Raw
	case parsed.IsObject():
		items := parsed.Get("items")
		if !items.IsArray() {
			return nil, ErrUnexpectedShape
		}
		raw = items.Raw
	default:
		return nil, ErrUnexpectedShape
	}

	var out []domain.Artwork
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("catalog: decode artworks: %w", err)
	}
	if out == nil {
		out = []domain.Artwork{}
	}
	return out, nil
}
