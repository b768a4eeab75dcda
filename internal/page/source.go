package page

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pagebrain/internal/logging"
)

// DefaultMaxBytes caps how much of a document is read.
const DefaultMaxBytes = 4 << 20

const truncatedMarker = "\n\n[...truncated...]"

const userAgent = "Mozilla/5.0 (compatible; pagebrain/1.0)"

// ErrUnsupportedScheme is returned for URLs no source can load.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// Source loads a page by URL.
type Source interface {
	Load(ctx context.Context, rawURL string) (Page, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, rawURL string) (Page, error)

func (f SourceFunc) Load(ctx context.Context, rawURL string) (Page, error) {
	return f(ctx, rawURL)
}

// HTTPSource fetches pages with a plain GET.
type HTTPSource struct {
	Client   *http.Client
	MaxBytes int64
}

// NewHTTPSource creates an HTTP source. Zero maxBytes means DefaultMaxBytes.
func NewHTTPSource(timeout time.Duration, maxBytes int64) *HTTPSource {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &HTTPSource{Client: &http.Client{Timeout: timeout}, MaxBytes: maxBytes}
}

// Load fetches rawURL. Plain text and markdown bodies pass through untouched.
func (s *HTTPSource) Load(ctx context.Context, rawURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	timer := logging.StartTimer(logging.CategoryBrowser, "http fetch "+rawURL)
	defer timer.Stop()

	resp, err := s.Client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("failed to fetch %s: HTTP %s", rawURL, resp.Status)
	}

	body, truncated, err := readLimited(resp.Body, s.MaxBytes)
	if err != nil {
		return Page{}, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	contentType := resp.Header.Get("Content-Type")
	var p Page
	if strings.Contains(contentType, "text/plain") || strings.Contains(contentType, "text/markdown") {
		p = Page{URL: finalURL, Content: strings.TrimSpace(string(body))}
	} else if p, err = Parse(bytes.NewReader(body), finalURL); err != nil {
		return Page{}, err
	}
	if truncated {
		p.Content += truncatedMarker
	}
	logging.Browser("Fetched %s (%d bytes, %d chars)", finalURL, len(body), len(p.Content))
	return p, nil
}

// FileSource reads local documents. HTML files are extracted, anything else
// is taken as text.
type FileSource struct {
	MaxBytes int64
}

// Load reads a file:// URL or a plain path.
func (s *FileSource) Load(_ context.Context, rawURL string) (Page, error) {
	path, err := LocalPath(rawURL)
	if err != nil {
		return Page{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Page{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	maxBytes := s.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	body, truncated, err := readLimited(f, maxBytes)
	if err != nil {
		return Page{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	pageURL := (&url.URL{Scheme: "file", Path: path}).String()
	var p Page
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		if p, err = Parse(bytes.NewReader(body), pageURL); err != nil {
			return Page{}, err
		}
	default:
		p = Page{URL: pageURL, Content: strings.TrimSpace(string(body))}
	}
	if p.Title == "" {
		p.Title = filepath.Base(path)
	}
	if truncated {
		p.Content += truncatedMarker
	}
	logging.BrowserDebug("Read %s (%d bytes)", path, len(body))
	return p, nil
}

// Router dispatches local paths to Files and everything else to Web.
type Router struct {
	Web   Source
	Files Source
}

// Load normalizes rawURL and hands it to the matching source.
func (r Router) Load(ctx context.Context, rawURL string) (Page, error) {
	normalized, local := Normalize(rawURL)
	if local {
		if r.Files == nil {
			return Page{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
		}
		return r.Files.Load(ctx, normalized)
	}
	if r.Web == nil {
		return Page{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
	}
	return r.Web.Load(ctx, normalized)
}

// Normalize classifies a user-supplied location. Bare paths that exist on
// disk are local; other scheme-less input is assumed to be an https host.
func Normalize(raw string) (normalized string, local bool) {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "file://"):
		return raw, true
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return raw, false
	case strings.Contains(raw, "://"):
		return raw, false
	}
	if _, err := os.Stat(raw); err == nil {
		return raw, true
	}
	return "https://" + raw, false
}

// LocalPath returns the filesystem path for a file:// URL or a plain path.
func LocalPath(raw string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(raw), "file://") {
		return filepath.Abs(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid file URL %q: %w", raw, err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("%w: remote file host %q", ErrUnsupportedScheme, u.Host)
	}
	return filepath.FromSlash(u.Path), nil
}

func readLimited(r io.Reader, limit int64) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}
