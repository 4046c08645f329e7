package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const defaultMaxContentLen = 2000

// Scraper extracts readable content from web pages linked in notes.
type Scraper struct {
	httpClient    *http.Client
	maxContentLen int
	userAgent     string
	logger        *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		s.httpClient.Timeout = d
	}
}

// WithMaxContentLength caps the returned text, counted in characters.
func WithMaxContentLength(n int) Option {
	return func(s *Scraper) {
		s.maxContentLen = n
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Scraper) {
		s.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scraper) {
		s.logger = l
	}
}

// NewScraper creates a new content scraper.
func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		maxContentLen: defaultMaxContentLen,
		userAgent:     "Mozilla/5.0 (compatible; NotionPostBot/1.0)",
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Expand returns the readable text behind a bookmarked URL.
func (s *Scraper) Expand(ctx context.Context, rawURL string) (string, error) {
	content, err := s.Scrape(ctx, rawURL)
	if err != nil {
		return "", err
	}
	s.logger.Debug("expanded bookmark", "url", rawURL, "content_len", len(content))
	return content, nil
}

// Scrape extracts readable text content from a URL.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", rawURL)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q: %s", parsedURL.Scheme, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}

	return truncate(strings.TrimSpace(article.TextContent), s.maxContentLen), nil
}

// truncate cuts s to at most n runes so multi-byte text is never split.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
