package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

const (
	// DefaultFetchTimeout bounds a single Scrape request.
	DefaultFetchTimeout = 10 * time.Second
	// DefaultMaxChars is the number of characters of a response kept for the prompt.
	DefaultMaxChars = 500

	fetchUserAgent = "uniqw-agent/1.0 (+https://github.com/UniQw/uniqw-agent)"
)

// ScraperConfig holds configuration for the Scrape action.
type ScraperConfig struct {
	// Timeout bounds the whole request including reading the body.
	Timeout time.Duration
	// MaxChars is the number of characters kept from the decoded body.
	MaxChars int
	// Client overrides the HTTP client; its Timeout is replaced by Timeout.
	Client *http.Client
}

// Scraper implements the Scrape action: one GET, no retries, bounded output.
type Scraper struct {
	client   *http.Client
	maxChars int
}

// NewScraper creates a Scraper, filling zero config values with defaults.
func NewScraper(cfg ScraperConfig) *Scraper {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	client := &http.Client{}
	if cfg.Client != nil {
		c := *cfg.Client
		client = &c
	}
	client.Timeout = timeout
	return &Scraper{client: client, maxChars: maxChars}
}

// Register installs the Scrape handler on m.
func (s *Scraper) Register(m *Mux) {
	m.Handle(ActionScrape, s.Scrape)
}

// Scrape fetches rawURL and returns at most MaxChars characters of its text.
// Failures are reported as an "Error: ..." output rather than an error so the
// summarizer can describe them.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	text, err := s.fetch(ctx, rawURL)
	if err != nil {
		return ErrorOutput(err), nil
	}
	return text, nil
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", errors.New("missing hostname in URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	SetMeta(ctx, "status", strconv.Itoa(resp.StatusCode))
	SetMeta(ctx, "content_type", contentType)
	if !isTextual(contentType) {
		return "", fmt.Errorf("non-text response: %s", contentType)
	}

	// Read enough raw bytes for maxChars characters in any encoding.
	limited := io.LimitReader(resp.Body, int64(s.maxChars*utf8.UTFMax)+1)
	decoded, err := charset.NewReader(limited, contentType)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	body, err := io.ReadAll(decoded)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	text, truncated := truncateRunes(string(body), s.maxChars)
	SetMeta(ctx, "truncated", strconv.FormatBool(truncated))
	return text, nil
}

// ErrorOutput renders err as the textual marker forwarded to the summarizer.
func ErrorOutput(err error) string {
	return "Error: " + err.Error()
}

// isTextual accepts text/*, JSON, XML and JavaScript bodies. A missing
// content type is treated as text.
func isTextual(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mt, "text/"),
		mt == "application/json",
		mt == "application/xml",
		mt == "application/javascript",
		mt == "application/xhtml+xml",
		strings.HasSuffix(mt, "+json"),
		strings.HasSuffix(mt, "+xml"):
		return true
	}
	return false
}

func truncateRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}
