// Package clipper fetches recipe pages from allowlisted sites and reduces
// them to plain text for the model.
package clipper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 2 << 20
	DefaultMaxChars = 15000
	maxRedirects    = 5
	userAgent       = "foodplanner-recipe-clipper/1.0"
)

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid URL: only http and https are supported")
	// ErrDomainNotAllowed is returned for hosts outside the allowlist.
	ErrDomainNotAllowed = errors.New("domain not allowed")
	// ErrFetch wraps failures to download the page.
	ErrFetch = errors.New("failed to fetch URL")
)

// Clipper handles fetching and cleaning recipe pages.
type Clipper struct {
	allowed    []string
	httpClient *http.Client
	maxBytes   int64
	maxChars   int
}

// Option configures a Clipper.
type Option func(*Clipper)

// WithHTTPClient replaces the HTTP client. Its redirect policy is overwritten.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Clipper) { cl.httpClient = c }
}

// WithLimits sets the maximum body size read and the maximum text length returned.
func WithLimits(maxBytes int64, maxChars int) Option {
	return func(cl *Clipper) {
		cl.maxBytes = maxBytes
		cl.maxChars = maxChars
	}
}

// NewClipper creates a Clipper that only fetches pages on the given domains
// and their subdomains.
func NewClipper(allowedDomains []string, opts ...Option) *Clipper {
	c := &Clipper{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxBytes:   DefaultMaxBytes,
		maxChars:   DefaultMaxChars,
	}
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if d != "" {
			c.allowed = append(c.allowed, d)
		}
	}
	for _, opt := range opts {
		opt(c)
	}

	client := *c.httpClient
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return c.Check(req.URL)
	}
	c.httpClient = &client
	return c
}

// Allowed reports whether host is an allowlisted domain or one of its subdomains.
func (c *Clipper) Allowed(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range c.allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Check validates the scheme and host of u.
func (c *Clipper) Check(u *url.URL) error {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return ErrInvalidURL
	}
	if !c.Allowed(u.Hostname()) {
		return fmt.Errorf("%w: %s", ErrDomainNotAllowed, u.Hostname())
	}
	return nil
}

// FetchText downloads rawURL and returns the visible body text with scripts,
// styles and page chrome removed, whitespace collapsed and the length capped.
func (c *Clipper) FetchText(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", ErrInvalidURL
	}
	if err := c.Check(u); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Redirects to a disallowed host surface here.
		if errors.Is(err, ErrDomainNotAllowed) || errors.Is(err, ErrInvalidURL) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	text, err := cleanHTML(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return truncate(text, c.maxChars), nil
}

func cleanHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	// Remove noise to save LLM tokens
	doc.Find("script, style, noscript, nav, footer, iframe, svg, form, .ads, #ads").Remove()

	return strings.Join(strings.Fields(doc.Find("body").Text()), " "), nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := 0
	for i := range s {
		if runes == n {
			return s[:i]
		}
		runes++
	}
	return s
}
