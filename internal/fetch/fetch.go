// Package fetch downloads article pages over HTTP(S) with browser-like
// headers, a per-request timeout, bounded retry and an optional on-disk cache.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/speakloud/internal/cache"
	"github.com/hyperifyio/speakloud/internal/retry"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 15 * time.Second

// MaxBodyBytes caps how much of a response body is read.
const MaxBodyBytes = 32 << 20

var (
	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	// ErrUnsupportedContent is returned when the response is neither HTML nor PDF.
	ErrUnsupportedContent = errors.New("unsupported content type")
	// ErrDisallowed is returned when robots.txt forbids the page.
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// RobotsChecker decides whether a URL may be fetched and paces requests to
// its host.
type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) (bool, error)
	Wait(ctx context.Context, rawURL string) error
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// Page is a downloaded document.
type Page struct {
	URL         string
	FinalURL    string
	ContentType string
	Body        []byte
	FromCache   bool
}

// IsPDF reports whether the page is a PDF document.
func (p *Page) IsPDF() bool {
	ct := strings.ToLower(p.ContentType)
	if strings.HasPrefix(ct, "application/pdf") {
		return true
	}
	return bytes.HasPrefix(p.Body, []byte("%PDF-"))
}

// UTF8 returns the body decoded to UTF-8 using the declared or sniffed charset.
func (p *Page) UTF8() (string, error) {
	r, err := charset.NewReader(bytes.NewReader(p.Body), p.ContentType)
	if err != nil {
		return "", fmt.Errorf("charset: %w", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(b), nil
}

// BrowserHeaders is the header set sent with every request. Some publishers
// answer 403 to anything that does not look like a desktop browser.
func BrowserHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	h.Set("Referer", "https://www.google.com/")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.8,*/*;q=0.7")
	return h
}

// Client wraps http.Client with timeouts, retry and caching.
type Client struct {
	HTTPClient *http.Client
	// Headers replaces BrowserHeaders when set.
	Headers http.Header
	// Retry governs transient failures. The zero value is the default policy.
	Retry retry.Policy
	// PerRequestTimeout bounds each attempt. Zero means DefaultTimeout.
	PerRequestTimeout time.Duration
	// Cache enables conditional revalidation of previously fetched pages.
	Cache *cache.PageCache
	// BypassCache skips revalidation but still stores fresh responses.
	BypassCache bool
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
	// MaxConcurrent limits in-flight requests. Zero means unlimited.
	MaxConcurrent int
	// Robots, when set, is consulted before every network request.
	Robots RobotsChecker

	limiter     chan struct{}
	limiterOnce sync.Once
}

// New returns a client with the default timeout and retry policy.
func New(pc *cache.PageCache) *Client {
	return &Client{Cache: pc, Retry: retry.Default(), PerRequestTimeout: DefaultTimeout}
}

type attempt struct {
	page    *Page
	etag    string
	lastMod string
	status  int
}

// Get fetches rawURL. Transient failures are retried per c.Retry; client
// errors, bad schemes and unsupported content fail immediately.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if c.Robots != nil {
		ok, err := c.Robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("check robots.txt: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
	}

	var cached *cache.PageEntry
	var cachedBody []byte
	if c.Cache != nil && !c.BypassCache {
		if e, b, ok, err := c.Cache.Lookup(ctx, rawURL); err == nil && ok {
			cached, cachedBody = e, b
		}
	}

	res, err := retry.Value(ctx, c.Retry, "fetch "+rawURL, func(ctx context.Context, _ int) (attempt, error) {
		a, err := c.tryOnce(ctx, rawURL, cached)
		if err != nil && !isTransient(err) {
			return a, retry.Permanent(err)
		}
		return a, err
	})
	if err != nil {
		return nil, err
	}

	if res.status == http.StatusNotModified && cached != nil {
		log.Debug().Str("url", rawURL).Msg("page not modified; serving cache")
		return &Page{URL: rawURL, FinalURL: cached.FinalURL, ContentType: cached.ContentType, Body: cachedBody, FromCache: true}, nil
	}
	if c.Cache != nil {
		entry := cache.PageEntry{URL: rawURL, FinalURL: res.page.FinalURL, ContentType: res.page.ContentType, ETag: res.etag, LastModified: res.lastMod}
		if err := c.Cache.Save(ctx, entry, res.page.Body); err != nil {
			log.Debug().Err(err).Str("url", rawURL).Msg("page cache save failed")
		}
	}
	return res.page, nil
}

func (c *Client) tryOnce(ctx context.Context, rawURL string, cached *cache.PageEntry) (attempt, error) {
	if c.Robots != nil {
		if err := c.Robots.Wait(ctx, rawURL); err != nil {
			return attempt{}, fmt.Errorf("crawl delay: %w", err)
		}
	}
	c.acquire()
	defer c.release()

	timeout := c.PerRequestTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return attempt{}, fmt.Errorf("new request: %w", err)
	}
	headers := c.Headers
	if headers == nil {
		headers = BrowserHeaders()
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if cached != nil {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return attempt{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return attempt{status: resp.StatusCode}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return attempt{status: resp.StatusCode}, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	ct := resp.Header.Get("Content-Type")
	if !isAllowedContentType(ct) {
		return attempt{status: resp.StatusCode}, fmt.Errorf("%w: %s", ErrUnsupportedContent, ct)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return attempt{status: resp.StatusCode}, fmt.Errorf("read body: %w", err)
	}
	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return attempt{
		page:    &Page{URL: rawURL, FinalURL: final, ContentType: ct, Body: body},
		etag:    resp.Header.Get("ETag"),
		lastMod: resp.Header.Get("Last-Modified"),
		status:  resp.StatusCode,
	}, nil
}

func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	if errors.Is(err, ErrUnsupportedContent) || errors.Is(err, errTooManyRedirects) || errors.Is(err, errRedirectScheme) {
		return false
	}
	// Network failures, timeouts and truncated bodies.
	return true
}

var (
	errTooManyRedirects = errors.New("too many redirects")
	errRedirectScheme   = errors.New("redirect to unsupported scheme")
)

func (c *Client) httpClient() *http.Client {
	base := http.Client{}
	if c.HTTPClient != nil {
		base = *c.HTTPClient
	}
	base.CheckRedirect = c.checkRedirect
	return &base
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	if len(via) >= max {
		return errTooManyRedirects
	}
	if !isHTTPScheme(req.URL) {
		return errRedirectScheme
	}
	return nil
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

func isAllowedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return true
	}
	return strings.HasPrefix(ct, "text/html") ||
		strings.HasPrefix(ct, "application/xhtml+xml") ||
		strings.HasPrefix(ct, "application/pdf") ||
		strings.HasPrefix(ct, "text/plain")
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}
