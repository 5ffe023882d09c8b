// Package robots reads robots.txt so batch runs can honour publisher crawl
// rules before downloading an article.
package robots

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Source tells where a rule set came from.
type Source int

const (
	SourceNetwork Source = iota
	SourceMemory
	SourceRevalidated
)

// Rules are the parsed groups of one robots.txt.
type Rules struct {
	Groups []Group
}

// Group is one run of User-agent lines and the directives that follow them.
type Group struct {
	Agents     []string
	Allow      []rule
	Disallow   []rule
	CrawlDelay *time.Duration
}

type rule struct {
	pattern string
	re      *regexp.Regexp
	weight  int
}

func newRule(pattern string) rule {
	anchored := strings.HasSuffix(pattern, "$")
	p := strings.TrimSuffix(pattern, "$")
	var b strings.Builder
	b.WriteString("^")
	for i, part := range strings.Split(p, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	if anchored {
		b.WriteString("$")
	}
	return rule{
		pattern: pattern,
		re:      regexp.MustCompile(b.String()),
		weight:  len(strings.ReplaceAll(p, "*", "")),
	}
}

// Checker answers whether an article URL may be fetched. Rule sets are kept
// in memory per host and revalidated with ETag or Last-Modified once they
// expire.
type Checker struct {
	HTTPClient *http.Client
	UserAgent  string
	// Expiry is how long a rule set is trusted. Zero means 30 minutes.
	Expiry time.Duration
	// MaxDelay caps an advertised Crawl-delay. Zero means 30 seconds.
	MaxDelay time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	slots   map[string]time.Time
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

type entry struct {
	rules   Rules
	etag    string
	lastMod string
	expires time.Time
}

// Allowed reports whether pageURL may be fetched by c.UserAgent. A missing
// robots.txt allows everything; a server error or timeout is returned so the
// caller can skip the page for now.
func (c *Checker) Allowed(ctx context.Context, pageURL string) (bool, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false, fmt.Errorf("parse url: %w", err)
	}
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	rules, _, err := c.Get(ctx, robotsURL)
	if err != nil {
		return false, err
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.IsAllowed(c.UserAgent, path), nil
}

// Wait blocks until pageURL's host may be contacted again under the
// Crawl-delay that applies to c.UserAgent. Each call reserves the next slot,
// so concurrent callers for one host are spaced out.
func (c *Checker) Wait(ctx context.Context, pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	rules, _, err := c.Get(ctx, robotsURL)
	if err != nil {
		return err
	}
	d := rules.CrawlDelayFor(c.UserAgent)
	if d == nil || *d <= 0 {
		return nil
	}
	delay := *d
	maxDelay := c.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	now := c.clock()
	c.mu.Lock()
	if c.slots == nil {
		c.slots = make(map[string]time.Time)
	}
	slot := c.slots[u.Host]
	if slot.Before(now) {
		slot = now
	}
	c.slots[u.Host] = slot.Add(delay)
	c.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}
	log.Debug().Str("host", u.Host).Dur("wait", wait).Msg("honouring crawl-delay")
	if c.sleep != nil {
		return c.sleep(ctx, wait)
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Get returns the rules at robotsURL.
func (c *Checker) Get(ctx context.Context, robotsURL string) (Rules, Source, error) {
	now := c.clock()
	c.mu.Lock()
	if c.entries == nil {
		c.entries = make(map[string]*entry)
	}
	prev := c.entries[robotsURL]
	c.mu.Unlock()
	if prev != nil && now.Before(prev.expires) {
		return prev.rules, SourceMemory, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("new request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if prev != nil {
		if prev.etag != "" {
			req.Header.Set("If-None-Match", prev.etag)
		}
		if prev.lastMod != "" {
			req.Header.Set("If-Modified-Since", prev.lastMod)
		}
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("robots.txt: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && prev != nil:
		c.store(robotsURL, &entry{rules: prev.rules, etag: prev.etag, lastMod: prev.lastMod})
		return prev.rules, SourceRevalidated, nil
	case resp.StatusCode >= 500:
		return Rules{}, SourceNetwork, fmt.Errorf("robots.txt: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		log.Debug().Str("url", robotsURL).Int("status", resp.StatusCode).Msg("no robots.txt; allowing all")
		c.store(robotsURL, &entry{})
		return Rules{}, SourceNetwork, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Rules{}, SourceNetwork, fmt.Errorf("robots.txt: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("read robots.txt: %w", err)
	}
	rules := Parse(string(data))
	c.store(robotsURL, &entry{
		rules:   rules,
		etag:    resp.Header.Get("ETag"),
		lastMod: resp.Header.Get("Last-Modified"),
	})
	return rules, SourceNetwork, nil
}

func (c *Checker) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Checker) store(key string, e *entry) {
	exp := c.Expiry
	if exp <= 0 {
		exp = 30 * time.Minute
	}
	e.expires = c.clock().Add(exp)
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Parse reads robots.txt text. Unknown directives are ignored.
func Parse(text string) Rules {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var groups []Group
	cur := Group{}
	hasDirectives := func() bool {
		return len(cur.Allow) > 0 || len(cur.Disallow) > 0 || cur.CrawlDelay != nil
	}
	flush := func() {
		if len(cur.Agents) > 0 || hasDirectives() {
			groups = append(groups, cur)
		}
		cur = Group{}
	}
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "user-agent", "useragent":
			if len(cur.Agents) > 0 && hasDirectives() {
				flush()
			}
			cur.Agents = append(cur.Agents, strings.ToLower(val))
		case "allow":
			if val != "" {
				cur.Allow = append(cur.Allow, newRule(val))
			}
		case "disallow":
			// An empty Disallow restricts nothing.
			if val != "" {
				cur.Disallow = append(cur.Disallow, newRule(val))
			}
		case "crawl-delay", "crawldelay":
			if d, err := time.ParseDuration(val + "s"); err == nil {
				cur.CrawlDelay = &d
			}
		}
	}
	flush()
	return Rules{Groups: groups}
}

// IsAllowed evaluates path (with optional query) for userAgent. The group
// whose agent token is the longest substring of userAgent applies, with "*"
// as the fallback. Inside it the longest matching pattern wins and Allow
// wins ties. No match means allowed.
func (r Rules) IsAllowed(userAgent, path string) bool {
	g := r.group(userAgent)
	if g == nil {
		return true
	}
	best, allowed := -1, true
	for _, d := range g.Disallow {
		if d.re.MatchString(path) && d.weight > best {
			best, allowed = d.weight, false
		}
	}
	for _, a := range g.Allow {
		if a.re.MatchString(path) && a.weight >= best {
			best, allowed = a.weight, true
		}
	}
	return allowed
}

// CrawlDelayFor returns the delay of the group applying to userAgent.
func (r Rules) CrawlDelayFor(userAgent string) *time.Duration {
	if g := r.group(userAgent); g != nil {
		return g.CrawlDelay
	}
	return nil
}

func (r Rules) group(userAgent string) *Group {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	idx, score := -1, -1
	for i, g := range r.Groups {
		for _, a := range g.Agents {
			s := -1
			switch {
			case a == "*":
				s = 0
			case a != "" && strings.Contains(ua, a):
				s = len(a)
			}
			if s > score {
				idx, score = i, s
			}
		}
	}
	if idx < 0 {
		return nil
	}
	return &r.Groups[idx]
}
