package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	feedUserAgent = "jetmonitor/1.0 (+https://github.com/DNABoe/jetmonitor)"
	feedTimeout   = 30 * time.Second
	maxFeedBytes  = 10 * 1024 * 1024
)

// feedPathSuffixes are URL fragments that indicate a URL already points at a
// feed rather than a site root.
var feedPathSuffixes = []string{"/feed", "/rss", "/atom", ".xml", ".rss", "format=rss", "format=xml"}

// FeedClient fetches and parses RSS/Atom feeds.
type FeedClient struct {
	httpClient *http.Client
	userAgent  string
}

// NewFeedClient creates a FeedClient with a bounded request timeout.
func NewFeedClient() *FeedClient {
	return &FeedClient{
		httpClient: &http.Client{Timeout: feedTimeout},
		userAgent:  feedUserAgent,
	}
}

// BuildFeedURL derives a feed URL from a source's base URL. URLs that already
// look like feeds are used as-is; otherwise the conventional /feed path is
// appended.
func BuildFeedURL(baseURL string) string {
	u := strings.TrimSpace(baseURL)
	lower := strings.ToLower(u)
	for _, suffix := range feedPathSuffixes {
		if strings.Contains(lower, suffix) {
			return u
		}
	}
	return strings.TrimRight(u, "/") + "/feed"
}

// FetchFeed retrieves a feed and parses it into candidates. It also returns
// the raw response payload so callers can archive it for post-mortem of parse
// failures. Entries missing a title or link are skipped, not fatal; an
// unparsable publish date defaults to the fetch time.
func (c *FeedClient) FetchFeed(ctx context.Context, feedURL string) ([]Candidate, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("feed: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("feed: fetch %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("feed: fetch %s: status %d", feedURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("feed: read body: %w", err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, raw, fmt.Errorf("feed: parse %s: %w", feedURL, err)
	}

	now := time.Now().UTC()
	candidates := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}

		// Prefer rich encoded content, fall back to description, then title.
		body := item.Content
		if strings.TrimSpace(body) == "" {
			body = item.Description
		}
		if strings.TrimSpace(body) == "" {
			body = title
		}

		c := Candidate{
			URL:   CanonicalizeURL(link),
			Title: title,
			Body:  CleanText(body),
		}
		switch {
		case item.PublishedParsed != nil:
			c.Published = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			c.Published = item.UpdatedParsed.UTC()
		default:
			c.Published = now
			c.PublishedEstimated = true
		}
		candidates = append(candidates, c)
	}

	return candidates, raw, nil
}
