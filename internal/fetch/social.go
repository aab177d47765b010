package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/DNABoe/jetmonitor/internal/config"
)

const (
	searchTimeout  = 10 * time.Second
	maxSearchBytes = 512 * 1024
)

// socialDomains are the platforms the social path queries, in fixed order.
var socialDomains = []struct {
	Domain   string
	Platform string
}{
	{"reddit.com", "reddit"},
	{"x.com", "x"},
	{"twitter.com", "x"},
}

var (
	reRedditPostID = regexp.MustCompile(`/comments/([a-z0-9]+)`)
	reStatusPostID = regexp.MustCompile(`/status(?:es)?/(\d+)`)
)

// SearchClient issues search-engine queries scoped to social domains and maps
// result pages to candidates.
type SearchClient struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

// NewSearchClient creates a SearchClient from configuration.
func NewSearchClient(cfg config.SearchConfig) *SearchClient {
	return &SearchClient{
		endpoint:   cfg.Endpoint,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: searchTimeout},
	}
}

// SocialPosts queries each social platform for the given term, restricted to
// a recent time window, and returns candidates tagged with a best-guess
// platform inferred from each result URL. The search engine does not return
// exact publish dates, so every candidate carries an estimated publish time.
func (c *SearchClient) SocialPosts(ctx context.Context, term string, recentDays, limit int) ([]Candidate, error) {
	var all []Candidate
	for _, sd := range socialDomains {
		if ctx.Err() != nil {
			break
		}
		query := fmt.Sprintf("site:%s %s", sd.Domain, term)
		results, err := c.search(ctx, query, recentDays)
		if err != nil {
			return all, fmt.Errorf("social: %s: %w", sd.Domain, err)
		}
		for _, r := range results {
			if len(all) >= limit {
				return all, nil
			}
			all = append(all, r)
		}
	}
	return all, nil
}

// search performs one search-engine request and parses the result page.
func (c *SearchClient) search(ctx context.Context, query string, recentDays int) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("df", dateFilter(recentDays))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxSearchBytes)
	return parseResults(body)
}

// parseResults extracts result links and snippets from a DuckDuckGo Lite
// result page. The lite layout is table-based: result anchors carry the
// result-link class and snippets live in result-snippet cells.
func parseResults(r io.Reader) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("search: parse page: %w", err)
	}

	snippets := doc.Find("td.result-snippet").Map(func(_ int, s *goquery.Selection) string {
		return strings.TrimSpace(s.Text())
	})

	now := time.Now().UTC()
	var candidates []Candidate
	doc.Find("a.result-link").Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		link := unwrapRedirect(strings.TrimSpace(href))
		title := strings.TrimSpace(s.Text())
		if link == "" || title == "" {
			return
		}

		platform := inferPlatform(link)
		c := Candidate{
			URL:                CanonicalizeURL(link),
			Title:              title,
			Published:          now,
			PublishedEstimated: true,
			Platform:           platform,
			PostID:             extractPostID(platform, link),
		}
		if i < len(snippets) {
			c.Body = snippets[i]
		}
		if c.Body == "" {
			c.Body = title
		}
		candidates = append(candidates, c)
	})

	return candidates, nil
}

// unwrapRedirect decodes search-engine redirect URLs (uddg parameter) to the
// underlying target.
func unwrapRedirect(link string) string {
	if !strings.Contains(link, "duckduckgo.com/l/") {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return link
}

// inferPlatform guesses the platform from the result URL's domain.
func inferPlatform(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	switch {
	case strings.HasSuffix(host, "reddit.com"):
		return "reddit"
	case strings.HasSuffix(host, "x.com"), strings.HasSuffix(host, "twitter.com"):
		return "x"
	default:
		if i := strings.Index(host, "."); i > 0 {
			return host[:i]
		}
		return "unknown"
	}
}

// extractPostID derives the platform-native post identifier from a URL.
// When no native id is recognizable, the canonical URL hash stands in so the
// (platform, post_id) pair stays a usable dedup key.
func extractPostID(platform, rawURL string) string {
	switch platform {
	case "reddit":
		if m := reRedditPostID.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	case "x":
		if m := reStatusPostID.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return HashURL(rawURL)[:16]
}

// dateFilter maps a day count onto the search engine's df parameter.
func dateFilter(recentDays int) string {
	switch {
	case recentDays <= 1:
		return "d"
	case recentDays <= 7:
		return "w"
	default:
		return "m"
	}
}
