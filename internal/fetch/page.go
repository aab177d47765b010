package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

const maxScrapedBody = 16 * 1024

// PageScraper fetches article pages to backfill bodies that a feed delivered
// empty or truncated. It wraps a Colly collector with respectful rate
// limiting.
type PageScraper struct {
	userAgent string
}

// NewPageScraper creates a PageScraper.
func NewPageScraper() *PageScraper {
	return &PageScraper{userAgent: feedUserAgent}
}

// newCollector creates a fresh Colly collector with standard settings and rate
// limiting. Each scrape call gets its own collector to avoid state leakage.
func (s *PageScraper) newCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
	)

	// Rate limit: 1 request per second per domain, 2 parallel requests.
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       1 * time.Second,
		RandomDelay: 500 * time.Millisecond,
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	})

	return c
}

// ScrapeBody fetches an article page and extracts its paragraph text. It
// prefers paragraphs inside article/main containers and falls back to all
// paragraphs on the page.
func (s *PageScraper) ScrapeBody(ctx context.Context, pageURL string) (string, error) {
	c := s.newCollector()

	var (
		mu        sync.Mutex
		articleSB strings.Builder
		pageSB    strings.Builder
		scrErr    error
	)

	appendPara := func(sb *strings.Builder, text string) {
		text = strings.TrimSpace(text)
		if text == "" || sb.Len() >= maxScrapedBody {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}

	c.OnHTML("article p, main p", func(e *colly.HTMLElement) {
		mu.Lock()
		appendPara(&articleSB, e.Text)
		mu.Unlock()
	})
	c.OnHTML("p", func(e *colly.HTMLElement) {
		mu.Lock()
		appendPara(&pageSB, e.Text)
		mu.Unlock()
	})

	c.OnError(func(_ *colly.Response, err error) {
		mu.Lock()
		scrErr = fmt.Errorf("page: fetch %s: %w", pageURL, err)
		mu.Unlock()
	})

	// Respect context cancellation.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Visit(pageURL); err != nil {
			mu.Lock()
			if scrErr == nil {
				scrErr = fmt.Errorf("page: visit %s: %w", pageURL, err)
			}
			mu.Unlock()
		}
		c.Wait()
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-done:
	}

	if scrErr != nil {
		return "", scrErr
	}

	body := articleSB.String()
	if body == "" {
		body = pageSB.String()
	}

	slog.Debug("scraped page body", "url", pageURL, "body_len", len(body))

	return body, nil
}
