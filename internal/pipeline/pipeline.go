// Package pipeline drives the collection-and-enrichment run: resolve the
// tracking window, fan out fetch and dedup per source, classify new items,
// and report an aggregate run summary. Per-source failures are absorbed;
// precondition failures abort before any write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DNABoe/jetmonitor/internal/classifier"
	"github.com/DNABoe/jetmonitor/internal/fetch"
	"github.com/DNABoe/jetmonitor/internal/models"
	"github.com/DNABoe/jetmonitor/internal/notify"
)

const (
	// maxConcurrentSources bounds the per-source fan-out so repeated
	// classification calls stay under the service's rate limits.
	maxConcurrentSources = 3

	socialResultLimit = 20
	pendingBatchLimit = 50
)

// ItemStore is the item persistence surface the orchestrator needs.
type ItemStore interface {
	ExistsByURL(ctx context.Context, url string) (bool, error)
	CreateIfNew(ctx context.Context, item *models.Item) (bool, error)
	UpdateClassification(ctx context.Context, id uuid.UUID, sentiment float64, tags []string, titleEN string) error
	UpdateTranslation(ctx context.Context, id uuid.UUID, titleEN string) error
	ListPending(ctx context.Context, limit int) ([]models.Item, error)
	ListMissingTranslation(ctx context.Context, limit int) ([]models.Item, error)
	DeleteByCountry(ctx context.Context, country string) (int64, error)
}

// SocialStore is the social post persistence surface.
type SocialStore interface {
	Exists(ctx context.Context, platform, postID string) (bool, error)
	CreateIfNew(ctx context.Context, post *models.SocialPost) (bool, error)
	UpdateClassification(ctx context.Context, id uuid.UUID, sentiment float64, tags []string) error
	ListPending(ctx context.Context, limit int) ([]models.SocialPost, error)
	DeleteByCountry(ctx context.Context, country string) (int64, error)
}

// SourceStore resolves the enabled outlet list.
type SourceStore interface {
	ListEnabled(ctx context.Context, country string) ([]models.Source, error)
	ListEnabledAll(ctx context.Context) ([]models.Source, error)
}

// BaselineStore resolves the current tracking window.
type BaselineStore interface {
	Current(ctx context.Context) (*models.Baseline, error)
}

// SettingsStore resolves tracked competitors and search keywords.
type SettingsStore interface {
	Competitors(ctx context.Context) ([]string, error)
	Keywords(ctx context.Context) ([]string, error)
}

// Classifier is the external sentiment/tag service contract.
type Classifier interface {
	Classify(ctx context.Context, text string, trackedTags []string) (classifier.Result, error)
	Configured() bool
}

// FeedFetcher retrieves and parses one feed. The raw payload is returned for
// archival even when parsing fails.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, feedURL string) ([]fetch.Candidate, []byte, error)
}

// SocialFetcher retrieves social posts for one search term.
type SocialFetcher interface {
	SocialPosts(ctx context.Context, term string, recentDays, limit int) ([]fetch.Candidate, error)
}

// PageFetcher backfills an article body from its page when the feed entry
// carries none. Optional.
type PageFetcher interface {
	ScrapeBody(ctx context.Context, pageURL string) (string, error)
}

// Archiver stores raw fetch payloads for later re-examination. Optional.
type Archiver interface {
	StoreSnapshot(ctx context.Context, sourceID uuid.UUID, fetchedAt time.Time, payload []byte) error
	Configured() bool
}

// Orchestrator wires the collection run end to end.
type Orchestrator struct {
	sources    SourceStore
	items      ItemStore
	social     SocialStore
	baselines  BaselineStore
	settings   SettingsStore
	feeds      FeedFetcher
	search     SocialFetcher
	pages      PageFetcher
	classifier Classifier
	notifier   notify.Notifier
	archive    Archiver
	logger     *slog.Logger
}

// Options carries the optional collaborators.
type Options struct {
	Pages   PageFetcher
	Archive Archiver
}

// New creates an Orchestrator.
func New(
	sources SourceStore,
	items ItemStore,
	social SocialStore,
	baselines BaselineStore,
	settings SettingsStore,
	feeds FeedFetcher,
	search SocialFetcher,
	cls Classifier,
	notifier notify.Notifier,
	logger *slog.Logger,
	opts Options,
) *Orchestrator {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Orchestrator{
		sources:    sources,
		items:      items,
		social:     social,
		baselines:  baselines,
		settings:   settings,
		feeds:      feeds,
		search:     search,
		pages:      opts.Pages,
		classifier: cls,
		notifier:   notifier,
		archive:    opts.Archive,
		logger:     logger,
	}
}

// CollectRequest parameterizes one collection run. Zero dates fall back to
// the current baseline window; an empty competitor list falls back to the
// globally tracked set.
type CollectRequest struct {
	Country     string
	Competitors []string
	StartDate   time.Time
	EndDate     time.Time
}

// window bounds what counts as in scope. nil means unbounded.
type window struct {
	start time.Time
	end   time.Time
}

func (w *window) contains(c fetch.Candidate) bool {
	if w == nil || c.PublishedEstimated {
		return true
	}
	return !c.Published.Before(w.start) && !c.Published.After(w.end)
}

// Collect runs the full pipeline for one country: every enabled source plus
// a social search per term, where the terms are the tracked competitors and
// the configured search keywords. It fails before any write if the classifier
// is unconfigured or no completed baseline exists.
func (o *Orchestrator) Collect(ctx context.Context, req CollectRequest) (*RunSummary, error) {
	win, competitors, err := o.resolveRun(ctx, req)
	if err != nil {
		return nil, err
	}
	terms, err := o.resolveSearchTerms(ctx, competitors)
	if err != nil {
		return nil, err
	}

	sources, err := o.sources.ListEnabled(ctx, req.Country)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve sources: %w", err)
	}

	summary := &RunSummary{Results: []SourceResult{}}
	var mu sync.Mutex
	var wg sync.WaitGroup
	var estimatedWarn sync.Once
	sem := make(chan struct{}, maxConcurrentSources)

	for _, src := range sources {
		wg.Add(1)
		sem <- struct{}{}
		go func(src models.Source) {
			defer wg.Done()
			defer func() { <-sem }()
			result := o.collectSource(ctx, src, win, competitors, req.Country, true)
			mu.Lock()
			summary.add(result)
			mu.Unlock()
		}(src)
	}

	recentDays := int(time.Since(win.start).Hours()/24) + 1
	for _, term := range terms {
		wg.Add(1)
		sem <- struct{}{}
		go func(term string) {
			defer wg.Done()
			defer func() { <-sem }()
			result := o.collectSocial(ctx, term, recentDays, competitors, req.Country, &estimatedWarn)
			mu.Lock()
			summary.add(result)
			mu.Unlock()
		}(term)
	}

	wg.Wait()

	o.logger.Info("collection run finished",
		"country", req.Country,
		"sources", summary.SourcesProcessed,
		"found", summary.ItemsFound,
		"stored", summary.ItemsStored,
		"errors", len(summary.Errors()),
	)

	if summary.ItemsStored > 0 {
		if err := o.notifier.ItemsChanged(ctx, req.Country, summary.ItemsStored); err != nil {
			o.logger.Warn("change notification failed", "error", err)
		}
	}
	return summary, nil
}

// resolveRun checks run preconditions and resolves the window and competitor
// set. No writes happen before this returns.
func (o *Orchestrator) resolveRun(ctx context.Context, req CollectRequest) (*window, []string, error) {
	if !o.classifier.Configured() {
		return nil, nil, ErrClassifierNotConfigured
	}

	baseline, err := o.baselines.Current(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: resolve baseline: %w", err)
	}
	if baseline == nil {
		return nil, nil, ErrNoBaseline
	}

	win := &window{start: baseline.StartDate, end: baseline.EndDate}
	if !req.StartDate.IsZero() {
		win.start = req.StartDate
	}
	if !req.EndDate.IsZero() {
		win.end = req.EndDate
	}

	competitors := req.Competitors
	if len(competitors) == 0 {
		competitors, err = o.settings.Competitors(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: resolve competitors: %w", err)
		}
	}
	return win, competitors, nil
}

// resolveSearchTerms merges the competitor set with the configured search
// keywords into the deduplicated term list the social path queries. Tags on
// stored posts still come from the competitor set alone.
func (o *Orchestrator) resolveSearchTerms(ctx context.Context, competitors []string) ([]string, error) {
	keywords, err := o.settings.Keywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve keywords: %w", err)
	}

	terms := make([]string, 0, len(competitors)+len(keywords))
	seen := make(map[string]bool, len(competitors)+len(keywords))
	for _, t := range competitors {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, t)
	}
	for _, t := range keywords {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, t)
	}
	return terms, nil
}

// CollectSocial runs only the social search path, once per country that has
// enabled sources. The worker drives this on a schedule; it shares Collect's
// preconditions, so without a completed baseline or classifier credentials
// the run is refused before any write.
func (o *Orchestrator) CollectSocial(ctx context.Context) (*RunSummary, error) {
	win, competitors, err := o.resolveRun(ctx, CollectRequest{})
	if err != nil {
		return nil, err
	}
	terms, err := o.resolveSearchTerms(ctx, competitors)
	if err != nil {
		return nil, err
	}

	sources, err := o.sources.ListEnabledAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve sources: %w", err)
	}
	var countries []string
	seen := make(map[string]bool)
	for _, src := range sources {
		if src.Country == "" || seen[src.Country] {
			continue
		}
		seen[src.Country] = true
		countries = append(countries, src.Country)
	}

	summary := &RunSummary{Results: []SourceResult{}}
	var mu sync.Mutex
	var wg sync.WaitGroup
	var estimatedWarn sync.Once
	sem := make(chan struct{}, maxConcurrentSources)
	recentDays := int(time.Since(win.start).Hours()/24) + 1

	for _, country := range countries {
		for _, term := range terms {
			wg.Add(1)
			sem <- struct{}{}
			go func(country, term string) {
				defer wg.Done()
				defer func() { <-sem }()
				result := o.collectSocial(ctx, term, recentDays, competitors, country, &estimatedWarn)
				mu.Lock()
				summary.add(result)
				mu.Unlock()
			}(country, term)
		}
	}
	wg.Wait()

	o.logger.Info("social collection finished",
		"countries", len(countries),
		"terms", len(terms),
		"found", summary.ItemsFound,
		"stored", summary.ItemsStored,
	)

	if summary.ItemsStored > 0 {
		if err := o.notifier.ItemsChanged(ctx, "", summary.ItemsStored); err != nil {
			o.logger.Warn("change notification failed", "error", err)
		}
	}
	return summary, nil
}

// ScrapeFeeds fetches every enabled source across all countries with no
// window bound. Items are classified inline when the classifier is
// configured, otherwise left pending for a later ProcessPending pass.
func (o *Orchestrator) ScrapeFeeds(ctx context.Context) (*RunSummary, error) {
	sources, err := o.sources.ListEnabledAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve sources: %w", err)
	}

	competitors, err := o.settings.Competitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve competitors: %w", err)
	}
	classify := o.classifier.Configured()
	if !classify {
		o.logger.Warn("classifier not configured, storing items unclassified")
	}

	summary := &RunSummary{Results: []SourceResult{}}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentSources)

	for _, src := range sources {
		wg.Add(1)
		sem <- struct{}{}
		go func(src models.Source) {
			defer wg.Done()
			defer func() { <-sem }()
			result := o.collectSource(ctx, src, nil, competitors, src.Country, classify)
			mu.Lock()
			summary.add(result)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	o.logger.Info("feed scrape finished",
		"sources", summary.SourcesProcessed,
		"found", summary.ItemsFound,
		"stored", summary.ItemsStored,
	)

	if summary.ItemsStored > 0 {
		if err := o.notifier.ItemsChanged(ctx, "", summary.ItemsStored); err != nil {
			o.logger.Warn("change notification failed", "error", err)
		}
	}
	return summary, nil
}

// ProcessPending classifies stored items and posts that still lack a
// sentiment score. Returns the number processed.
func (o *Orchestrator) ProcessPending(ctx context.Context) (int, error) {
	if !o.classifier.Configured() {
		return 0, ErrClassifierNotConfigured
	}

	competitors, err := o.settings.Competitors(ctx)
	if err != nil {
		return 0, fmt.Errorf("pipeline: resolve competitors: %w", err)
	}

	processed := 0

	items, err := o.items.ListPending(ctx, pendingBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("pipeline: list pending items: %w", err)
	}
	for _, it := range items {
		result := o.classify(ctx, it.Title+"\n\n"+it.Body, competitors)
		if err := o.items.UpdateClassification(ctx, it.ID, result.Sentiment, result.Tags, result.TitleEN); err != nil {
			o.logger.Error("update classification failed", "item", it.ID, "error", err)
			continue
		}
		processed++
	}

	posts, err := o.social.ListPending(ctx, pendingBatchLimit)
	if err != nil {
		return processed, fmt.Errorf("pipeline: list pending posts: %w", err)
	}
	for _, p := range posts {
		result := o.classify(ctx, p.Title+"\n\n"+p.Body, competitors)
		if err := o.social.UpdateClassification(ctx, p.ID, result.Sentiment, result.Tags); err != nil {
			o.logger.Error("update classification failed", "post", p.ID, "error", err)
			continue
		}
		processed++
	}

	// Backfill English titles for items classified before translation was
	// part of the classifier response.
	untranslated, err := o.items.ListMissingTranslation(ctx, pendingBatchLimit)
	if err != nil {
		return processed, fmt.Errorf("pipeline: list missing translations: %w", err)
	}
	for _, it := range untranslated {
		result := o.classify(ctx, it.Title+"\n\n"+it.Body, competitors)
		if result.TitleEN == "" {
			continue
		}
		if err := o.items.UpdateTranslation(ctx, it.ID, result.TitleEN); err != nil {
			o.logger.Error("update translation failed", "item", it.ID, "error", err)
			continue
		}
		processed++
	}

	if processed > 0 {
		if err := o.notifier.ItemsChanged(ctx, "", processed); err != nil {
			o.logger.Warn("change notification failed", "error", err)
		}
	}
	return processed, nil
}

// CleanAndRecollect deletes all stored items and social posts for the
// request's country, then runs a fresh collection. Preconditions are checked
// before the delete so a misconfigured run leaves the data untouched.
func (o *Orchestrator) CleanAndRecollect(ctx context.Context, req CollectRequest) (*RunSummary, error) {
	if _, _, err := o.resolveRun(ctx, req); err != nil {
		return nil, err
	}

	deletedItems, err := o.items.DeleteByCountry(ctx, req.Country)
	if err != nil {
		return nil, fmt.Errorf("pipeline: delete items: %w", err)
	}
	deletedPosts, err := o.social.DeleteByCountry(ctx, req.Country)
	if err != nil {
		return nil, fmt.Errorf("pipeline: delete social posts: %w", err)
	}
	o.logger.Info("cleared collected data",
		"country", req.Country,
		"items", deletedItems,
		"posts", deletedPosts,
	)

	return o.Collect(ctx, req)
}

// collectSource fetches one feed source and stores its new candidates.
// Failures are absorbed into the returned result.
func (o *Orchestrator) collectSource(ctx context.Context, src models.Source, win *window, competitors []string, country string, classify bool) SourceResult {
	result := SourceResult{Source: src.Name}

	feedURL := src.FeedURL
	if feedURL == "" {
		feedURL = fetch.BuildFeedURL(src.BaseURL)
	}

	candidates, raw, err := o.feeds.FetchFeed(ctx, feedURL)
	if o.archive != nil && o.archive.Configured() && len(raw) > 0 {
		if archErr := o.archive.StoreSnapshot(ctx, src.ID, time.Now().UTC(), raw); archErr != nil {
			o.logger.Warn("snapshot archive failed", "source", src.Name, "error", archErr)
		}
	}
	if err != nil {
		o.logger.Warn("source fetch failed", "source", src.Name, "error", err)
		result.Error = err.Error()
		return result
	}

	for _, cand := range candidates {
		if !win.contains(cand) {
			continue
		}
		result.Found++

		exists, err := o.items.ExistsByURL(ctx, cand.URL)
		if err != nil {
			o.logger.Error("dedup check failed", "url", cand.URL, "error", err)
			continue
		}
		if exists {
			continue
		}

		body := cand.Body
		if o.pages != nil && (body == "" || body == cand.Title) {
			if scraped, err := o.pages.ScrapeBody(ctx, cand.URL); err == nil && scraped != "" {
				body = scraped
			}
		}

		published := cand.Published
		item := &models.Item{
			SourceID:    &src.ID,
			URL:         cand.URL,
			Title:       cand.Title,
			Body:        body,
			PublishedAt: &published,
			Country:     country,
		}
		inserted, err := o.items.CreateIfNew(ctx, item)
		if err != nil {
			o.logger.Error("item store failed", "url", cand.URL, "error", err)
			continue
		}
		if !inserted {
			continue
		}
		result.Stored++

		if classify {
			cls := o.classify(ctx, cand.Title+"\n\n"+body, competitors)
			if err := o.items.UpdateClassification(ctx, item.ID, cls.Sentiment, cls.Tags, cls.TitleEN); err != nil {
				o.logger.Error("update classification failed", "item", item.ID, "error", err)
			}
		}
	}
	return result
}

// collectSocial searches social platforms for one competitor term and stores
// new posts.
func (o *Orchestrator) collectSocial(ctx context.Context, term string, recentDays int, competitors []string, country string, estimatedWarn *sync.Once) SourceResult {
	result := SourceResult{Source: "social:" + term}

	candidates, err := o.search.SocialPosts(ctx, term, recentDays, socialResultLimit)
	if err != nil {
		// Results from platforms that answered before the failure are
		// still processed below.
		o.logger.Warn("social search failed", "term", term, "error", err)
		result.Error = err.Error()
	}

	for _, cand := range candidates {
		result.Found++

		if cand.PublishedEstimated {
			estimatedWarn.Do(func() {
				o.logger.Warn("social results carry estimated publish times, time-series accuracy degraded")
			})
		}

		exists, err := o.social.Exists(ctx, cand.Platform, cand.PostID)
		if err != nil {
			o.logger.Error("dedup check failed", "platform", cand.Platform, "post", cand.PostID, "error", err)
			continue
		}
		if exists {
			continue
		}

		post := &models.SocialPost{
			Platform:           cand.Platform,
			PostID:             cand.PostID,
			URL:                cand.URL,
			Title:              cand.Title,
			Body:               cand.Body,
			PublishedAt:        cand.Published,
			PublishedEstimated: cand.PublishedEstimated,
			Country:            country,
		}
		inserted, err := o.social.CreateIfNew(ctx, post)
		if err != nil {
			o.logger.Error("social post store failed", "url", cand.URL, "error", err)
			continue
		}
		if !inserted {
			continue
		}
		result.Stored++

		cls := o.classify(ctx, cand.Title+"\n\n"+cand.Body, competitors)
		if err := o.social.UpdateClassification(ctx, post.ID, cls.Sentiment, cls.Tags); err != nil {
			o.logger.Error("update classification failed", "post", post.ID, "error", err)
		}
	}
	return result
}

// classify wraps the external call with the degradation policy: any failure
// resolves to neutral defaults so classification never blocks storage. Quota
// exhaustion is logged distinctly.
func (o *Orchestrator) classify(ctx context.Context, text string, competitors []string) classifier.Result {
	result, err := o.classifier.Classify(ctx, text, competitors)
	if err != nil {
		if errors.Is(err, classifier.ErrQuota) {
			o.logger.Warn("classifier quota exhausted, storing neutral defaults", "error", err)
		} else {
			o.logger.Warn("classification failed, storing neutral defaults", "error", err)
		}
		return classifier.Neutral()
	}
	return result
}
