package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DNABoe/jetmonitor/internal/classifier"
	"github.com/DNABoe/jetmonitor/internal/fetch"
	"github.com/DNABoe/jetmonitor/internal/models"
)

// In-memory fakes implementing the orchestrator's consumer interfaces.

type fakeItems struct {
	mu         sync.Mutex
	byURL      map[string]*models.Item
	classified map[uuid.UUID]classifier.Result
	deleted    int64
}

func newFakeItems() *fakeItems {
	return &fakeItems{
		byURL:      make(map[string]*models.Item),
		classified: make(map[uuid.UUID]classifier.Result),
	}
}

func (f *fakeItems) ExistsByURL(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byURL[url]
	return ok, nil
}

func (f *fakeItems) CreateIfNew(_ context.Context, item *models.Item) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byURL[item.URL]; ok {
		return false, nil
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	f.byURL[item.URL] = item
	return true, nil
}

func (f *fakeItems) UpdateClassification(_ context.Context, id uuid.UUID, sentiment float64, tags []string, titleEN string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classified[id] = classifier.Result{Sentiment: sentiment, Tags: tags, TitleEN: titleEN}
	return nil
}

func (f *fakeItems) UpdateTranslation(_ context.Context, id uuid.UUID, titleEN string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.classified[id]
	if !ok || result.TitleEN != "" {
		return nil
	}
	result.TitleEN = titleEN
	f.classified[id] = result
	return nil
}

func (f *fakeItems) ListPending(_ context.Context, _ int) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []models.Item
	for _, it := range f.byURL {
		if _, ok := f.classified[it.ID]; !ok {
			pending = append(pending, *it)
		}
	}
	return pending, nil
}

func (f *fakeItems) ListMissingTranslation(_ context.Context, _ int) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var missing []models.Item
	for _, it := range f.byURL {
		if result, ok := f.classified[it.ID]; ok && result.TitleEN == "" {
			missing = append(missing, *it)
		}
	}
	return missing, nil
}

func (f *fakeItems) DeleteByCountry(_ context.Context, country string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for url, it := range f.byURL {
		if it.Country == country {
			delete(f.byURL, url)
			n++
		}
	}
	f.deleted += n
	return n, nil
}

func (f *fakeItems) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byURL)
}

type fakeSocial struct {
	mu     sync.Mutex
	byKey  map[string]*models.SocialPost
	tagged map[uuid.UUID][]string
}

func newFakeSocial() *fakeSocial {
	return &fakeSocial{
		byKey:  make(map[string]*models.SocialPost),
		tagged: make(map[uuid.UUID][]string),
	}
}

func socialKey(platform, postID string) string { return platform + "/" + postID }

func (f *fakeSocial) Exists(_ context.Context, platform, postID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byKey[socialKey(platform, postID)]
	return ok, nil
}

func (f *fakeSocial) CreateIfNew(_ context.Context, post *models.SocialPost) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := socialKey(post.Platform, post.PostID)
	if _, ok := f.byKey[key]; ok {
		return false, nil
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	f.byKey[key] = post
	return true, nil
}

func (f *fakeSocial) UpdateClassification(_ context.Context, id uuid.UUID, _ float64, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagged[id] = tags
	return nil
}

func (f *fakeSocial) ListPending(_ context.Context, _ int) ([]models.SocialPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []models.SocialPost
	for _, p := range f.byKey {
		if _, ok := f.tagged[p.ID]; !ok {
			pending = append(pending, *p)
		}
	}
	return pending, nil
}

func (f *fakeSocial) DeleteByCountry(_ context.Context, country string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for key, p := range f.byKey {
		if p.Country == country {
			delete(f.byKey, key)
			n++
		}
	}
	return n, nil
}

func (f *fakeSocial) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byKey)
}

type fakeSources struct{ list []models.Source }

func (f *fakeSources) ListEnabled(_ context.Context, _ string) ([]models.Source, error) {
	return f.list, nil
}

func (f *fakeSources) ListEnabledAll(_ context.Context) ([]models.Source, error) {
	return f.list, nil
}

type fakeBaselines struct{ current *models.Baseline }

func (f *fakeBaselines) Current(_ context.Context) (*models.Baseline, error) {
	return f.current, nil
}

type fakeSettings struct {
	competitors []string
	keywords    []string
}

func (f *fakeSettings) Competitors(_ context.Context) ([]string, error) {
	return f.competitors, nil
}

func (f *fakeSettings) Keywords(_ context.Context) ([]string, error) {
	return f.keywords, nil
}

type fakeFeeds struct {
	byURL map[string][]fetch.Candidate
	errs  map[string]error
}

func (f *fakeFeeds) FetchFeed(_ context.Context, feedURL string) ([]fetch.Candidate, []byte, error) {
	if err, ok := f.errs[feedURL]; ok {
		return nil, nil, err
	}
	return f.byURL[feedURL], []byte("<rss/>"), nil
}

type fakeSearch struct {
	mu         sync.Mutex
	candidates []fetch.Candidate
	err        error // returned alongside candidates, mimicking partial failure
	terms      []string
}

func (f *fakeSearch) SocialPosts(_ context.Context, term string, _, _ int) ([]fetch.Candidate, error) {
	f.mu.Lock()
	f.terms = append(f.terms, term)
	f.mu.Unlock()
	return f.candidates, f.err
}

func (f *fakeSearch) searchedTerms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.terms...)
}

type fakeClassifier struct {
	mu         sync.Mutex
	configured bool
	err        error
	calls      int
}

func (f *fakeClassifier) Configured() bool { return f.configured }

func (f *fakeClassifier) Classify(_ context.Context, _ string, trackedTags []string) (classifier.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return classifier.Neutral(), f.err
	}
	// Tag with the first tracked competitor, mimicking the subset contract.
	tags := []string{}
	if len(trackedTags) > 0 {
		tags = trackedTags[:1]
	}
	return classifier.Result{Sentiment: 0.5, Tags: tags, TitleEN: "Translated title"}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events int
}

func (f *fakeNotifier) ItemsChanged(_ context.Context, _ string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events++
	return nil
}

// Fixture helpers.

func testWindow() (time.Time, time.Time) {
	start, _ := time.Parse(time.RFC3339, "2024-01-01T00:00:00Z")
	end, _ := time.Parse(time.RFC3339, "2024-01-31T23:59:59Z")
	return start, end
}

func completedBaseline() *models.Baseline {
	start, end := testWindow()
	return &models.Baseline{ID: uuid.New(), StartDate: start, EndDate: end, Status: models.BaselineCompleted}
}

func feedCandidates(n int) []fetch.Candidate {
	start, _ := testWindow()
	out := make([]fetch.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fetch.Candidate{
			URL:       fmt.Sprintf("https://news.example/article-%d", i),
			Title:     fmt.Sprintf("Article %d", i),
			Body:      "Gripen remains the favorite.",
			Published: start.Add(time.Duration(i+1) * 24 * time.Hour),
		})
	}
	return out
}

type harness struct {
	orch      *Orchestrator
	items     *fakeItems
	social    *fakeSocial
	cls       *fakeClassifier
	notifier  *fakeNotifier
	baselines *fakeBaselines
	settings  *fakeSettings
	search    *fakeSearch
}

func newHarness(sources []models.Source, feeds *fakeFeeds, search *fakeSearch, competitors []string) *harness {
	h := &harness{
		items:     newFakeItems(),
		social:    newFakeSocial(),
		cls:       &fakeClassifier{configured: true},
		notifier:  &fakeNotifier{},
		baselines: &fakeBaselines{current: completedBaseline()},
		settings:  &fakeSettings{competitors: competitors},
	}
	if feeds == nil {
		feeds = &fakeFeeds{}
	}
	if search == nil {
		search = &fakeSearch{}
	}
	h.search = search
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.orch = New(
		&fakeSources{list: sources},
		h.items,
		h.social,
		h.baselines,
		h.settings,
		feeds,
		search,
		h.cls,
		h.notifier,
		logger,
		Options{},
	)
	return h
}

func newsSource(name, feedURL string) models.Source {
	return models.Source{ID: uuid.New(), Name: name, BaseURL: "https://news.example", FeedURL: feedURL, Type: "news", Country: "NL", Credibility: 4, Enabled: true}
}

func TestCollectStoresNewCandidates(t *testing.T) {
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": feedCandidates(4),
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, nil)

	summary, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SourcesProcessed)
	assert.Equal(t, 4, summary.ItemsFound)
	assert.Equal(t, 4, summary.ItemsStored)
	assert.Empty(t, summary.Errors())
	assert.Equal(t, 4, h.items.count())
	assert.Equal(t, 1, h.notifier.events, "one change event per run batch")
}

func TestCollectSecondRunStoresNothing(t *testing.T) {
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": feedCandidates(4),
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, nil)

	_, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.NoError(t, err)

	summary, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.ItemsFound, "candidates are still found upstream")
	assert.Equal(t, 0, summary.ItemsStored, "dedup rejects every previously stored URL")
	assert.Equal(t, 4, h.items.count())
}

func TestCollectNoBaselineFailsWithoutWrites(t *testing.T) {
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": feedCandidates(4),
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, nil)
	h.baselines.current = nil

	_, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.ErrorIs(t, err, ErrNoBaseline)
	assert.Equal(t, 0, h.items.count())
	assert.Equal(t, 0, h.notifier.events)
}

func TestCollectClassifierNotConfiguredFailsWithoutWrites(t *testing.T) {
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, nil, nil, nil)
	h.cls.configured = false

	_, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.ErrorIs(t, err, ErrClassifierNotConfigured)
	assert.Equal(t, 0, h.items.count())
}

func TestCollectClassifierFailureStoresNeutral(t *testing.T) {
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": feedCandidates(1),
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, []string{"Gripen"})
	h.cls.err = fmt.Errorf("%w: status 429", classifier.ErrQuota)

	summary, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL", Competitors: []string{"Gripen"}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ItemsStored, "degraded item counts as stored, not errored")
	assert.Empty(t, summary.Errors())

	require.Equal(t, 1, h.items.count())
	for _, it := range h.items.byURL {
		result, ok := h.items.classified[it.ID]
		require.True(t, ok, "item still gets a classification row")
		assert.Equal(t, 0.0, result.Sentiment)
		assert.Empty(t, result.Tags)
	}
}

func TestCollectTagsAreSubsetOfCompetitors(t *testing.T) {
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": feedCandidates(3),
	}}
	competitors := []string{"Gripen", "Rafale"}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, competitors)

	_, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL", Competitors: competitors})
	require.NoError(t, err)

	for _, result := range h.items.classified {
		for _, tag := range result.Tags {
			assert.Contains(t, competitors, tag)
		}
	}
}

func TestCollectSourceFailureDoesNotAbortRun(t *testing.T) {
	feeds := &fakeFeeds{
		byURL: map[string][]fetch.Candidate{
			"https://news.example/feed": feedCandidates(2),
		},
		errs: map[string]error{
			"https://down.example/feed": errors.New("connection refused"),
		},
	}
	h := newHarness([]models.Source{
		newsSource("Example News", "https://news.example/feed"),
		newsSource("Down News", "https://down.example/feed"),
	}, feeds, nil, nil)

	summary, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SourcesProcessed)
	assert.Equal(t, 2, summary.ItemsStored)
	require.Len(t, summary.Errors(), 1)
	assert.Contains(t, summary.Errors()[0], "Down News")
}

func TestCollectWindowFiltersDatedCandidates(t *testing.T) {
	start, end := testWindow()
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": {
			{URL: "https://news.example/in", Title: "In window", Published: start.Add(24 * time.Hour)},
			{URL: "https://news.example/out", Title: "Out of window", Published: end.Add(48 * time.Hour)},
			{URL: "https://news.example/estimated", Title: "Estimated", Published: end.Add(48 * time.Hour), PublishedEstimated: true},
		},
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, nil)

	summary, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ItemsStored, "dated candidate outside the window is skipped, estimated one passes")
	_, hasOut := h.items.byURL["https://news.example/out"]
	assert.False(t, hasOut)
}

func TestCollectSocialPath(t *testing.T) {
	search := &fakeSearch{candidates: []fetch.Candidate{
		{URL: "https://reddit.com/r/aviation/comments/1abcd9/x", Title: "Gripen thread", Body: "snippet", Platform: "reddit", PostID: "1abcd9", Published: time.Now(), PublishedEstimated: true},
		{URL: "https://x.com/user/status/17845", Title: "Gripen post", Platform: "x", PostID: "17845", Published: time.Now(), PublishedEstimated: true},
	}}
	h := newHarness(nil, nil, search, []string{"Gripen"})

	summary, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL", Competitors: []string{"Gripen"}})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ItemsStored)
	assert.Equal(t, 2, h.social.count())

	// Second run dedups on (platform, post_id).
	summary, err = h.orch.Collect(context.Background(), CollectRequest{Country: "NL", Competitors: []string{"Gripen"}})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ItemsStored)
	assert.Equal(t, 2, h.social.count())
}

func TestCollectSearchesKeywordTerms(t *testing.T) {
	h := newHarness(nil, nil, nil, []string{"Gripen"})
	h.settings.keywords = []string{"fighter jet procurement", "gripen"}

	_, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.NoError(t, err)

	// Keywords extend the search term set; a keyword that duplicates a
	// competitor is queried once.
	assert.ElementsMatch(t, []string{"Gripen", "fighter jet procurement"}, h.search.searchedTerms())
}

func TestCollectSocialPartialResultsSurviveSearchError(t *testing.T) {
	search := &fakeSearch{
		candidates: []fetch.Candidate{
			{URL: "https://reddit.com/r/aviation/comments/1abcd9/x", Title: "Gripen thread", Platform: "reddit", PostID: "1abcd9", Published: time.Now(), PublishedEstimated: true},
		},
		err: errors.New("x.com: status 503"),
	}
	h := newHarness(nil, nil, search, []string{"Gripen"})

	summary, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ItemsStored, "results gathered before the failing platform are kept")
	assert.Equal(t, 1, h.social.count())
	require.Len(t, summary.Errors(), 1)
	assert.Contains(t, summary.Errors()[0], "status 503")
}

func TestCollectSocialScheduledRun(t *testing.T) {
	search := &fakeSearch{candidates: []fetch.Candidate{
		{URL: "https://reddit.com/r/aviation/comments/1abcd9/x", Title: "Gripen thread", Platform: "reddit", PostID: "1abcd9", Published: time.Now(), PublishedEstimated: true},
		{URL: "https://x.com/user/status/17845", Title: "Gripen post", Platform: "x", PostID: "17845", Published: time.Now(), PublishedEstimated: true},
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, nil, search, []string{"Gripen"})

	summary, err := h.orch.CollectSocial(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ItemsStored)
	assert.Equal(t, 2, h.social.count())
	for _, p := range h.social.byKey {
		assert.Equal(t, "NL", p.Country, "posts carry the source country")
	}

	summary, err = h.orch.CollectSocial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ItemsStored)
}

func TestCollectSocialRequiresBaseline(t *testing.T) {
	search := &fakeSearch{candidates: []fetch.Candidate{
		{URL: "https://x.com/user/status/17845", Title: "Gripen post", Platform: "x", PostID: "17845", Published: time.Now(), PublishedEstimated: true},
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, nil, search, []string{"Gripen"})
	h.baselines.current = nil

	_, err := h.orch.CollectSocial(context.Background())
	require.ErrorIs(t, err, ErrNoBaseline)
	assert.Equal(t, 0, h.social.count())
}

func TestScrapeFeedsWithoutBaseline(t *testing.T) {
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": feedCandidates(3),
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, nil)
	h.baselines.current = nil

	summary, err := h.orch.ScrapeFeeds(context.Background())
	require.NoError(t, err, "feed scraping has no baseline precondition")
	assert.Equal(t, 3, summary.ItemsStored)
}

func TestScrapeFeedsUnconfiguredClassifierLeavesPending(t *testing.T) {
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": feedCandidates(2),
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, nil)
	h.cls.configured = false

	summary, err := h.orch.ScrapeFeeds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ItemsStored)
	assert.Equal(t, 0, h.cls.calls)
	assert.Empty(t, h.items.classified)
}

func TestProcessPending(t *testing.T) {
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": feedCandidates(3),
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, []string{"Gripen"})
	h.cls.configured = false

	_, err := h.orch.ScrapeFeeds(context.Background())
	require.NoError(t, err)

	h.cls.configured = true
	processed, err := h.orch.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, processed)
	assert.Len(t, h.items.classified, 3)

	processed, err = h.orch.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed, "nothing left pending")
}

func TestProcessPendingBackfillsMissingTranslations(t *testing.T) {
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": feedCandidates(2),
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, []string{"Gripen"})

	_, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.NoError(t, err)

	// Simulate items classified before translation existed: keep the
	// sentiment and tags, blank the English title.
	h.items.mu.Lock()
	var wantSentiments []float64
	for _, it := range h.items.byURL {
		result := h.items.classified[it.ID]
		result.TitleEN = ""
		h.items.classified[it.ID] = result
		wantSentiments = append(wantSentiments, result.Sentiment)
	}
	h.items.mu.Unlock()
	require.Len(t, wantSentiments, 2)

	processed, err := h.orch.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	for _, it := range h.items.byURL {
		result := h.items.classified[it.ID]
		assert.Equal(t, "Translated title", result.TitleEN)
		assert.Equal(t, 0.5, result.Sentiment, "backfill leaves sentiment intact")
	}

	processed, err = h.orch.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed, "backfill runs once per item")
}

func TestProcessPendingRequiresClassifier(t *testing.T) {
	h := newHarness(nil, nil, nil, nil)
	h.cls.configured = false

	_, err := h.orch.ProcessPending(context.Background())
	assert.ErrorIs(t, err, ErrClassifierNotConfigured)
}

func TestCleanAndRecollect(t *testing.T) {
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": feedCandidates(2),
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, nil)

	_, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.NoError(t, err)
	require.Equal(t, 2, h.items.count())

	summary, err := h.orch.CleanAndRecollect(context.Background(), CollectRequest{Country: "NL"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), h.items.deleted)
	assert.Equal(t, 2, summary.ItemsStored, "recollection stores the wiped content fresh")
	assert.Equal(t, 2, h.items.count())
}

func TestCleanAndRecollectChecksPreconditionsBeforeDelete(t *testing.T) {
	feeds := &fakeFeeds{byURL: map[string][]fetch.Candidate{
		"https://news.example/feed": feedCandidates(2),
	}}
	h := newHarness([]models.Source{newsSource("Example News", "https://news.example/feed")}, feeds, nil, nil)

	_, err := h.orch.Collect(context.Background(), CollectRequest{Country: "NL"})
	require.NoError(t, err)

	h.baselines.current = nil
	_, err = h.orch.CleanAndRecollect(context.Background(), CollectRequest{Country: "NL"})
	require.ErrorIs(t, err, ErrNoBaseline)
	assert.Equal(t, 2, h.items.count(), "data survives a failed precondition check")
	assert.Equal(t, int64(0), h.items.deleted)
}
