package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Item represents one collected article, enriched with sentiment and
// competitor tags after classification. A NULL sentiment marks an item still
// awaiting classification.
type Item struct {
	ID          uuid.UUID  `json:"id"`
	SourceID    *uuid.UUID `json:"source_id,omitempty"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	TitleEN     string     `json:"title_en,omitempty"`
	Body        string     `json:"body,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
	Sentiment   *float64   `json:"sentiment,omitempty"`
	Tags        []string   `json:"tags"`
	Country     string     `json:"country"`
	CreatedAt   time.Time  `json:"created_at"`
}

// scannable is an interface for pgx Row and Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanTags unmarshals a JSONB tags column (scanned as []byte) into a []string.
func scanTags(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil
	}
	return tags
}

// ItemStore provides data access methods for items.
type ItemStore struct {
	pool *pgxpool.Pool
}

// NewItemStore creates a new ItemStore.
func NewItemStore(pool *pgxpool.Pool) *ItemStore {
	return &ItemStore{pool: pool}
}

const itemColumns = `id, source_id, url, title, title_en, body, published_at,
	       fetched_at, sentiment, tags, country, created_at`

func scanItem(row scannable) (*Item, error) {
	var it Item
	var tagsRaw []byte
	var titleEN, body *string
	if err := row.Scan(
		&it.ID, &it.SourceID, &it.URL, &it.Title, &titleEN, &body,
		&it.PublishedAt, &it.FetchedAt, &it.Sentiment, &tagsRaw,
		&it.Country, &it.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("item scan: %w", err)
	}
	it.Tags = scanTags(tagsRaw)
	if titleEN != nil {
		it.TitleEN = *titleEN
	}
	if body != nil {
		it.Body = *body
	}
	return &it, nil
}

// ExistsByURL checks whether an item with the given canonical URL already
// exists. This is the cheap pre-check; the URL uniqueness constraint remains
// the final authority under concurrent runs.
func (s *ItemStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM items WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("item exists by url: %w", err)
	}
	return exists, nil
}

// CreateIfNew inserts an item unless its canonical URL already exists.
// A constraint conflict collapses to a no-op and returns inserted=false,
// never an error.
func (s *ItemStore) CreateIfNew(ctx context.Context, item *Item) (bool, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.FetchedAt.IsZero() {
		item.FetchedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO items (id, source_id, url, title, title_en, body,
		                   published_at, fetched_at, country)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
		ON CONFLICT (url) DO NOTHING
	`,
		item.ID, item.SourceID, item.URL, item.Title, item.TitleEN,
		item.Body, item.PublishedAt, item.FetchedAt, item.Country,
	)
	if err != nil {
		return false, fmt.Errorf("item create: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateClassification sets the sentiment score, competitor tag set, and
// translated title produced by the classifier.
func (s *ItemStore) UpdateClassification(ctx context.Context, id uuid.UUID, sentiment float64, tags []string, titleEN string) error {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("item update classification: marshal tags: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE items
		SET sentiment = $1, tags = $2, title_en = COALESCE(NULLIF($3, ''), title_en)
		WHERE id = $4
	`, sentiment, tagsJSON, titleEN, id)
	if err != nil {
		return fmt.Errorf("item update classification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item not found: %s", id)
	}
	return nil
}

// UpdateTranslation fills the English title without touching the stored
// sentiment or tags.
func (s *ItemStore) UpdateTranslation(ctx context.Context, id uuid.UUID, titleEN string) error {
	if titleEN == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE items
		SET title_en = $1
		WHERE id = $2 AND title_en IS NULL
	`, titleEN, id)
	if err != nil {
		return fmt.Errorf("item update translation: %w", err)
	}
	return nil
}

// ListPending returns items that have not been classified yet, oldest first.
func (s *ItemStore) ListPending(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE sentiment IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("item list pending: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// ListMissingTranslation returns classified items that still lack an English
// title, for the one-time backfill pass.
func (s *ItemStore) ListMissingTranslation(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE sentiment IS NOT NULL AND title_en IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("item list missing translation: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// ListWindow returns items for a country published within [from, to],
// newest first.
func (s *ItemStore) ListWindow(ctx context.Context, country string, from, to time.Time, limit, offset int) ([]Item, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE country = $1
		  AND published_at >= $2 AND published_at <= $3
		ORDER BY published_at DESC, created_at DESC
		LIMIT $4 OFFSET $5
	`, country, from, to, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("item list window: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// CountByCountry returns the number of stored items for a country.
func (s *ItemStore) CountByCountry(ctx context.Context, country string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE country = $1`, country).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("item count: %w", err)
	}
	return count, nil
}

// DeleteByCountry removes all items for a country. Used only by the
// clean-and-recollect reset.
func (s *ItemStore) DeleteByCountry(ctx context.Context, country string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM items WHERE country = $1`, country)
	if err != nil {
		return 0, fmt.Errorf("item delete by country: %w", err)
	}
	return tag.RowsAffected(), nil
}
