package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SocialPost represents one search-engine-discovered social media post.
// Uniqueness is (platform, post_id) — search engines wrap URLs in redirects,
// so the raw URL is not a stable key.
type SocialPost struct {
	ID                 uuid.UUID `json:"id"`
	Platform           string    `json:"platform"`
	PostID             string    `json:"post_id"`
	URL                string    `json:"url"`
	Title              string    `json:"title"`
	Body               string    `json:"body,omitempty"`
	PublishedAt        time.Time `json:"published_at"`
	PublishedEstimated bool      `json:"published_estimated"`
	FetchedAt          time.Time `json:"fetched_at"`
	Sentiment          *float64  `json:"sentiment,omitempty"`
	Tags               []string  `json:"tags"`
	Country            string    `json:"country"`
	CreatedAt          time.Time `json:"created_at"`
}

// SocialPostStore provides data access methods for social media posts.
type SocialPostStore struct {
	pool *pgxpool.Pool
}

// NewSocialPostStore creates a new SocialPostStore.
func NewSocialPostStore(pool *pgxpool.Pool) *SocialPostStore {
	return &SocialPostStore{pool: pool}
}

// Exists checks whether a post with the given (platform, post_id) pair
// already exists.
func (s *SocialPostStore) Exists(ctx context.Context, platform, postID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM social_media_posts WHERE platform = $1 AND post_id = $2)
	`, platform, postID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("social post exists: %w", err)
	}
	return exists, nil
}

// CreateIfNew inserts a post unless its (platform, post_id) pair already
// exists. A constraint conflict collapses to a no-op and returns
// inserted=false, never an error.
func (s *SocialPostStore) CreateIfNew(ctx context.Context, post *SocialPost) (bool, error) {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.FetchedAt.IsZero() {
		post.FetchedAt = time.Now().UTC()
	}
	if post.PublishedAt.IsZero() {
		post.PublishedAt = post.FetchedAt
		post.PublishedEstimated = true
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO social_media_posts (id, platform, post_id, url, title, body,
		                                published_at, published_estimated, fetched_at, country)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
		ON CONFLICT (platform, post_id) DO NOTHING
	`,
		post.ID, post.Platform, post.PostID, post.URL, post.Title, post.Body,
		post.PublishedAt, post.PublishedEstimated, post.FetchedAt, post.Country,
	)
	if err != nil {
		return false, fmt.Errorf("social post create: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateClassification sets the sentiment score and competitor tag set.
func (s *SocialPostStore) UpdateClassification(ctx context.Context, id uuid.UUID, sentiment float64, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("social post update classification: marshal tags: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE social_media_posts SET sentiment = $1, tags = $2 WHERE id = $3
	`, sentiment, tagsJSON, id)
	if err != nil {
		return fmt.Errorf("social post update classification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("social post not found: %s", id)
	}
	return nil
}

// ListPending returns posts that have not been classified yet, oldest first.
func (s *SocialPostStore) ListPending(ctx context.Context, limit int) ([]SocialPost, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, platform, post_id, url, title, body, published_at,
		       published_estimated, fetched_at, sentiment, tags, country, created_at
		FROM social_media_posts
		WHERE sentiment IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("social post list pending: %w", err)
	}
	defer rows.Close()

	var posts []SocialPost
	for rows.Next() {
		var p SocialPost
		var tagsRaw []byte
		var body *string
		if err := rows.Scan(
			&p.ID, &p.Platform, &p.PostID, &p.URL, &p.Title, &body,
			&p.PublishedAt, &p.PublishedEstimated, &p.FetchedAt,
			&p.Sentiment, &tagsRaw, &p.Country, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("social post scan: %w", err)
		}
		p.Tags = scanTags(tagsRaw)
		if body != nil {
			p.Body = *body
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// DeleteByCountry removes all posts for a country. Used only by the
// clean-and-recollect reset.
func (s *SocialPostStore) DeleteByCountry(ctx context.Context, country string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM social_media_posts WHERE country = $1`, country)
	if err != nil {
		return 0, fmt.Errorf("social post delete by country: %w", err)
	}
	return tag.RowsAffected(), nil
}
