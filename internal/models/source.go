package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Source types recognized by the registry.
const (
	SourceTypeNews       = "news"
	SourceTypeGovernment = "government"
	SourceTypeDefense    = "defense"
	SourceTypeSocial     = "social"
	SourceTypeComment    = "comment"
)

// Source represents a registered media outlet the pipeline can fetch from.
type Source struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	BaseURL     string    `json:"base_url"`
	FeedURL     string    `json:"feed_url,omitempty"`
	Type        string    `json:"type"`
	Country     string    `json:"country"`
	Credibility int       `json:"credibility"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

// SourceStore provides data access methods for sources.
type SourceStore struct {
	pool *pgxpool.Pool
}

// NewSourceStore creates a new SourceStore.
func NewSourceStore(pool *pgxpool.Pool) *SourceStore {
	return &SourceStore{pool: pool}
}

const sourceColumns = `id, name, base_url, feed_url, type, country, credibility, enabled, created_at`

func scanSource(row scannable) (*Source, error) {
	var src Source
	var feedURL *string
	if err := row.Scan(
		&src.ID, &src.Name, &src.BaseURL, &feedURL, &src.Type,
		&src.Country, &src.Credibility, &src.Enabled, &src.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("source scan: %w", err)
	}
	if feedURL != nil {
		src.FeedURL = *feedURL
	}
	return &src, nil
}

// ListEnabled returns all enabled sources for a country, highest credibility
// first. Ties break by id so the processing order is deterministic.
func (s *SourceStore) ListEnabled(ctx context.Context, country string) ([]Source, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sourceColumns+`
		FROM sources
		WHERE enabled = true AND country = $1
		ORDER BY credibility DESC, id ASC
	`, country)
	if err != nil {
		return nil, fmt.Errorf("source list enabled: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// ListEnabledAll returns enabled sources for every country, highest
// credibility first.
func (s *SourceStore) ListEnabledAll(ctx context.Context) ([]Source, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sourceColumns+`
		FROM sources
		WHERE enabled = true
		ORDER BY credibility DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("source list enabled all: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// ListAll returns every source regardless of enabled state.
func (s *SourceStore) ListAll(ctx context.Context) ([]Source, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sourceColumns+`
		FROM sources
		ORDER BY credibility DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("source list all: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// GetByID returns a single source.
func (s *SourceStore) GetByID(ctx context.Context, id uuid.UUID) (*Source, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	return scanSource(row)
}

// Create inserts a new source.
func (s *SourceStore) Create(ctx context.Context, source *Source) error {
	if source.ID == uuid.Nil {
		source.ID = uuid.New()
	}
	if source.Credibility == 0 {
		source.Credibility = 3
	}

	var feedURL *string
	if source.FeedURL != "" {
		feedURL = &source.FeedURL
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO sources (id, name, base_url, feed_url, type, country, credibility, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`,
		source.ID, source.Name, source.BaseURL, feedURL, source.Type,
		source.Country, source.Credibility, source.Enabled,
	).Scan(&source.CreatedAt)
	if err != nil {
		return fmt.Errorf("source create: %w", err)
	}
	return nil
}

// Update modifies an existing source's descriptor fields.
func (s *SourceStore) Update(ctx context.Context, source *Source) error {
	var feedURL *string
	if source.FeedURL != "" {
		feedURL = &source.FeedURL
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE sources
		SET name = $1, base_url = $2, feed_url = $3, type = $4, country = $5
		WHERE id = $6
	`, source.Name, source.BaseURL, feedURL, source.Type, source.Country, source.ID)
	if err != nil {
		return fmt.Errorf("source update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source not found: %s", source.ID)
	}
	return nil
}

// SetEnabled flips the enabled flag. Sources referenced by items are never
// hard-deleted; disabling is the only way to retire one.
func (s *SourceStore) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sources SET enabled = $1 WHERE id = $2`, enabled, id)
	if err != nil {
		return fmt.Errorf("source set enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source not found: %s", id)
	}
	return nil
}

// SetCredibility updates the credibility tier (1-5).
func (s *SourceStore) SetCredibility(ctx context.Context, id uuid.UUID, credibility int) error {
	if credibility < 1 || credibility > 5 {
		return fmt.Errorf("source set credibility: tier %d out of range", credibility)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE sources SET credibility = $1 WHERE id = $2`, credibility, id)
	if err != nil {
		return fmt.Errorf("source set credibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source not found: %s", id)
	}
	return nil
}
