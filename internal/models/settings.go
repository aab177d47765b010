package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Settings keys used by the pipeline.
const (
	SettingKeywords    = "keywords"
	SettingCompetitors = "competitors"
)

// SettingsStore provides access to global key/value settings.
type SettingsStore struct {
	pool *pgxpool.Pool
}

// NewSettingsStore creates a new SettingsStore.
func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// GetStrings returns a string-list setting, or nil if the key is unset.
func (s *SettingsStore) GetStrings(ctx context.Context, key string) ([]string, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("settings get %s: %w", key, err)
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("settings unmarshal %s: %w", key, err)
	}
	return values, nil
}

// SetStrings upserts a string-list setting.
func (s *SettingsStore) SetStrings(ctx context.Context, key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("settings marshal %s: %w", key, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, raw)
	if err != nil {
		return fmt.Errorf("settings set %s: %w", key, err)
	}
	return nil
}

// Competitors returns the globally tracked competitor tag list.
func (s *SettingsStore) Competitors(ctx context.Context) ([]string, error) {
	return s.GetStrings(ctx, SettingCompetitors)
}

// Keywords returns the search keyword list for the social path.
func (s *SettingsStore) Keywords(ctx context.Context) ([]string, error) {
	return s.GetStrings(ctx, SettingKeywords)
}

// UserSettings holds per-user tracking preferences.
type UserSettings struct {
	UserID             uuid.UUID `json:"user_id"`
	ActiveCountry      string    `json:"active_country,omitempty"`
	Competitors        []string  `json:"competitors"`
	PrioritizedOutlets []string  `json:"prioritized_outlets"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// UserSettingsStore provides data access for per-user settings. Every write
// touches a single column so unrelated preferences always survive — outlet
// discovery persistence must not clobber tracked competitors or the active
// country.
type UserSettingsStore struct {
	pool *pgxpool.Pool
}

// NewUserSettingsStore creates a new UserSettingsStore.
func NewUserSettingsStore(pool *pgxpool.Pool) *UserSettingsStore {
	return &UserSettingsStore{pool: pool}
}

// Get returns the settings row for a user, or an empty value if none exists.
func (s *UserSettingsStore) Get(ctx context.Context, userID uuid.UUID) (*UserSettings, error) {
	var us UserSettings
	var country *string
	var competitorsRaw, outletsRaw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, active_country, competitors, prioritized_outlets, updated_at
		FROM user_settings
		WHERE user_id = $1
	`, userID).Scan(&us.UserID, &country, &competitorsRaw, &outletsRaw, &us.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &UserSettings{UserID: userID, Competitors: []string{}, PrioritizedOutlets: []string{}}, nil
		}
		return nil, fmt.Errorf("user settings get: %w", err)
	}
	if country != nil {
		us.ActiveCountry = *country
	}
	us.Competitors = scanTags(competitorsRaw)
	us.PrioritizedOutlets = scanTags(outletsRaw)
	return &us, nil
}

// SetActiveCountry upserts only the active country.
func (s *UserSettingsStore) SetActiveCountry(ctx context.Context, userID uuid.UUID, country string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_settings (user_id, active_country) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET active_country = EXCLUDED.active_country, updated_at = now()
	`, userID, country)
	if err != nil {
		return fmt.Errorf("user settings set country: %w", err)
	}
	return nil
}

// SetCompetitors upserts only the tracked competitor list.
func (s *UserSettingsStore) SetCompetitors(ctx context.Context, userID uuid.UUID, competitors []string) error {
	raw, err := json.Marshal(orEmpty(competitors))
	if err != nil {
		return fmt.Errorf("user settings marshal competitors: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_settings (user_id, competitors) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET competitors = EXCLUDED.competitors, updated_at = now()
	`, userID, raw)
	if err != nil {
		return fmt.Errorf("user settings set competitors: %w", err)
	}
	return nil
}

// SetPrioritizedOutlets upserts only the prioritized outlet list. This is the
// merge point for discovery persistence.
func (s *UserSettingsStore) SetPrioritizedOutlets(ctx context.Context, userID uuid.UUID, outlets []string) error {
	raw, err := json.Marshal(orEmpty(outlets))
	if err != nil {
		return fmt.Errorf("user settings marshal outlets: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_settings (user_id, prioritized_outlets) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET prioritized_outlets = EXCLUDED.prioritized_outlets, updated_at = now()
	`, userID, raw)
	if err != nil {
		return fmt.Errorf("user settings set outlets: %w", err)
	}
	return nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
