package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Baseline statuses. The only legal transition is pending -> completed;
// a new tracking-date selection always creates a new row.
const (
	BaselinePending   = "pending"
	BaselineCompleted = "completed"
)

// Baseline is the user-configured date range bounding a tracking campaign.
type Baseline struct {
	ID        uuid.UUID `json:"id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// BaselineStore provides data access methods for baselines.
type BaselineStore struct {
	pool *pgxpool.Pool
}

// NewBaselineStore creates a new BaselineStore.
func NewBaselineStore(pool *pgxpool.Pool) *BaselineStore {
	return &BaselineStore{pool: pool}
}

// Create inserts a new pending baseline. start must not be in the future and
// end must not precede start; the table constraints back these checks up.
func (s *BaselineStore) Create(ctx context.Context, start, end time.Time) (*Baseline, error) {
	if start.After(time.Now()) {
		return nil, errors.New("baseline create: start date is in the future")
	}
	if end.Before(start) {
		return nil, errors.New("baseline create: end date precedes start date")
	}

	b := &Baseline{
		ID:        uuid.New(),
		StartDate: start,
		EndDate:   end,
		Status:    BaselinePending,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO baselines (id, start_date, end_date, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, b.ID, b.StartDate, b.EndDate, b.Status).Scan(&b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("baseline create: %w", err)
	}
	return b, nil
}

// Complete transitions a pending baseline to completed.
func (s *BaselineStore) Complete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE baselines SET status = $1 WHERE id = $2 AND status = $3
	`, BaselineCompleted, id, BaselinePending)
	if err != nil {
		return fmt.Errorf("baseline complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("baseline complete: no pending baseline %s", id)
	}
	return nil
}

// Current returns the most recently created completed baseline, or nil if
// none exists. Callers must treat nil as a hard precondition failure rather
// than defaulting to an arbitrary window.
func (s *BaselineStore) Current(ctx context.Context) (*Baseline, error) {
	var b Baseline
	err := s.pool.QueryRow(ctx, `
		SELECT id, start_date, end_date, status, created_at
		FROM baselines
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, BaselineCompleted).Scan(&b.ID, &b.StartDate, &b.EndDate, &b.Status, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("baseline current: %w", err)
	}
	return &b, nil
}
