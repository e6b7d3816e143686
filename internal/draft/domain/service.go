package domain

import (
	"context"
	"errors"
	"time"

	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
)

var (
	ErrDraftNotFound    = errors.New("draft_not_found")
	ErrPeriodOutOfRange = errors.New("period_out_of_range")
)

// Draft is the editable ramp schedule for one quote.
type Draft struct {
	QuoteID   string               `json:"quote_id"`
	Cadence   quotedomain.Cadence  `json:"cadence"`
	Start     quotedomain.DateUTC  `json:"start"`
	End       quotedomain.DateUTC  `json:"end"`
	Periods   []quotedomain.Period `json:"periods"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// UpsertDraftRequest creates or replaces the draft for a quote. When
// Periods is empty the schedule is rebuilt from the term and cadence.
type UpsertDraftRequest struct {
	QuoteID string
	Cadence quotedomain.Cadence
	Start   quotedomain.DateUTC
	End     quotedomain.DateUTC
	Periods []quotedomain.Period
}

// UpdateTierRequest replaces one tier row on one period. The row is
// matched by kind and replaced whole.
type UpdateTierRequest struct {
	QuoteID     string
	PeriodIndex int
	Tier        quotedomain.TierRow
}

type Service interface {
	Get(ctx context.Context, quoteID string) (Draft, error)
	Upsert(ctx context.Context, req UpsertDraftRequest) (Draft, error)
	UpdateTier(ctx context.Context, req UpdateTierRequest) (Draft, error)
	Delete(ctx context.Context, quoteID string) error
}
