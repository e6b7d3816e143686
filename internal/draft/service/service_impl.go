package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rampline/internal/clock"
	draftdomain "github.com/smallbiznis/rampline/internal/draft/domain"
	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
	"github.com/smallbiznis/rampline/internal/schedule"
	"github.com/smallbiznis/rampline/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID     *snowflake.Node
	clock     clock.Clock
	draftrepo repository.Repository[draftdomain.QuoteDraft]
}

func NewService(p ServiceParam) draftdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("draft.service"),

		genID:     p.GenID,
		clock:     p.Clock,
		draftrepo: repository.ProvideStore[draftdomain.QuoteDraft](p.DB),
	}
}

func (s *Service) Get(ctx context.Context, quoteID string) (draftdomain.Draft, error) {
	row, err := s.find(ctx, quoteID)
	if err != nil {
		return draftdomain.Draft{}, err
	}
	return s.toDraft(row)
}

func (s *Service) Upsert(ctx context.Context, req draftdomain.UpsertDraftRequest) (draftdomain.Draft, error) {
	if strings.TrimSpace(req.QuoteID) == "" {
		return draftdomain.Draft{}, quotedomain.ErrQuoteNotFound
	}

	periods := req.Periods
	if len(periods) == 0 {
		built, err := schedule.Build(req.Start, req.End, req.Cadence)
		if err != nil {
			return draftdomain.Draft{}, err
		}
		periods = built
	} else {
		if err := schedule.ValidatePeriodCount(periods); err != nil {
			return draftdomain.Draft{}, err
		}
		if err := schedule.Contiguous(periods); err != nil {
			return draftdomain.Draft{}, err
		}
	}

	// The stored term always mirrors the outer bounds of the schedule.
	if req.Start.IsZero() {
		req.Start = periods[0].Start
	}
	if req.End.IsZero() {
		req.End = periods[len(periods)-1].End
	}

	encoded, err := json.Marshal(periods)
	if err != nil {
		return draftdomain.Draft{}, err
	}

	existing, err := s.draftrepo.FindOne(ctx, &draftdomain.QuoteDraft{QuoteID: req.QuoteID})
	if err != nil {
		return draftdomain.Draft{}, err
	}

	now := s.clock.Now()
	if existing == nil {
		row := draftdomain.QuoteDraft{
			ID:        s.genID.Generate(),
			QuoteID:   req.QuoteID,
			Cadence:   string(req.Cadence),
			StartDate: req.Start.String(),
			EndDate:   req.End.String(),
			Periods:   encoded,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.draftrepo.Create(ctx, &row); err != nil {
			return draftdomain.Draft{}, err
		}
		s.log.Info("draft created", zap.String("quote_id", req.QuoteID), zap.Int("periods", len(periods)))
		return s.toDraft(&row)
	}

	existing.Cadence = string(req.Cadence)
	existing.StartDate = req.Start.String()
	existing.EndDate = req.End.String()
	existing.Periods = encoded
	existing.UpdatedAt = now
	if err := s.draftrepo.Update(ctx, existing.ID.String(), existing); err != nil {
		return draftdomain.Draft{}, err
	}
	s.log.Info("draft replaced", zap.String("quote_id", req.QuoteID), zap.Int("periods", len(periods)))
	return s.toDraft(existing)
}

func (s *Service) UpdateTier(ctx context.Context, req draftdomain.UpdateTierRequest) (draftdomain.Draft, error) {
	row, err := s.find(ctx, req.QuoteID)
	if err != nil {
		return draftdomain.Draft{}, err
	}

	var periods []quotedomain.Period
	if err := json.Unmarshal(row.Periods, &periods); err != nil {
		return draftdomain.Draft{}, err
	}

	target := -1
	for i := range periods {
		if periods[i].Index == req.PeriodIndex {
			target = i
			break
		}
	}
	if target < 0 {
		return draftdomain.Draft{}, draftdomain.ErrPeriodOutOfRange
	}

	replaced := false
	for i := range periods[target].Tiers {
		if periods[target].Tiers[i].Kind == req.Tier.Kind {
			periods[target].Tiers[i] = req.Tier
			replaced = true
			break
		}
	}
	if !replaced {
		periods[target].Tiers = append(periods[target].Tiers, req.Tier)
	}

	encoded, err := json.Marshal(periods)
	if err != nil {
		return draftdomain.Draft{}, err
	}

	row.Periods = encoded
	row.UpdatedAt = s.clock.Now()
	if err := s.draftrepo.Update(ctx, row.ID.String(), row); err != nil {
		return draftdomain.Draft{}, err
	}
	return s.toDraft(row)
}

func (s *Service) Delete(ctx context.Context, quoteID string) error {
	row, err := s.find(ctx, quoteID)
	if err != nil {
		return err
	}
	return s.draftrepo.Delete(ctx, row.ID.String())
}

func (s *Service) find(ctx context.Context, quoteID string) (*draftdomain.QuoteDraft, error) {
	row, err := s.draftrepo.FindOne(ctx, &draftdomain.QuoteDraft{QuoteID: quoteID})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, draftdomain.ErrDraftNotFound
	}
	return row, nil
}

func (s *Service) toDraft(row *draftdomain.QuoteDraft) (draftdomain.Draft, error) {
	var periods []quotedomain.Period
	if len(row.Periods) > 0 {
		if err := json.Unmarshal(row.Periods, &periods); err != nil {
			return draftdomain.Draft{}, err
		}
	}

	cadence, err := quotedomain.ParseCadence(row.Cadence)
	if err != nil {
		return draftdomain.Draft{}, err
	}

	start, err := quotedomain.ParseDate(row.StartDate)
	if err != nil {
		return draftdomain.Draft{}, err
	}
	end, err := quotedomain.ParseDate(row.EndDate)
	if err != nil {
		return draftdomain.Draft{}, err
	}

	return draftdomain.Draft{
		QuoteID:   row.QuoteID,
		Cadence:   cadence,
		Start:     start,
		End:       end,
		Periods:   periods,
		UpdatedAt: row.UpdatedAt,
	}, nil
}
