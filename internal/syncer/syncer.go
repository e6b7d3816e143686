// Package syncer drives one quote save end to end: resolve, build the
// per-period graphs and submit them strictly one at a time.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/smallbiznis/rampline/internal/config"
	"github.com/smallbiznis/rampline/internal/graph"
	obsmetrics "github.com/smallbiznis/rampline/internal/observability/metrics"
	"github.com/smallbiznis/rampline/internal/pricing"
	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
	"github.com/smallbiznis/rampline/internal/salescloud"
	"github.com/smallbiznis/rampline/internal/schedule"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// State is the sequencer position within one save.
type State string

const (
	StateStart             State = "start"
	StateGroupingPeriodOne State = "grouping_period_one"
	StateRemainingPeriods  State = "remaining_periods"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// ErrSaveInFlight rejects a second save on a quote whose previous save
// has not finished.
var ErrSaveInFlight = errors.New("save_in_flight")

// SaveError reports the period and state a save failed in. Earlier
// periods stay persisted; there is no rollback across graphs.
type SaveError struct {
	PeriodIndex int
	State       State
	Err         error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save failed at period %d (%s): %v", e.PeriodIndex, e.State, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// SyncState is the cross-period context threaded through one save.
type SyncState struct {
	QuoteID            string
	MainLineID         string
	RelationshipTypeID string
}

// Backend is the slice of the sales client the sequencer drives.
type Backend interface {
	PlaceGraph(ctx context.Context, graphID string, records []quotedomain.GraphRecord, opts salescloud.PlaceOptions) (salescloud.PlaceResult, error)
	QuoteLines(ctx context.Context, quoteID string) ([]salescloud.QuoteLine, error)
	QuoteSnapshot(ctx context.Context, quoteID string) (salescloud.QuoteSnapshot, error)
}

// Resolver hydrates periods and relationship types before submission.
type Resolver interface {
	Resolve(ctx context.Context, periods []quotedomain.Period, bundleProductID string) ([]quotedomain.Period, error)
	RelationshipType(ctx context.Context, label string) (string, error)
}

type SaveRequest struct {
	QuoteID string
	Cadence quotedomain.Cadence
	Periods []quotedomain.Period
}

type SaveResult struct {
	QuoteID       string                    `json:"quote_id"`
	State         State                     `json:"state"`
	PeriodsSynced int                       `json:"periods_synced"`
	Warnings      []graph.Warning           `json:"warnings,omitempty"`
	Snapshot      *salescloud.QuoteSnapshot `json:"snapshot,omitempty"`

	// ReadBackFailed flags a failed post-save snapshot fetch. The save
	// itself still completed.
	ReadBackFailed bool `json:"read_back_failed,omitempty"`
}

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Client  *salescloud.Client
	Pricing *pricing.Service
	Metrics *obsmetrics.SyncMetrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	cfg      config.BackendConfig
	backend  Backend
	resolver Resolver
	builder  *graph.Builder
	metrics  *obsmetrics.SyncMetrics

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewService(p ServiceParam) *Service {
	return &Service{
		log:      p.Log.Named("syncer.service"),
		cfg:      p.Cfg.Backend,
		backend:  p.Client,
		resolver: p.Pricing,
		builder:  graph.NewBuilder(p.Log),
		metrics:  p.Metrics,
		inflight: map[string]struct{}{},
	}
}

// Save runs the full sequence for one quote: the first period's graph,
// the ramp group wrap when there is more than one period, then each
// remaining period in order. The walk stops at the first failure;
// nothing after the failing graph is sent.
func (s *Service) Save(ctx context.Context, req SaveRequest) (SaveResult, error) {
	if len(req.Periods) == 0 {
		return SaveResult{}, quotedomain.ErrMissingPeriods
	}
	if err := schedule.ValidatePeriodCount(req.Periods); err != nil {
		return SaveResult{}, err
	}
	if err := schedule.Contiguous(req.Periods); err != nil {
		return SaveResult{}, err
	}

	if !s.acquire(req.QuoteID) {
		return SaveResult{}, ErrSaveInFlight
	}
	defer s.release(req.QuoteID)

	result, err := s.run(ctx, req)
	s.record(result.State)
	return result, err
}

func (s *Service) run(ctx context.Context, req SaveRequest) (SaveResult, error) {
	result := SaveResult{QuoteID: req.QuoteID, State: StateStart}

	periods, err := s.resolver.Resolve(ctx, req.Periods, s.cfg.BundleProductID)
	if err != nil {
		result.State = StateFailed
		return result, err
	}

	relTypeID, err := s.resolver.RelationshipType(ctx, s.cfg.RelationshipTypeLabel)
	if err != nil {
		result.State = StateFailed
		return result, err
	}

	lines, err := s.backend.QuoteLines(ctx, req.QuoteID)
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	mainLineID, err := findMainLine(lines, s.cfg.BundleProductID)
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	lineIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		lineIDs = append(lineIDs, line.ID)
	}

	st := SyncState{QuoteID: req.QuoteID, MainLineID: mainLineID, RelationshipTypeID: relTypeID}
	gctx := graph.Context{
		QuoteID:            st.QuoteID,
		PriceBookID:        s.cfg.PriceBookID,
		RelationshipTypeID: st.RelationshipTypeID,

		MainLineID:             st.MainLineID,
		BundleProductID:        s.cfg.BundleProductID,
		BundlePriceBookEntryID: s.cfg.BundlePriceBookEntryID,
		ExistingLineIDs:        lineIDs,

		TermStart:        periods[0].Start,
		TermEnd:          periods[len(periods)-1].End,
		SegmentType:      segmentType(req.Cadence),
		BillingFrequency: billingFrequency(req.Cadence),
		TotalPeriods:     len(periods),
	}

	// The first period's graph goes out before anything else; the ramp
	// group wrap only runs once it has been accepted.
	first := periods[0]
	records, warnings, err := s.builder.PeriodGraph(first, gctx)
	if err != nil {
		result.State = StateFailed
		return result, &SaveError{PeriodIndex: 1, State: StateStart, Err: err}
	}
	result.Warnings = append(result.Warnings, warnings...)

	graphID := fmt.Sprintf("quote-%s-period-%d", req.QuoteID, first.Index)
	if _, err := s.backend.PlaceGraph(ctx, graphID, records, salescloud.PlaceOptions{}); err != nil {
		result.State = StateFailed
		return result, &SaveError{PeriodIndex: 1, State: StateStart, Err: err}
	}
	result.PeriodsSynced++
	s.log.Info("period placed",
		zap.String("quote_id", req.QuoteID),
		zap.Int("period", first.Index),
	)

	if len(periods) > 1 {
		result.State = StateGroupingPeriodOne
		records, err := s.builder.GroupingGraph(first, gctx)
		if err != nil {
			result.State = StateFailed
			return result, &SaveError{PeriodIndex: 1, State: StateGroupingPeriodOne, Err: err}
		}

		graphID := fmt.Sprintf("quote-%s-ramp-group", req.QuoteID)
		if _, err := s.backend.PlaceGraph(ctx, graphID, records, salescloud.PlaceOptions{GroupRampAction: "EditGroup"}); err != nil {
			result.State = StateFailed
			return result, &SaveError{PeriodIndex: 1, State: StateGroupingPeriodOne, Err: err}
		}
		s.log.Info("ramp group placed", zap.String("quote_id", req.QuoteID))
	}

	result.State = StateRemainingPeriods
	for _, period := range periods[1:] {
		records, warnings, err := s.builder.PeriodGraph(period, gctx)
		if err != nil {
			result.State = StateFailed
			return result, &SaveError{PeriodIndex: period.Index, State: StateRemainingPeriods, Err: err}
		}
		result.Warnings = append(result.Warnings, warnings...)

		graphID := fmt.Sprintf("quote-%s-period-%d", req.QuoteID, period.Index)
		if _, err := s.backend.PlaceGraph(ctx, graphID, records, salescloud.PlaceOptions{Save: true}); err != nil {
			result.State = StateFailed
			return result, &SaveError{PeriodIndex: period.Index, State: StateRemainingPeriods, Err: err}
		}

		result.PeriodsSynced++
		s.log.Info("period placed",
			zap.String("quote_id", req.QuoteID),
			zap.Int("period", period.Index),
		)
	}

	result.State = StateDone

	snapshot, err := s.backend.QuoteSnapshot(ctx, req.QuoteID)
	if err != nil {
		// A failed read-back never reverts a completed save.
		s.log.Warn("quote read-back failed", zap.String("quote_id", req.QuoteID), zap.Error(err))
		result.ReadBackFailed = true
		return result, nil
	}
	result.Snapshot = &snapshot

	return result, nil
}

// findMainLine locates the persisted primary bundle line among a
// quote's lines.
func findMainLine(lines []salescloud.QuoteLine, productID string) (string, error) {
	for _, line := range lines {
		if productID != "" && line.ProductID == productID {
			return line.ID, nil
		}
	}
	if len(lines) > 0 {
		return lines[0].ID, nil
	}
	return "", quotedomain.ErrMissingPrimaryLine
}

func (s *Service) acquire(quoteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[quoteID]; busy {
		return false
	}
	s.inflight[quoteID] = struct{}{}
	return true
}

func (s *Service) release(quoteID string) {
	s.mu.Lock()
	delete(s.inflight, quoteID)
	s.mu.Unlock()
}

func (s *Service) record(state State) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSave(string(state))
}

func segmentType(cadence quotedomain.Cadence) string {
	switch cadence {
	case quotedomain.CadenceQuarterly:
		return "Quarterly"
	case quotedomain.CadenceMonthly:
		return "Monthly"
	case quotedomain.CadenceCustom:
		return "Custom"
	default:
		return "Yearly"
	}
}

func billingFrequency(cadence quotedomain.Cadence) string {
	switch cadence {
	case quotedomain.CadenceQuarterly:
		return "Quarterly"
	case quotedomain.CadenceMonthly:
		return "Monthly"
	default:
		return "Annual"
	}
}

var Module = fx.Module("syncer.service",
	fx.Provide(NewService),
)
