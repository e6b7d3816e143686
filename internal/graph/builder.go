// Package graph renders one subscription period into the ordered
// composite records the backend transaction endpoint consumes.
package graph

import (
	"fmt"
	"strings"

	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
	"go.uber.org/zap"
)

const (
	// relationshipPricing marks child lines whose price is billed
	// outside the bundle price.
	relationshipPricing = "NotIncludedInBundlePrice"

	// The backend's term unit picklist spells it this way.
	subscriptionTermUnit = "Anual"
	periodBoundary       = "Anniversary"
)

// Context carries the quote-level identifiers a period graph needs.
type Context struct {
	QuoteID            string
	PriceBookID        string
	RelationshipTypeID string

	// MainLineID is the persisted bundle line of the first period.
	// Later periods create their own bundle parent line inside the
	// graph, from BundleProductID.
	MainLineID             string
	BundleProductID        string
	BundlePriceBookEntryID string

	// ExistingLineIDs are the quote lines already persisted before the
	// save. The first period's graph stamps term fields onto them.
	ExistingLineIDs []string

	// TermStart and TermEnd are the outer bounds of the whole
	// schedule, stamped onto the quote itself.
	TermStart quotedomain.DateUTC
	TermEnd   quotedomain.DateUTC

	SegmentType      string
	BillingFrequency string
	TotalPeriods     int
}

// Warning records a tier row that was skipped rather than submitted.
type Warning struct {
	PeriodIndex int                  `json:"period_index"`
	Tier        quotedomain.TierKind `json:"tier"`
	Code        string               `json:"code"`
}

type Builder struct {
	log *zap.Logger
}

func NewBuilder(log *zap.Logger) *Builder {
	return &Builder{log: log.Named("graph.builder")}
}

// GroupingGraph wraps the first period's already persisted lines into a
// ramp group: quote update, group create, then a re-parenting update of
// the primary line.
func (b *Builder) GroupingGraph(first quotedomain.Period, gctx Context) ([]quotedomain.GraphRecord, error) {
	if strings.TrimSpace(gctx.MainLineID) == "" {
		return nil, quotedomain.ErrMissingPrimaryLine
	}

	groupRef := groupRefID(first.Index)
	records := []quotedomain.GraphRecord{
		b.quoteUpdate(gctx),
		b.groupCreate(first, gctx, groupRef),
		{
			ReferenceID: fmt.Sprintf("refMainLine_P%d", first.Index),
			Entity:      quotedomain.EntityQuoteLine,
			Method:      quotedomain.MethodUpdate,
			Target:      quotedomain.KnownRef(gctx.MainLineID),
			// The re-parenting update carries only the group; the line's
			// dates were already stamped by the first period's graph.
			Fields: map[string]any{
				"QuoteLineGroupId": quotedomain.PendingRef(groupRef),
			},
		},
	}
	return records, nil
}

// PeriodGraph emits the ordered records for one period: the quote
// update, the first period's term stamps on persisted lines (or a later
// period's group and bundle parent), then the platform child and the
// tier rows. Every relationship create immediately follows the child
// line create it points at, so the backend can resolve the forward
// reference.
func (b *Builder) PeriodGraph(p quotedomain.Period, gctx Context) ([]quotedomain.GraphRecord, []Warning, error) {
	records := []quotedomain.GraphRecord{b.quoteUpdate(gctx)}

	var parent quotedomain.Ref
	if p.Index > 1 {
		if strings.TrimSpace(gctx.BundleProductID) == "" {
			return nil, nil, quotedomain.ErrMissingPrimaryLine
		}
		groupRef := groupRefID(p.Index)
		parentRef := fmt.Sprintf("refParentLine_P%d", p.Index)
		records = append(records,
			b.groupCreate(p, gctx, groupRef),
			b.parentLineCreate(p, gctx, parentRef, groupRef),
		)
		parent = quotedomain.PendingRef(parentRef)
	} else {
		if strings.TrimSpace(gctx.MainLineID) == "" {
			return nil, nil, quotedomain.ErrMissingPrimaryLine
		}
		for i, lineID := range gctx.ExistingLineIDs {
			records = append(records, b.lineUpdate(p, gctx, lineID, i+1))
		}
		parent = quotedomain.KnownRef(gctx.MainLineID)
	}

	var warnings []Warning
	childIdx := 0
	emit := func(tier quotedomain.TierRow) {
		if tier.Quantity <= 0 {
			return
		}
		if !tier.Resolved() {
			b.log.Warn("skipping unresolved tier row",
				zap.Int("period", p.Index),
				zap.String("tier", string(tier.Kind)),
			)
			warnings = append(warnings, Warning{PeriodIndex: p.Index, Tier: tier.Kind, Code: "product_unresolved"})
			return
		}
		childIdx++
		childRef := fmt.Sprintf("refChildLine_P%d_%d", p.Index, childIdx)
		relRef := fmt.Sprintf("refRel_P%d_%d", p.Index, childIdx)
		records = append(records,
			b.childLineCreate(p, gctx, tier, childRef),
			b.relationshipCreate(gctx, parent, childRef, relRef),
		)
	}

	// The period's platform product rides under the parent line like any
	// other child, quantity one, carrying the period discount.
	emit(quotedomain.TierRow{
		Kind:             quotedomain.TierPlatform,
		Quantity:         1,
		UnitPrice:        p.UnitPrice,
		DiscountPct:      p.DiscountPct,
		ProductID:        p.ProductID,
		PriceBookEntryID: p.PriceBookEntryID,
	})

	for _, tier := range p.Tiers {
		if tier.Kind == quotedomain.TierNonProd {
			continue
		}
		emit(tier)
	}
	for _, tier := range p.Tiers {
		if tier.Kind == quotedomain.TierNonProd {
			emit(tier)
		}
	}

	return records, warnings, nil
}

func (b *Builder) quoteUpdate(gctx Context) quotedomain.GraphRecord {
	fields := map[string]any{}
	if gctx.PriceBookID != "" {
		fields["Pricebook2Id"] = gctx.PriceBookID
	}
	if !gctx.TermStart.IsZero() {
		fields["StartDate"] = gctx.TermStart.String()
	}
	if !gctx.TermEnd.IsZero() {
		fields["EndDate"] = gctx.TermEnd.String()
	}
	return quotedomain.GraphRecord{
		ReferenceID: "refQuote",
		Entity:      quotedomain.EntityQuote,
		Method:      quotedomain.MethodUpdate,
		Target:      quotedomain.KnownRef(gctx.QuoteID),
		Fields:      fields,
	}
}

func (b *Builder) groupCreate(p quotedomain.Period, gctx Context, refID string) quotedomain.GraphRecord {
	fields := map[string]any{
		"Name":      p.Name,
		"QuoteId":   gctx.QuoteID,
		"IsRamped":  true,
		"StartDate": p.Start.String(),
		"EndDate":   p.End.String(),
	}
	if gctx.SegmentType != "" {
		fields["SegmentType"] = gctx.SegmentType
	}
	return quotedomain.GraphRecord{
		ReferenceID: refID,
		Entity:      quotedomain.EntityQuoteLineGroup,
		Method:      quotedomain.MethodCreate,
		Fields:      fields,
	}
}

// parentLineCreate emits the bundle line a later period hangs its
// children from. The bundle itself carries no price; the period
// discount lands on the platform child instead.
func (b *Builder) parentLineCreate(p quotedomain.Period, gctx Context, refID, groupRef string) quotedomain.GraphRecord {
	fields := map[string]any{
		"QuoteId":              gctx.QuoteID,
		"Product2Id":           gctx.BundleProductID,
		"Quantity":             1,
		"StartDate":            p.Start.String(),
		"EndDate":              p.End.String(),
		"SubscriptionTerm":     1,
		"SubscriptionTermUnit": subscriptionTermUnit,
		"PeriodBoundary":       periodBoundary,
		"QuoteLineGroupId":     quotedomain.PendingRef(groupRef),
	}
	if gctx.BundlePriceBookEntryID != "" {
		fields["PricebookEntryId"] = gctx.BundlePriceBookEntryID
	}
	if gctx.BillingFrequency != "" {
		fields["BillingFrequency"] = gctx.BillingFrequency
	}
	return quotedomain.GraphRecord{
		ReferenceID: refID,
		Entity:      quotedomain.EntityQuoteLine,
		Method:      quotedomain.MethodCreate,
		Fields:      fields,
	}
}

// lineUpdate stamps the subscription term shape onto a line that was
// persisted before the save started.
func (b *Builder) lineUpdate(p quotedomain.Period, gctx Context, lineID string, idx int) quotedomain.GraphRecord {
	fields := map[string]any{
		"SubscriptionTerm":     1,
		"SubscriptionTermUnit": subscriptionTermUnit,
		"PeriodBoundary":       periodBoundary,
		"StartDate":            p.Start.String(),
		"EndDate":              p.End.String(),
	}
	if gctx.BillingFrequency != "" {
		fields["BillingFrequency"] = gctx.BillingFrequency
	}
	return quotedomain.GraphRecord{
		ReferenceID: fmt.Sprintf("refLineUpdate_%d", idx),
		Entity:      quotedomain.EntityQuoteLine,
		Method:      quotedomain.MethodUpdate,
		Target:      quotedomain.KnownRef(lineID),
		Fields:      fields,
	}
}

func (b *Builder) childLineCreate(p quotedomain.Period, gctx Context, tier quotedomain.TierRow, refID string) quotedomain.GraphRecord {
	fields := map[string]any{
		"QuoteId":              gctx.QuoteID,
		"Product2Id":           tier.ProductID,
		"Quantity":             tier.Quantity,
		"StartDate":            p.Start.String(),
		"EndDate":              p.End.String(),
		"SubscriptionTerm":     1,
		"SubscriptionTermUnit": subscriptionTermUnit,
		"PeriodBoundary":       periodBoundary,
	}
	if gctx.BillingFrequency != "" {
		fields["BillingFrequency"] = gctx.BillingFrequency
	}
	if tier.PriceBookEntryID != "" {
		fields["PricebookEntryId"] = tier.PriceBookEntryID
	}
	if p.Index > 1 {
		fields["QuoteLineGroupId"] = quotedomain.PendingRef(groupRefID(p.Index))
	}
	if tier.DiscountPct.IsPositive() {
		fields["Discount"] = tier.DiscountPct
	}
	return quotedomain.GraphRecord{
		ReferenceID: refID,
		Entity:      quotedomain.EntityQuoteLine,
		Method:      quotedomain.MethodCreate,
		Fields:      fields,
	}
}

func (b *Builder) relationshipCreate(gctx Context, parent quotedomain.Ref, childRef, refID string) quotedomain.GraphRecord {
	return quotedomain.GraphRecord{
		ReferenceID: refID,
		Entity:      quotedomain.EntityLineRelationship,
		Method:      quotedomain.MethodCreate,
		Fields: map[string]any{
			"MainQuoteLineId":            parent,
			"AssociatedQuoteLineId":      quotedomain.PendingRef(childRef),
			"ProductRelationshipTypeId":  gctx.RelationshipTypeID,
			"AssociatedQuoteLinePricing": relationshipPricing,
		},
	}
}

func groupRefID(periodIndex int) string {
	return fmt.Sprintf("refGroup_P%d", periodIndex)
}
