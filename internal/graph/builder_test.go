package graph

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testContext() Context {
	return Context{
		QuoteID:            "0Q0000001",
		PriceBookID:        "01s000001",
		RelationshipTypeID: "0yR000001",
		MainLineID:         "0QL000001",

		BundleProductID:        "01t00000X",
		BundlePriceBookEntryID: "01u00000X",

		SegmentType:      "Yearly",
		BillingFrequency: "Annual",
		TotalPeriods:     3,
	}
}

func testPeriod(idx int) quotedomain.Period {
	return quotedomain.Period{
		Index:            idx,
		Name:             "Year 2",
		Start:            quotedomain.NewDate(2027, time.January, 1),
		End:              quotedomain.NewDate(2027, time.December, 31),
		ProductID:        "01t00000A",
		PriceBookEntryID: "01u00000A",
		UnitPrice:        decimal.NewFromInt(1000),
		Tiers: []quotedomain.TierRow{
			{Kind: quotedomain.TierStandard, Quantity: 5, UnitPrice: decimal.NewFromInt(100), ProductID: "01t00000B", PriceBookEntryID: "01u00000B"},
			{Kind: quotedomain.TierViewer, Quantity: 3, UnitPrice: decimal.NewFromInt(20), ProductID: "01t00000C"},
		},
	}
}

func TestPeriodGraph_LaterPeriodOrdering(t *testing.T) {
	b := NewBuilder(zap.NewNop())

	records, warnings, err := b.PeriodGraph(testPeriod(2), testContext())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, records, 9)

	assert.Equal(t, quotedomain.EntityQuote, records[0].Entity)
	assert.Equal(t, quotedomain.MethodUpdate, records[0].Method)
	assert.Equal(t, quotedomain.EntityQuoteLineGroup, records[1].Entity)

	// The bundle parent line, then the platform child pair, then tiers.
	parent := records[2]
	assert.Equal(t, quotedomain.EntityQuoteLine, parent.Entity)
	assert.Equal(t, "refParentLine_P2", parent.ReferenceID)
	assert.Equal(t, "01t00000X", parent.Fields["Product2Id"])
	assert.Equal(t, "01u00000X", parent.Fields["PricebookEntryId"])

	assert.Equal(t, quotedomain.EntityQuoteLine, records[3].Entity)
	assert.Equal(t, "01t00000A", records[3].Fields["Product2Id"])
	assert.Equal(t, 1, records[3].Fields["Quantity"])
	assert.Equal(t, quotedomain.EntityLineRelationship, records[4].Entity)
	assert.Equal(t, quotedomain.EntityQuoteLine, records[5].Entity)
	assert.Equal(t, quotedomain.EntityLineRelationship, records[6].Entity)
	assert.Equal(t, quotedomain.EntityQuoteLine, records[7].Entity)
	assert.Equal(t, quotedomain.EntityLineRelationship, records[8].Entity)
}

// Every relationship must point at the child line created immediately
// before it.
func TestPeriodGraph_RelationshipAdjacency(t *testing.T) {
	b := NewBuilder(zap.NewNop())

	records, _, err := b.PeriodGraph(testPeriod(2), testContext())
	require.NoError(t, err)

	for i, rec := range records {
		if rec.Entity != quotedomain.EntityLineRelationship {
			continue
		}
		require.Greater(t, i, 0)
		prev := records[i-1]
		assert.Equal(t, quotedomain.EntityQuoteLine, prev.Entity)
		assert.Equal(t, quotedomain.MethodCreate, prev.Method)

		child, ok := rec.Fields["AssociatedQuoteLineId"].(quotedomain.Ref)
		require.True(t, ok)
		refID, pending := child.Pending()
		require.True(t, pending)
		assert.Equal(t, prev.ReferenceID, refID)
	}
}

func TestPeriodGraph_LaterPeriodParentIsForwardRef(t *testing.T) {
	b := NewBuilder(zap.NewNop())

	records, _, err := b.PeriodGraph(testPeriod(2), testContext())
	require.NoError(t, err)

	rel := records[4]
	parent, ok := rel.Fields["MainQuoteLineId"].(quotedomain.Ref)
	require.True(t, ok)
	refID, pending := parent.Pending()
	require.True(t, pending)
	assert.Equal(t, "refParentLine_P2", refID)
}

func TestPeriodGraph_FirstPeriodUsesPersistedMainLine(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	gctx := testContext()

	records, _, err := b.PeriodGraph(testPeriod(1), gctx)
	require.NoError(t, err)
	// No group or parent line create for the first period.
	require.Len(t, records, 7)

	// The platform child hangs off the persisted main line.
	assert.Equal(t, "01t00000A", records[1].Fields["Product2Id"])
	assert.Equal(t, 1, records[1].Fields["Quantity"])

	rel := records[2]
	require.Equal(t, quotedomain.EntityLineRelationship, rel.Entity)
	parent, ok := rel.Fields["MainQuoteLineId"].(quotedomain.Ref)
	require.True(t, ok)
	id, known := parent.Known()
	require.True(t, known)
	assert.Equal(t, gctx.MainLineID, id)
}

func TestPeriodGraph_FirstPeriodRequiresMainLine(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	gctx := testContext()
	gctx.MainLineID = ""

	_, _, err := b.PeriodGraph(testPeriod(1), gctx)
	assert.ErrorIs(t, err, quotedomain.ErrMissingPrimaryLine)
}

func TestPeriodGraph_LaterPeriodRequiresBundleProduct(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	gctx := testContext()
	gctx.BundleProductID = ""

	_, _, err := b.PeriodGraph(testPeriod(2), gctx)
	assert.ErrorIs(t, err, quotedomain.ErrMissingPrimaryLine)
}

// Each period carries the platform product as a quantity-one child
// line with its relationship, ahead of the tier rows.
func TestPeriodGraph_PlatformChildInEveryPeriod(t *testing.T) {
	b := NewBuilder(zap.NewNop())

	for _, idx := range []int{1, 2} {
		records, _, err := b.PeriodGraph(testPeriod(idx), testContext())
		require.NoError(t, err)

		found := -1
		for i, rec := range records {
			if rec.Entity == quotedomain.EntityQuoteLine && rec.IsCreate() && rec.Fields["Product2Id"] == "01t00000A" {
				found = i
				break
			}
		}
		require.GreaterOrEqual(t, found, 0, "period %d has no platform child", idx)

		platform := records[found]
		assert.Equal(t, 1, platform.Fields["Quantity"])
		require.Greater(t, len(records), found+1)
		rel := records[found+1]
		assert.Equal(t, quotedomain.EntityLineRelationship, rel.Entity)
		child, ok := rel.Fields["AssociatedQuoteLineId"].(quotedomain.Ref)
		require.True(t, ok)
		refID, pending := child.Pending()
		require.True(t, pending)
		assert.Equal(t, platform.ReferenceID, refID)
	}
}

func TestPeriodGraph_FirstPeriodStampsPersistedLines(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	gctx := testContext()
	gctx.ExistingLineIDs = []string{"0QL000001", "0QL000002"}
	period := testPeriod(1)

	records, _, err := b.PeriodGraph(period, gctx)
	require.NoError(t, err)
	require.Len(t, records, 9)

	for i, lineID := range gctx.ExistingLineIDs {
		update := records[1+i]
		assert.Equal(t, quotedomain.EntityQuoteLine, update.Entity)
		assert.Equal(t, quotedomain.MethodUpdate, update.Method)
		target, known := update.Target.Known()
		require.True(t, known)
		assert.Equal(t, lineID, target)

		assert.Equal(t, 1, update.Fields["SubscriptionTerm"])
		assert.Equal(t, "Anual", update.Fields["SubscriptionTermUnit"])
		assert.Equal(t, "Anniversary", update.Fields["PeriodBoundary"])
		assert.Equal(t, "Annual", update.Fields["BillingFrequency"])
		assert.Equal(t, period.Start.String(), update.Fields["StartDate"])
		assert.Equal(t, period.End.String(), update.Fields["EndDate"])
	}

	// Term stamps precede the platform child pair.
	assert.Equal(t, quotedomain.EntityLineRelationship, records[4].Entity)
}

func TestPeriodGraph_UnresolvedTierSkippedWithWarning(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	period := testPeriod(2)
	period.Tiers = append(period.Tiers, quotedomain.TierRow{
		Kind: quotedomain.TierDeveloper, Quantity: 2, UnitPrice: decimal.NewFromInt(50),
	})

	records, warnings, err := b.PeriodGraph(period, testContext())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, quotedomain.TierDeveloper, warnings[0].Tier)
	assert.Equal(t, "product_unresolved", warnings[0].Code)
	assert.Equal(t, 2, warnings[0].PeriodIndex)
	// Same record count as without the broken row.
	require.Len(t, records, 9)
}

func TestPeriodGraph_ZeroQuantityTierOmitted(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	period := testPeriod(2)
	period.Tiers[1].Quantity = 0

	records, warnings, err := b.PeriodGraph(period, testContext())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, records, 7)
}

func TestPeriodGraph_NonProdEmittedLast(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	period := testPeriod(2)
	period.Tiers = []quotedomain.TierRow{
		{Kind: quotedomain.TierNonProd, Quantity: 1, UnitPrice: decimal.NewFromInt(200), ProductID: "01t00000N"},
		{Kind: quotedomain.TierStandard, Quantity: 5, UnitPrice: decimal.NewFromInt(100), ProductID: "01t00000B"},
	}

	records, _, err := b.PeriodGraph(period, testContext())
	require.NoError(t, err)

	var products []string
	for _, rec := range records {
		if rec.Entity == quotedomain.EntityQuoteLine && rec.IsCreate() && rec.ReferenceID != "refParentLine_P2" {
			products = append(products, rec.Fields["Product2Id"].(string))
		}
	}
	require.Equal(t, []string{"01t00000A", "01t00000B", "01t00000N"}, products)
}

func TestPeriodGraph_DiscountOnlyWhenPositive(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	period := testPeriod(2)
	period.DiscountPct = decimal.NewFromInt(10)
	period.Tiers[0].DiscountPct = decimal.Zero

	records, _, err := b.PeriodGraph(period, testContext())
	require.NoError(t, err)

	// The period discount lands on the platform child, never on the
	// bundle parent.
	parent := records[2]
	_, hasDiscount := parent.Fields["Discount"]
	assert.False(t, hasDiscount)

	platform := records[3]
	_, hasDiscount = platform.Fields["Discount"]
	assert.True(t, hasDiscount)

	child := records[5]
	_, hasDiscount = child.Fields["Discount"]
	assert.False(t, hasDiscount)
}

func TestGroupingGraph(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	first := testPeriod(1)
	first.Name = "Year 1"

	records, err := b.GroupingGraph(first, testContext())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, quotedomain.EntityQuote, records[0].Entity)

	group := records[1]
	assert.Equal(t, quotedomain.EntityQuoteLineGroup, group.Entity)
	assert.Equal(t, "refGroup_P1", group.ReferenceID)
	assert.Equal(t, "Year 1", group.Fields["Name"])
	assert.Equal(t, true, group.Fields["IsRamped"])

	reparent := records[2]
	assert.Equal(t, quotedomain.MethodUpdate, reparent.Method)
	target, known := reparent.Target.Known()
	require.True(t, known)
	assert.Equal(t, "0QL000001", target)

	groupRef, ok := reparent.Fields["QuoteLineGroupId"].(quotedomain.Ref)
	require.True(t, ok)
	refID, pending := groupRef.Pending()
	require.True(t, pending)
	assert.Equal(t, "refGroup_P1", refID)

	// The re-parenting update moves the line and nothing else.
	assert.Len(t, reparent.Fields, 1)
}

func TestGroupingGraph_RequiresMainLine(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	gctx := testContext()
	gctx.MainLineID = ""

	_, err := b.GroupingGraph(testPeriod(1), gctx)
	assert.ErrorIs(t, err, quotedomain.ErrMissingPrimaryLine)
}
