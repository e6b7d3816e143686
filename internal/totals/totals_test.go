package totals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) quotedomain.DateUTC {
	return quotedomain.NewDate(y, m, d)
}

func TestPeriodTotal_PrimaryDiscountPlusTiers(t *testing.T) {
	period := quotedomain.Period{
		UnitPrice:   decimal.NewFromInt(1000),
		DiscountPct: decimal.NewFromInt(10),
		Tiers: []quotedomain.TierRow{
			{Kind: quotedomain.TierStandard, Quantity: 5, UnitPrice: decimal.NewFromInt(100)},
		},
	}

	// 1000 * 0.9 + 5 * 100 = 1400
	total := PeriodTotal(period)
	assert.True(t, total.Equal(decimal.NewFromInt(1400)), "got %s", total)
}

func TestPeriodTotal_TierDiscountApplied(t *testing.T) {
	period := quotedomain.Period{
		UnitPrice: decimal.NewFromInt(500),
		Tiers: []quotedomain.TierRow{
			{Kind: quotedomain.TierViewer, Quantity: 10, UnitPrice: decimal.NewFromInt(20), DiscountPct: decimal.NewFromInt(25)},
		},
	}

	// 500 + 10 * 20 * 0.75 = 650
	assert.True(t, PeriodTotal(period).Equal(decimal.NewFromInt(650)))
}

func TestPeriodTotal_ZeroQuantityTierIgnored(t *testing.T) {
	period := quotedomain.Period{
		UnitPrice: decimal.NewFromInt(100),
		Tiers: []quotedomain.TierRow{
			{Kind: quotedomain.TierDeveloper, Quantity: 0, UnitPrice: decimal.NewFromInt(999)},
		},
	}

	assert.True(t, PeriodTotal(period).Equal(decimal.NewFromInt(100)))
}

func TestQuoteTotal_SumsPeriods(t *testing.T) {
	periods := []quotedomain.Period{
		{UnitPrice: decimal.NewFromInt(1000), DiscountPct: decimal.NewFromInt(10)},
		{UnitPrice: decimal.NewFromInt(1100)},
	}

	assert.True(t, QuoteTotal(periods).Equal(decimal.NewFromInt(2000)))
}

func TestTermMonths_FullYear(t *testing.T) {
	assert.Equal(t, 12, TermMonths(date(2026, 1, 1), date(2026, 12, 31)))
}

func TestTermMonths_SingleQuarter(t *testing.T) {
	assert.Equal(t, 3, TermMonths(date(2026, 1, 1), date(2026, 3, 31)))
}

func TestTermMonths_CrossYearBoundary(t *testing.T) {
	assert.Equal(t, 6, TermMonths(date(2026, 10, 1), date(2027, 3, 31)))
}

func TestBuildPreview(t *testing.T) {
	periods := []quotedomain.Period{
		{
			Name:        "Year 1",
			Start:       date(2026, 1, 1),
			End:         date(2026, 12, 31),
			UnitPrice:   decimal.NewFromInt(1000),
			DiscountPct: decimal.NewFromInt(10),
			Tiers: []quotedomain.TierRow{
				{Kind: quotedomain.TierStandard, Quantity: 5, UnitPrice: decimal.NewFromInt(100)},
				{Kind: quotedomain.TierViewer, Quantity: 0, UnitPrice: decimal.NewFromInt(10)},
			},
		},
	}

	previews, total := BuildPreview(periods)
	require.Len(t, previews, 1)

	preview := previews[0]
	assert.Equal(t, "Year 1", preview.Name)
	assert.Equal(t, 12, preview.TermMonths)

	// Zero-quantity tiers are left out of the preview rows.
	require.Len(t, preview.Lines, 2)
	assert.Equal(t, "Platform", preview.Lines[0].Label)
	assert.True(t, preview.Lines[0].Amount.Equal(decimal.NewFromInt(900)))
	assert.True(t, preview.Total.Equal(decimal.NewFromInt(1400)))
	assert.True(t, total.Equal(decimal.NewFromInt(1400)))
}
