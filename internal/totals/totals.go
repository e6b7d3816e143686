// Package totals computes quote money amounts and term lengths for
// ramped subscription schedules.
package totals

import (
	"github.com/shopspring/decimal"
	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// PeriodTotal is the discounted primary product amount plus the
// discounted amount of every tier row.
func PeriodTotal(p quotedomain.Period) decimal.Decimal {
	total := p.UnitPrice.Mul(discountFactor(p.DiscountPct))
	for _, tier := range p.Tiers {
		total = total.Add(tierAmount(tier))
	}
	return total
}

// QuoteTotal sums the period totals across the whole schedule.
func QuoteTotal(periods []quotedomain.Period) decimal.Decimal {
	total := decimal.Zero
	for _, p := range periods {
		total = total.Add(PeriodTotal(p))
	}
	return total
}

// TermMonths measures a period in whole calendar months. The end date
// is inclusive, so the subtraction runs against end plus one day.
func TermMonths(start, end quotedomain.DateUTC) int {
	exclusiveEnd := end.AddDate(0, 0, 1)
	s, e := start.Time(), exclusiveEnd.Time()
	return (e.Year()-s.Year())*12 + int(e.Month()) - int(s.Month())
}

// PreviewLine is one row of the per-period confirmation preview.
type PreviewLine struct {
	Label       string          `json:"label"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Amount      decimal.Decimal `json:"amount"`
}

// PeriodPreview mirrors what the backend would bill for one period.
type PeriodPreview struct {
	Name       string              `json:"name"`
	Start      quotedomain.DateUTC `json:"start"`
	End        quotedomain.DateUTC `json:"end"`
	TermMonths int                 `json:"term_months"`
	Lines      []PreviewLine       `json:"lines"`
	Total      decimal.Decimal     `json:"total"`
}

// BuildPreview renders the schedule into per-period previews plus the
// quote total.
func BuildPreview(periods []quotedomain.Period) ([]PeriodPreview, decimal.Decimal) {
	previews := make([]PeriodPreview, 0, len(periods))
	for _, p := range periods {
		preview := PeriodPreview{
			Name:       p.Name,
			Start:      p.Start,
			End:        p.End,
			TermMonths: TermMonths(p.Start, p.End),
		}

		preview.Lines = append(preview.Lines, PreviewLine{
			Label:       "Platform",
			Quantity:    1,
			UnitPrice:   p.UnitPrice,
			DiscountPct: p.DiscountPct,
			Amount:      p.UnitPrice.Mul(discountFactor(p.DiscountPct)),
		})
		for _, tier := range p.Tiers {
			if tier.Quantity <= 0 {
				continue
			}
			preview.Lines = append(preview.Lines, PreviewLine{
				Label:       string(tier.Kind),
				Quantity:    tier.Quantity,
				UnitPrice:   tier.UnitPrice,
				DiscountPct: tier.DiscountPct,
				Amount:      tierAmount(tier),
			})
		}

		preview.Total = PeriodTotal(p)
		previews = append(previews, preview)
	}
	return previews, QuoteTotal(periods)
}

func tierAmount(tier quotedomain.TierRow) decimal.Decimal {
	if tier.Quantity <= 0 {
		return decimal.Zero
	}
	quantity := decimal.NewFromInt(int64(tier.Quantity))
	return quantity.Mul(tier.UnitPrice).Mul(discountFactor(tier.DiscountPct))
}

func discountFactor(pct decimal.Decimal) decimal.Decimal {
	if pct.LessThanOrEqual(decimal.Zero) {
		return one
	}
	return one.Sub(pct.Div(hundred))
}
