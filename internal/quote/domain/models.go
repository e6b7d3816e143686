package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Cadence controls how a quote term is split into subscription periods.
type Cadence string

const (
	CadenceYearly    Cadence = "yearly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceMonthly   Cadence = "monthly"
	CadenceCustom    Cadence = "custom"
)

func ParseCadence(raw string) (Cadence, error) {
	switch Cadence(strings.ToLower(strings.TrimSpace(raw))) {
	case CadenceYearly:
		return CadenceYearly, nil
	case CadenceQuarterly:
		return CadenceQuarterly, nil
	case CadenceMonthly:
		return CadenceMonthly, nil
	case CadenceCustom:
		return CadenceCustom, nil
	default:
		return "", ErrInvalidCadence
	}
}

// TierKind names a seat tier row inside a period.
type TierKind string

const (
	TierViewer    TierKind = "viewer"
	TierStandard  TierKind = "standard"
	TierDeveloper TierKind = "developer"

	// TierPlatform is the selected platform product itself, emitted as
	// a quantity-one child row under each period's bundle line.
	TierPlatform TierKind = "platform"

	// TierNonProd is the ancillary non-production environment add-on.
	// It carries no seat count semantics and is always emitted last.
	TierNonProd TierKind = "non_prod"
)

// TierRow is one priced row under a period's primary product.
type TierRow struct {
	Kind             TierKind        `json:"kind"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	DiscountPct      decimal.Decimal `json:"discount_pct"`
	ProductID        string          `json:"product_id,omitempty"`
	PriceBookEntryID string          `json:"price_book_entry_id,omitempty"`
}

// Resolved reports whether the row can be submitted to the backend.
func (r TierRow) Resolved() bool {
	return strings.TrimSpace(r.ProductID) != ""
}

// Period is one contiguous slice of the quote term. Start and End are
// inclusive civil dates stored at UTC midnight.
type Period struct {
	ID    string  `json:"id,omitempty"`
	Index int     `json:"index"`
	Name  string  `json:"name"`
	Start DateUTC `json:"start"`
	End   DateUTC `json:"end"`

	ProductID        string          `json:"product_id,omitempty"`
	PriceBookEntryID string          `json:"price_book_entry_id,omitempty"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Currency         string          `json:"currency,omitempty"`
	DiscountPct      decimal.Decimal `json:"discount_pct"`

	Tiers []TierRow `json:"tiers,omitempty"`
}

// Days returns the inclusive length of the period in days.
func (p Period) Days() int {
	return int(p.End.Time().Sub(p.Start.Time()).Hours()/24) + 1
}

// DateUTC is a civil date serialized as YYYY-MM-DD and normalized to
// UTC midnight in memory.
type DateUTC struct {
	t time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) DateUTC {
	return DateUTC{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) DateUTC {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func ParseDate(raw string) (DateUTC, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return DateUTC{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

func (d DateUTC) Time() time.Time { return d.t }

func (d DateUTC) IsZero() bool { return d.t.IsZero() }

func (d DateUTC) String() string { return d.t.Format(dateLayout) }

func (d DateUTC) After(o DateUTC) bool { return d.t.After(o.t) }

func (d DateUTC) Before(o DateUTC) bool { return d.t.Before(o.t) }

func (d DateUTC) Equal(o DateUTC) bool { return d.t.Equal(o.t) }

// AddDate mirrors time.Time.AddDate on the underlying civil date.
func (d DateUTC) AddDate(years, months, days int) DateUTC {
	return DateOf(d.t.AddDate(years, months, days))
}

func (d DateUTC) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *DateUTC) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*d = DateUTC{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var (
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidCadence     = errors.New("invalid_cadence")
	ErrInvalidStartDate   = errors.New("invalid_start_date")
	ErrTermTooLong        = errors.New("term_too_long")
	ErrPeriodTooLong      = errors.New("period_too_long")
	ErrTooManyPeriods     = errors.New("too_many_periods")
	ErrPeriodsNotOrdered  = errors.New("periods_not_ordered")
	ErrMissingPeriods     = errors.New("missing_periods")
	ErrMissingPrimaryLine = errors.New("missing_primary_line")
	ErrQuoteNotFound      = errors.New("quote_not_found")
)
