// Package schedule splits a quote term into contiguous subscription
// periods driven by a ramp cadence.
package schedule

import (
	"fmt"

	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
)

const (
	// maxPeriods is a hard safety cap on the schedule walk.
	maxPeriods = 50

	maxTermYears = 5
)

// Build walks the quote term from start by the cadence step and closes
// each period one day before the next start. The final end is clamped
// to the term end.
//
// An absent end defaults to one year minus a day after start. A start
// after end collapses to a single degenerate period carrying the dates
// as given.
func Build(start, end quotedomain.DateUTC, cadence quotedomain.Cadence) ([]quotedomain.Period, error) {
	if start.IsZero() {
		return nil, quotedomain.ErrInvalidStartDate
	}
	if end.IsZero() {
		end = start.AddDate(1, 0, -1)
	}
	if start.After(end) {
		return []quotedomain.Period{{Index: 1, Name: periodName(cadence, 1), Start: start, End: end}}, nil
	}
	if err := ValidateTermSpan(start, end); err != nil {
		return nil, err
	}

	if cadence == quotedomain.CadenceCustom {
		if err := ValidatePeriodSpan(start, end); err != nil {
			return nil, err
		}
		return []quotedomain.Period{{Index: 1, Name: periodName(cadence, 1), Start: start, End: end}}, nil
	}

	var periods []quotedomain.Period
	cur := start
	for len(periods) < maxPeriods {
		next, err := step(cur, cadence)
		if err != nil {
			return nil, err
		}

		periodEnd := next.AddDate(0, 0, -1)
		if !periodEnd.Before(end) {
			periodEnd = end
		}

		idx := len(periods) + 1
		periods = append(periods, quotedomain.Period{
			Index: idx,
			Name:  periodName(cadence, idx),
			Start: cur,
			End:   periodEnd,
		})

		if periodEnd.Equal(end) {
			break
		}
		cur = next
	}

	return periods, nil
}

// ValidatePeriodCount rejects schedules beyond the hard period cap.
func ValidatePeriodCount(periods []quotedomain.Period) error {
	if len(periods) > maxPeriods {
		return quotedomain.ErrTooManyPeriods
	}
	return nil
}

// Contiguous verifies each period starts one day after the previous
// period ends.
func Contiguous(periods []quotedomain.Period) error {
	for i := 1; i < len(periods); i++ {
		want := periods[i-1].End.AddDate(0, 0, 1)
		if !periods[i].Start.Equal(want) {
			return quotedomain.ErrPeriodsNotOrdered
		}
	}
	return nil
}

// ValidateTermSpan rejects terms longer than five years.
func ValidateTermSpan(start, end quotedomain.DateUTC) error {
	if end.After(start.AddDate(maxTermYears, 0, -1)) {
		return quotedomain.ErrTermTooLong
	}
	return nil
}

// ValidatePeriodSpan rejects a single period longer than one year.
func ValidatePeriodSpan(start, end quotedomain.DateUTC) error {
	if end.After(start.AddDate(1, 0, -1)) {
		return quotedomain.ErrPeriodTooLong
	}
	return nil
}

func step(from quotedomain.DateUTC, cadence quotedomain.Cadence) (quotedomain.DateUTC, error) {
	switch cadence {
	case quotedomain.CadenceYearly:
		return from.AddDate(1, 0, 0), nil
	case quotedomain.CadenceQuarterly:
		return from.AddDate(0, 3, 0), nil
	case quotedomain.CadenceMonthly:
		return from.AddDate(0, 1, 0), nil
	default:
		return quotedomain.DateUTC{}, quotedomain.ErrInvalidCadence
	}
}

func periodName(cadence quotedomain.Cadence, idx int) string {
	switch cadence {
	case quotedomain.CadenceYearly:
		return fmt.Sprintf("Year %d", idx)
	case quotedomain.CadenceQuarterly:
		return fmt.Sprintf("Quarter %d", idx)
	case quotedomain.CadenceMonthly:
		return fmt.Sprintf("Month %d", idx)
	default:
		return fmt.Sprintf("Period %d", idx)
	}
}
