// Package pivot holds the "as-of" calendar date used to browse charts and
// deletions as they were at an earlier point in time.
//
// A Date is a plain value. It is parsed once at the request boundary and
// passed explicitly to every resolution and scoring call.
package pivot

import (
	"errors"
	"strings"
	"time"

	"github.com/okian/chartrank/internal/domain/errs"
)

// Layout is the compact wire form of a pivot date.
const Layout = "20060102"

// isoLayout is accepted as an alternative input form.
const isoLayout = "2006-01-02"

// Sentinel causes for InvalidPivot errors.
var (
	ErrDateInvalid    = errors.New("date is invalid")
	ErrDateOutOfRange = errors.New("date out of range")
)

// Date is an optional calendar date. The zero value means "no pivot": resolve
// current attributes and treat today as the reference for deletions.
type Date struct {
	day time.Time
	set bool
}

// None returns the unset pivot.
func None() Date { return Date{} }

// On returns a pivot for the calendar day of t, in t's location.
func On(t time.Time) Date {
	return Date{day: Day(t), set: true}
}

// MustParse parses raw with Parse and panics on error. Intended for tests and
// constant tables.
func MustParse(raw string) Date {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// Parse reads YYYYMMDD or YYYY-MM-DD. An empty string yields None.
func Parse(raw string) (Date, error) {
	const op = "pivot.parse"
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return None(), nil
	}
	layout := Layout
	if strings.Contains(raw, "-") {
		layout = isoLayout
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return None(), errs.WrapKind(op, errs.ErrInvalidPivot, ErrDateInvalid)
	}
	return On(t), nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsSet reports whether a pivot date is present.
func (d Date) IsSet() bool { return d.set }

// Time returns the pivot day and whether it is set.
func (d Date) Time() (time.Time, bool) { return d.day, d.set }

// Reference returns the pivot day, or the calendar day of now when unset.
func (d Date) Reference(now time.Time) time.Time {
	if d.set {
		return d.day
	}
	return Day(now)
}

// Within reports whether the pivot lies in the half-open interval
// [start, end). An unset pivot is never within any interval.
func (d Date) Within(start, end time.Time) bool {
	if !d.set {
		return false
	}
	return !d.day.Before(Day(start)) && d.day.Before(Day(end))
}

// String renders the pivot in Layout form, or "" when unset.
func (d Date) String() string {
	if !d.set {
		return ""
	}
	return d.day.Format(Layout)
}

// Parser parses pivots and enforces the supported range.
type Parser struct {
	// Low is the earliest accepted pivot. A zero Low disables the check.
	Low time.Time
}

// Parse parses raw and rejects days before p.Low.
func (p Parser) Parse(raw string) (Date, error) {
	const op = "pivot.parse"
	d, err := Parse(raw)
	if err != nil {
		return None(), err
	}
	if d.set && !p.Low.IsZero() && d.day.Before(Day(p.Low)) {
		return None(), errs.WrapKind(op, errs.ErrInvalidPivot, ErrDateOutOfRange)
	}
	return d, nil
}
