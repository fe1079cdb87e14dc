package dates

import (
	"time"

	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

// Inclusivity selects which edges of a date window count as inside it, using
// interval notation.
type Inclusivity string

const (
	BothClosed  Inclusivity = "[]"
	BothOpen    Inclusivity = "()"
	LeftClosed  Inclusivity = "[)"
	RightClosed Inclusivity = "(]"
)

// ParseInclusivity validates an interval notation string.
func ParseInclusivity(s string) (Inclusivity, error) {
	switch i := Inclusivity(s); i {
	case BothClosed, BothOpen, LeftClosed, RightClosed:
		return i, nil
	default:
		return "", apperrors.NewValidation("unknown inclusivity %q", s)
	}
}

func (i Inclusivity) startClosed() bool { return i == BothClosed || i == LeftClosed }
func (i Inclusivity) endClosed() bool   { return i == BothClosed || i == RightClosed }

// windowMonths is the width of the renewal window before an anniversary.
const windowMonths = 2

// IsBetweenTwoMonths reports whether input falls in the window that opens two
// months before compare and closes on compare, at day granularity. An unknown
// inclusivity never matches.
func IsBetweenTwoMonths(input, compare time.Time, incl Inclusivity) bool {
	if _, err := ParseInclusivity(string(incl)); err != nil {
		return false
	}
	d := StartOfDay(input)
	start := SubtractMonths(compare, windowMonths)
	end := StartOfDay(compare)

	afterStart := d.After(start) || (incl.startClosed() && d.Equal(start))
	beforeEnd := d.Before(end) || (incl.endClosed() && d.Equal(end))
	return afterStart && beforeEnd
}
