// Package dates provides day-granular calendar arithmetic and the strict date
// validation used by the expiry decision engine. Every function is pure and
// returns new values; inputs are never mutated.
package dates

import (
	"time"

	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

// Accepted input layouts. Parsing is strict: fractional seconds must have
// exactly three digits and no other layout is tried.
const (
	LayoutDate                  = "2006-01-02"
	LayoutTimestampMillis       = "2006-01-02T15:04:05.000Z07:00"
	LayoutTimestampMillisNoZone = "2006-01-02T15:04:05.000"
)

var acceptedLayouts = []string{
	LayoutDate,
	LayoutTimestampMillis,
	LayoutTimestampMillisNoZone,
}

// EpochSentinel is the placeholder meaning "no prior expiry known". History
// sources return it instead of a nil date, and equality against it decides
// whether a vehicle has test history.
var EpochSentinel = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// ─────────────────────────────────────────────────────────────────────────────
// Parsing and validation
// ─────────────────────────────────────────────────────────────────────────────

// IsValidDate reports whether v is a string in one of the accepted layouts, or
// a non-zero time.Time, and falls strictly after EpochSentinel at day
// granularity. Nil, empty strings and anything else are rejected.
func IsValidDate(v interface{}) bool {
	t, ok := toTime(v)
	if !ok {
		return false
	}
	return StartOfDay(t).After(EpochSentinel)
}

// ParseDate converts v using the same rules as IsValidDate but returns the
// parsed value. The epoch check is not applied.
func ParseDate(v interface{}) (time.Time, error) {
	t, ok := toTime(v)
	if !ok {
		return time.Time{}, apperrors.New(apperrors.ErrCodeInvalidDate, "unparseable date").
			WithDetail(describe(v))
	}
	return t, nil
}

// MustParse parses s or panics. Intended for constants and tests.
func MustParse(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func toTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x.UTC(), !x.IsZero()
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return x.UTC(), true
	case string:
		return parseString(x)
	case *string:
		if x == nil {
			return time.Time{}, false
		}
		return parseString(*x)
	default:
		return time.Time{}, false
	}
}

func parseString(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func describe(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return x
	case *string:
		if x == nil {
			return "<nil>"
		}
		return *x
	default:
		return "unsupported type"
	}
}

// IsSentinel reports whether t is the epoch sentinel at day granularity.
func IsSentinel(t time.Time) bool {
	return StartOfDay(t).Equal(EpochSentinel)
}

// FormatDate renders t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(LayoutDate)
}

// ─────────────────────────────────────────────────────────────────────────────
// Arithmetic
// ─────────────────────────────────────────────────────────────────────────────

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths shifts t by n calendar months. When the target month is shorter
// the day is clamped to its last day (31 Jan + 1 month = 28/29 Feb).
func AddMonths(t time.Time, n int) time.Time {
	t = StartOfDay(t)
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// SubtractMonths is AddMonths with a negated count.
func SubtractMonths(t time.Time, n int) time.Time {
	return AddMonths(t, -n)
}

// AddDays shifts t by n days at day granularity.
func AddDays(t time.Time, n int) time.Time {
	return StartOfDay(t).AddDate(0, 0, n)
}

// AddOneYear returns the same month and day one year later. 29 February maps
// to 28 February.
func AddOneYear(t time.Time) time.Time {
	return AddMonths(t, 12)
}

// AddOneYearMinusOneDay returns AddOneYear(t) minus one day, except that
// 29 February of a leap year maps to 28 February of the following year.
func AddOneYearMinusOneDay(t time.Time) time.Time {
	if isLeapDay(t) {
		return AddOneYear(t)
	}
	return AddDays(AddOneYear(t), -1)
}

// GetEndOfMonth returns the last calendar day of t's month.
func GetEndOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, daysIn(y, m), 0, 0, 0, 0, time.UTC)
}

// AddOneYearEndOfMonth moves t to the end of its month and then adds one year.
// Unlike GetLastDayOfMonthNextYear the result is not re-anchored, so
// 28 Feb 2023 becomes 28 Feb 2024.
func AddOneYearEndOfMonth(t time.Time) time.Time {
	return AddOneYear(GetEndOfMonth(t))
}

// GetLastDayOfMonthNextYear returns the last day of the month one year after t.
func GetLastDayOfMonthNextYear(t time.Time) time.Time {
	return GetEndOfMonth(AddOneYear(t))
}

// MaxOf returns the latest date in ds. ok is false for an empty slice.
func MaxOf(ds []time.Time) (latest time.Time, ok bool) {
	if len(ds) == 0 {
		return time.Time{}, false
	}
	latest = ds[0]
	for _, d := range ds[1:] {
		if d.After(latest) {
			latest = d
		}
	}
	return latest, true
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isLeapDay(t time.Time) bool {
	_, m, d := t.UTC().Date()
	return m == time.February && d == 29
}
