package expiry

import (
	"time"

	"github.com/turtacn/vehicle-test-records/internal/domain/dates"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

// StrategyName identifies an expiry calculation in rule tables.
type StrategyName string

const (
	StrategyDefault                 StrategyName = "Default"
	StrategyMostRecent              StrategyName = "MostRecent"
	StrategyRegistrationAnniversary StrategyName = "RegistrationAnniversary"
	StrategyHgvTrlFirstTest         StrategyName = "HgvTrlFirstTest"
	StrategyHgvTrlAnnual            StrategyName = "HgvTrlAnnual"
	StrategyHgvTrlMostRecent        StrategyName = "HgvTrlMostRecent"
	StrategyUnimplemented           StrategyName = "Unimplemented"
)

// Context carries the inputs of one expiry calculation. It is built per test
// type per request and discarded afterwards.
type Context struct {
	TestTypeID       string
	VehicleType      testrecord.VehicleType
	TestDate         time.Time
	MostRecentExpiry time.Time
	Registration     time.Time
	HasHistory       bool
	HasRegistration  bool
}

// NewContext derives the history and registration flags from the raw inputs.
// registration is the submitted registration or first use date string.
func NewContext(testTypeID string, vt testrecord.VehicleType, testDate, mostRecentExpiry time.Time, registration string) Context {
	c := Context{
		TestTypeID:       testTypeID,
		VehicleType:      vt.Normalize(),
		TestDate:         dates.StartOfDay(testDate),
		MostRecentExpiry: dates.StartOfDay(mostRecentExpiry),
		HasHistory:       !dates.IsSentinel(mostRecentExpiry),
		HasRegistration:  dates.IsValidDate(registration),
	}
	if c.HasRegistration {
		reg, _ := dates.ParseDate(registration)
		c.Registration = dates.StartOfDay(reg)
	}
	return c
}

// Strategy computes an expiry date.
type Strategy interface {
	Name() StrategyName
	Compute(c Context) (time.Time, error)
}

type strategyFunc struct {
	name StrategyName
	fn   func(c Context) (time.Time, error)
}

func (s strategyFunc) Name() StrategyName                   { return s.name }
func (s strategyFunc) Compute(c Context) (time.Time, error) { return s.fn(c) }

var strategies = map[StrategyName]Strategy{
	StrategyDefault:                 strategyFunc{StrategyDefault, computeDefault},
	StrategyMostRecent:              strategyFunc{StrategyMostRecent, computeMostRecent},
	StrategyRegistrationAnniversary: strategyFunc{StrategyRegistrationAnniversary, computeRegistrationAnniversary},
	StrategyHgvTrlFirstTest:         strategyFunc{StrategyHgvTrlFirstTest, computeHgvTrlFirstTest},
	StrategyHgvTrlAnnual:            strategyFunc{StrategyHgvTrlAnnual, computeHgvTrlAnnual},
	StrategyHgvTrlMostRecent:        strategyFunc{StrategyHgvTrlMostRecent, computeHgvTrlMostRecent},
	StrategyUnimplemented:           strategyFunc{StrategyUnimplemented, computeUnimplemented},
}

// LookupStrategy returns the strategy registered under name.
func LookupStrategy(name StrategyName) (Strategy, bool) {
	s, ok := strategies[name]
	return s, ok
}

// Unimplemented is returned by the selector when no rule matches.
func Unimplemented() Strategy {
	return strategies[StrategyUnimplemented]
}

// ─────────────────────────────────────────────────────────────────────────────
// Calculations
// ─────────────────────────────────────────────────────────────────────────────

// computeDefault: test date + 1 year - 1 day.
func computeDefault(c Context) (time.Time, error) {
	return dates.AddOneYearMinusOneDay(c.TestDate), nil
}

// computeMostRecent extends the current certificate by a year when the test
// happens within the two months before it expires.
func computeMostRecent(c Context) (time.Time, error) {
	if c.HasHistory && dates.IsBetweenTwoMonths(c.TestDate, c.MostRecentExpiry, dates.RightClosed) {
		return dates.AddOneYear(c.MostRecentExpiry), nil
	}
	return computeDefault(c)
}

// computeRegistrationAnniversary extends from the first registration
// anniversary when the first test happens within two months before it.
func computeRegistrationAnniversary(c Context) (time.Time, error) {
	if !c.HasRegistration {
		return computeDefault(c)
	}
	anniversary := dates.AddOneYear(c.Registration)
	if dates.IsBetweenTwoMonths(c.TestDate, anniversary, dates.BothClosed) {
		return dates.AddOneYear(anniversary), nil
	}
	return computeDefault(c)
}

func hgvTrlAnniversary(c Context, incl dates.Inclusivity) (time.Time, error) {
	if c.HasRegistration {
		anniversary := dates.GetLastDayOfMonthNextYear(c.Registration)
		if dates.IsBetweenTwoMonths(c.TestDate, anniversary, incl) {
			return dates.AddOneYear(dates.StartOfDay(anniversary)), nil
		}
	}
	return dates.GetLastDayOfMonthNextYear(c.TestDate), nil
}

// computeHgvTrlFirstTest anchors on the end of the registration anniversary
// month, window closed at its start.
func computeHgvTrlFirstTest(c Context) (time.Time, error) {
	return hgvTrlAnniversary(c, dates.LeftClosed)
}

// computeHgvTrlAnnual is the first test calculation with an open window.
func computeHgvTrlAnnual(c Context) (time.Time, error) {
	return hgvTrlAnniversary(c, dates.BothOpen)
}

// computeHgvTrlMostRecent extends the current expiry month by a year when the
// test happens within the two months before its end.
func computeHgvTrlMostRecent(c Context) (time.Time, error) {
	if c.HasHistory {
		monthEnd := dates.GetEndOfMonth(c.MostRecentExpiry)
		if dates.IsBetweenTwoMonths(c.TestDate, monthEnd, dates.LeftClosed) {
			return dates.GetLastDayOfMonthNextYear(c.MostRecentExpiry), nil
		}
	}
	return dates.GetLastDayOfMonthNextYear(c.TestDate), nil
}

func computeUnimplemented(c Context) (time.Time, error) {
	return time.Time{}, apperrors.New(apperrors.ErrCodeStrategyUnsupported, "no expiry strategy configured").
		WithDetail("vehicleType=" + string(c.VehicleType) + " testTypeId=" + c.TestTypeID)
}
