package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/vehicle-test-records/internal/domain/dates"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

var testDay = time.Date(2024, time.March, 10, 14, 0, 0, 0, time.UTC)

func ctxWith(testDate time.Time, mostRecent, registration string) Context {
	mre := dates.EpochSentinel
	if mostRecent != "" {
		mre = dates.MustParse(mostRecent)
	}
	return NewContext("1", testrecord.VehicleTypePSV, testDate, mre, registration)
}

func compute(t *testing.T, name StrategyName, c Context) string {
	t.Helper()
	s, ok := LookupStrategy(name)
	require.True(t, ok, "strategy %s not registered", name)
	got, err := s.Compute(c)
	require.NoError(t, err)
	return dates.FormatDate(got)
}

func TestNewContext_Flags(t *testing.T) {
	c := NewContext("3", "PSV ", testDay, dates.EpochSentinel, "")
	assert.Equal(t, testrecord.VehicleTypePSV, c.VehicleType)
	assert.False(t, c.HasHistory)
	assert.False(t, c.HasRegistration)
	assert.Equal(t, "2024-03-10", dates.FormatDate(c.TestDate))
	assert.Equal(t, 0, c.TestDate.Hour())

	c = NewContext("3", "psv", testDay, dates.MustParse("2024-04-01"), "2020-01-15")
	assert.True(t, c.HasHistory)
	assert.True(t, c.HasRegistration)
	assert.Equal(t, "2020-01-15", dates.FormatDate(c.Registration))

	c = NewContext("3", "psv", testDay, dates.EpochSentinel, "not-a-date")
	assert.False(t, c.HasRegistration)
	assert.True(t, c.Registration.IsZero())
}

func TestDefaultStrategy(t *testing.T) {
	assert.Equal(t, "2025-03-09", compute(t, StrategyDefault, ctxWith(testDay, "", "")))

	leap := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-02-28", compute(t, StrategyDefault, ctxWith(leap, "", "")))
}

func TestMostRecentStrategy(t *testing.T) {
	cases := []struct {
		name       string
		mostRecent string
		want       string
	}{
		{"inside window", "2024-04-20", "2025-04-20"},
		{"expiry on test day is inside", "2024-03-10", "2025-03-10"},
		{"window start is excluded", "2024-05-10", "2025-03-09"},
		{"expiry too far ahead", "2024-06-01", "2025-03-09"},
		{"expiry already passed", "2024-02-01", "2025-03-09"},
		{"no history", "", "2025-03-09"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, compute(t, StrategyMostRecent, ctxWith(testDay, tc.mostRecent, "")))
		})
	}
}

func TestRegistrationAnniversaryStrategy(t *testing.T) {
	cases := []struct {
		name         string
		registration string
		want         string
	}{
		{"anniversary inside window", "2023-04-15", "2025-04-15"},
		{"window start is included", "2023-05-10", "2025-05-10"},
		{"anniversary on test day", "2023-03-10", "2025-03-10"},
		{"anniversary long passed", "2022-04-15", "2025-03-09"},
		{"anniversary beyond window", "2023-06-15", "2025-03-09"},
		{"no registration", "", "2025-03-09"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, compute(t, StrategyRegistrationAnniversary, ctxWith(testDay, "", tc.registration)))
		})
	}
}

func TestHgvTrlFirstTestAndAnnual(t *testing.T) {
	// registration 2023-04-15 anchors on 2024-04-30, window opens 2024-02-29.
	cases := []struct {
		name         string
		testDate     time.Time
		registration string
		firstTest    string
		annual       string
	}{
		{"inside window", testDay, "2023-04-15", "2025-04-30", "2025-04-30"},
		{"window start", time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC), "2023-04-15", "2025-04-30", "2025-02-28"},
		{"outside window", testDay, "2022-01-10", "2025-03-31", "2025-03-31"},
		{"no registration", testDay, "", "2025-03-31", "2025-03-31"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := ctxWith(tc.testDate, "", tc.registration)
			assert.Equal(t, tc.firstTest, compute(t, StrategyHgvTrlFirstTest, c))
			assert.Equal(t, tc.annual, compute(t, StrategyHgvTrlAnnual, c))
		})
	}
}

func TestHgvTrlMostRecentStrategy(t *testing.T) {
	cases := []struct {
		name       string
		mostRecent string
		want       string
	}{
		{"inside window", "2024-04-15", "2025-04-30"},
		{"window opens after test day", "2024-05-09", "2025-03-31"},
		{"expiry too far ahead", "2024-06-15", "2025-03-31"},
		{"no history", "", "2025-03-31"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, compute(t, StrategyHgvTrlMostRecent, ctxWith(testDay, tc.mostRecent, "")))
		})
	}
}

func TestUnimplementedStrategy(t *testing.T) {
	s := Unimplemented()
	assert.Equal(t, StrategyUnimplemented, s.Name())

	_, err := s.Compute(ctxWith(testDay, "", ""))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStrategyUnsupported))
	assert.True(t, apperrors.IsConfigIntegrity(err))
}

func TestLookupStrategy_Unknown(t *testing.T) {
	_, ok := LookupStrategy("Bogus")
	assert.False(t, ok)
}
