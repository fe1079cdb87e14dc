package expiry

import (
	"context"
	"time"

	"github.com/turtacn/vehicle-test-records/internal/domain/dates"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
)

// RecordHistory answers the most recent expiry of a vehicle from the stored
// current records of the same system number.
type RecordHistory struct {
	lookup testrecord.RecordLookup
}

// NewRecordHistory creates a HistorySource over lookup.
func NewRecordHistory(lookup testrecord.RecordLookup) *RecordHistory {
	return &RecordHistory{lookup: lookup}
}

// MostRecentExpiry returns the latest expiry date among submitted records of
// the vehicle, excluding r itself. It returns dates.EpochSentinel when none
// exists.
func (h *RecordHistory) MostRecentExpiry(ctx context.Context, r *testrecord.TestRecord) (time.Time, error) {
	if r == nil || r.SystemNumber == "" {
		return dates.EpochSentinel, nil
	}
	records, err := h.lookup.GetBySystemNumber(ctx, r.SystemNumber,
		testrecord.WithStatus(testrecord.StatusSubmitted),
		testrecord.WithVersion(testrecord.VersionFilterCurrent),
	)
	if err != nil {
		return time.Time{}, err
	}
	return MostRecentExpiryOf(records, r.TestResultID), nil
}

// MostRecentExpiryOf scans records for the latest expiry, skipping the record
// with testResultID.
func MostRecentExpiryOf(records []*testrecord.TestRecord, testResultID string) time.Time {
	var expiries []time.Time
	for _, rec := range records {
		if rec == nil || (testResultID != "" && rec.TestResultID == testResultID) {
			continue
		}
		for _, tt := range rec.TestTypes {
			if tt.TestExpiryDate != nil && dates.IsValidDate(*tt.TestExpiryDate) {
				expiries = append(expiries, *tt.TestExpiryDate)
			}
		}
	}
	if latest, ok := dates.MaxOf(expiries); ok {
		return latest
	}
	return dates.EpochSentinel
}
