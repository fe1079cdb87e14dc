package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/testutil"
)

func TestBuildSelect_CurrentPushesFiltersIntoSQL(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	o := testrecord.ApplyQueryOptions(
		testrecord.WithStatus(testrecord.StatusSubmitted),
		testrecord.WithDateRange(&from, &to),
		testrecord.WithLimit(20),
	)

	query, args := buildSelect(columnTesterStaff, "staff-1", o)

	assert.Equal(t,
		"SELECT document FROM test_records WHERE tester_staff_id = $1"+
			" AND test_version = $2 AND test_status = $3 AND test_start >= $4 AND test_start <= $5"+
			" ORDER BY test_start DESC NULLS LAST, test_result_id LIMIT $6",
		query)
	assert.Equal(t, []any{"staff-1", "current", "submitted", from, to, 20}, args)
}

func TestBuildSelect_DefaultsToCurrentWithLimit(t *testing.T) {
	query, args := buildSelect(columnVIN, "VIN1", testrecord.ApplyQueryOptions())

	assert.Equal(t,
		"SELECT document FROM test_records WHERE vin = $1 AND test_version = $2"+
			" ORDER BY test_start DESC NULLS LAST, test_result_id LIMIT $3",
		query)
	assert.Equal(t, []any{"VIN1", "current", 500}, args)
}

func TestBuildSelect_ArchivedLoadsWholeKey(t *testing.T) {
	o := testrecord.ApplyQueryOptions(
		testrecord.WithVersion(testrecord.VersionFilterArchived),
		testrecord.WithStatus(testrecord.StatusSubmitted),
	)

	query, args := buildSelect(columnSystemNumber, "11000001", o)

	assert.Equal(t,
		"SELECT document FROM test_records WHERE system_number = $1 ORDER BY test_start DESC NULLS LAST, test_result_id",
		query)
	assert.Equal(t, []any{"11000001"}, args)
}

func withHistory(n int) *testrecord.TestRecord {
	current := testutil.NewPSVRecord()
	for i := 0; i < n; i++ {
		h := testutil.NewPSVRecord()
		h.TestVersion = testrecord.VersionArchived
		h.TestResultID = fmt.Sprintf("archived-%d", i)
		current.TestHistory = append(current.TestHistory, h)
	}
	return current
}

func TestSelectVersions(t *testing.T) {
	docs := []*testrecord.TestRecord{withHistory(2)}

	cases := []struct {
		name    string
		opts    []testrecord.QueryOption
		wantIDs []string
	}{
		{"current only", nil, []string{"b1a2c3d4-0001"}},
		{"archived flattens history", []testrecord.QueryOption{testrecord.WithVersion(testrecord.VersionFilterArchived)}, []string{"archived-0", "archived-1"}},
		{"all", []testrecord.QueryOption{testrecord.WithVersion(testrecord.VersionFilterAll)}, []string{"b1a2c3d4-0001", "archived-0", "archived-1"}},
		{"limit applies after flattening", []testrecord.QueryOption{testrecord.WithVersion(testrecord.VersionFilterAll), testrecord.WithLimit(2)}, []string{"b1a2c3d4-0001", "archived-0"}},
		{"status filter reaches history", []testrecord.QueryOption{testrecord.WithVersion(testrecord.VersionFilterArchived), testrecord.WithStatus(testrecord.StatusCancelled)}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := selectVersions(docs, testrecord.ApplyQueryOptions(tc.opts...))
			var ids []string
			for _, r := range got {
				ids = append(ids, r.TestResultID)
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}

func TestStoredVersion(t *testing.T) {
	assert.Equal(t, "current", storedVersion(""))
	assert.Equal(t, "current", storedVersion(testrecord.VersionCurrent))
	assert.Equal(t, "archived", storedVersion(testrecord.VersionArchived))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(fmt.Errorf("plain")))
}
