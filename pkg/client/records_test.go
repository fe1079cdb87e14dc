package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/testutil"
	"github.com/turtacn/vehicle-test-records/pkg/errors"
	"github.com/turtacn/vehicle-test-records/pkg/types/record"
)

func TestRecords_GetBySystemNumber(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/test-records/11000001", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "submitted", q.Get("status"))
		assert.Equal(t, "2024-01-01T00:00:00Z", q.Get("fromDateTime"))
		assert.Equal(t, "all", q.Get("version"))
		assert.Empty(t, q.Get("toDateTime"))
		_ = json.NewEncoder(w).Encode([]*testrecord.TestRecord{testutil.NewPSVRecord()})
	})

	got, err := NewRecordsClient(c).GetBySystemNumber(context.Background(), "11000001", record.Query{
		Status:  testrecord.StatusSubmitted,
		From:    &from,
		Version: testrecord.VersionFilterAll,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b1a2c3d4-0001", got[0].TestResultID)
}

func TestRecords_Paths(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	})
	rc := NewRecordsClient(c)
	_, err := rc.GetByTesterStaffID(context.Background(), "staff-1", record.Query{})
	require.NoError(t, err)
	_, err = rc.GetByVIN(context.Background(), "1B7GG36N12S678410", record.Query{Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/v1/test-records/tester/staff-1",
		"/api/v1/test-records/vin/1B7GG36N12S678410",
	}, paths)
}

func TestRecords_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"COMMON_005","message":"no test records found"}}`))
	})
	_, err := NewRecordsClient(c).GetBySystemNumber(context.Background(), "x", record.Query{})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRecords_CreateAndUpdate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var in record.SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.NotNil(t, in.User)
		assert.Equal(t, "oid-1", in.User.OID)
		assert.Equal(t, "Dev Tester", in.User.Name)
		require.NotNil(t, in.TestResult)

		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/api/v1/test-records", r.URL.Path)
			w.WriteHeader(http.StatusCreated)
		case http.MethodPut:
			assert.Equal(t, "/api/v1/test-records/11000001", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(in.TestResult)
	})
	rc := NewRecordsClient(c)
	user := record.UserDetails{OID: "oid-1", Name: "Dev Tester"}

	created, err := rc.Create(context.Background(), testutil.NewPSVRecord(), user)
	require.NoError(t, err)
	assert.Equal(t, "11000001", created.SystemNumber)

	updated, err := rc.Update(context.Background(), "11000001", testutil.NewPSVRecord(), user)
	require.NoError(t, err)
	assert.Equal(t, "b1a2c3d4-0001", updated.TestResultID)
}
