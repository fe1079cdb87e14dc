package record

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/pkg/errors"
)

func TestSubmitRequest_Validate(t *testing.T) {
	rec := &testrecord.TestRecord{SystemNumber: "1"}
	user := &UserDetails{OID: "oid", Name: "Tester"}

	assert.NoError(t, (&SubmitRequest{TestResult: rec, User: user}).Validate())

	err := (&SubmitRequest{User: user}).Validate()
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	err = (&SubmitRequest{TestResult: rec, User: &UserDetails{OID: "oid"}}).Validate()
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestUserDetails_Actor(t *testing.T) {
	a := UserDetails{OID: "oid-1", Name: "Dev"}.Actor()
	assert.Equal(t, testrecord.Actor{ID: "oid-1", Name: "Dev"}, a)
}

func TestQuery_ValuesParseQuery(t *testing.T) {
	from := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	in := Query{Status: testrecord.StatusCancelled, From: &from, Version: testrecord.VersionFilterArchived, Limit: 10}

	out, err := ParseQuery(in.Values())
	require.NoError(t, err)
	assert.Equal(t, in.Status, out.Status)
	require.NotNil(t, out.From)
	assert.True(t, from.Equal(*out.From))
	assert.Nil(t, out.To)
	assert.Equal(t, in.Version, out.Version)
	assert.Equal(t, 10, out.Limit)
}

func TestParseQuery_PlainDate(t *testing.T) {
	q, err := ParseQuery(url.Values{ParamToDate: {"2024-03-10"}})
	require.NoError(t, err)
	require.NotNil(t, q.To)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *q.To)
}

func TestParseQuery_Empty(t *testing.T) {
	q, err := ParseQuery(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, Query{}, q)
}

func TestParseQuery_Invalid(t *testing.T) {
	tests := map[string]url.Values{
		"status":  {ParamStatus: {"draft"}},
		"from":    {ParamFromDate: {"yesterday"}},
		"version": {ParamVersion: {"latest"}},
		"limit":   {ParamLimit: {"0"}},
		"limitNa": {ParamLimit: {"ten"}},
	}
	for name, v := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseQuery(v)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}
