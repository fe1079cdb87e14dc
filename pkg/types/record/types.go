// Package record holds the wire types of the test record HTTP API shared by
// the server handlers and the Go client.
package record

import (
	"net/url"
	"strconv"
	"time"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/pkg/errors"
)

// Query parameter names.
const (
	ParamStatus   = "status"
	ParamFromDate = "fromDateTime"
	ParamToDate   = "toDateTime"
	ParamVersion  = "version"
	ParamLimit    = "limit"
)

// UserDetails identifies the caller of a write.
type UserDetails struct {
	OID  string `json:"msOid"`
	Name string `json:"msUser"`
}

// Actor converts the caller into the versioning actor.
func (u UserDetails) Actor() testrecord.Actor {
	return testrecord.Actor{ID: u.OID, Name: u.Name}
}

// SubmitRequest is the body of POST and PUT.
type SubmitRequest struct {
	TestResult *testrecord.TestRecord `json:"testResult"`
	User       *UserDetails           `json:"msUserDetails"`
}

// Validate checks the envelope only; the record itself is validated by the
// service.
func (r *SubmitRequest) Validate() error {
	if r.TestResult == nil {
		return errors.NewValidation("request body is missing testResult").WithField("testResult", "required")
	}
	if r.User == nil || r.User.OID == "" || r.User.Name == "" {
		return errors.NewValidation("request body is missing msUserDetails").WithField("msUserDetails", "required")
	}
	return nil
}

// ErrorDetail is the body of every non-2xx answer, under "error".
type ErrorDetail struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Detail    string            `json:"detail,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// Query narrows a records read. Zero fields are omitted on the wire.
type Query struct {
	Status  testrecord.Status
	From    *time.Time
	To      *time.Time
	Version testrecord.VersionFilter
	Limit   int
}

// Values renders q as URL query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Status != "" {
		v.Set(ParamStatus, string(q.Status))
	}
	if q.From != nil {
		v.Set(ParamFromDate, q.From.UTC().Format(time.RFC3339))
	}
	if q.To != nil {
		v.Set(ParamToDate, q.To.UTC().Format(time.RFC3339))
	}
	if q.Version != "" {
		v.Set(ParamVersion, string(q.Version))
	}
	if q.Limit > 0 {
		v.Set(ParamLimit, strconv.Itoa(q.Limit))
	}
	return v
}

// ParseQuery is the inverse of Values. Dates accept RFC 3339 timestamps or
// plain YYYY-MM-DD days.
func ParseQuery(v url.Values) (Query, error) {
	var q Query
	if s := v.Get(ParamStatus); s != "" {
		st := testrecord.Status(s)
		if st != testrecord.StatusSubmitted && st != testrecord.StatusCancelled {
			return q, errors.NewValidation("unknown status %q", s).WithField(ParamStatus, "submitted|cancelled")
		}
		q.Status = st
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{ParamFromDate, &q.From}, {ParamToDate, &q.To}} {
		s := v.Get(p.name)
		if s == "" {
			continue
		}
		t, err := parseTime(s)
		if err != nil {
			return q, errors.NewValidation("%s is not a valid date", p.name).WithField(p.name, "RFC 3339 or YYYY-MM-DD")
		}
		*p.dst = &t
	}
	if s := v.Get(ParamVersion); s != "" {
		vf := testrecord.VersionFilter(s)
		switch vf {
		case testrecord.VersionFilterCurrent, testrecord.VersionFilterArchived, testrecord.VersionFilterAll:
			q.Version = vf
		default:
			return q, errors.NewValidation("unknown version %q", s).WithField(ParamVersion, "current|archived|all")
		}
	}
	if s := v.Get(ParamLimit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return q, errors.NewValidation("limit must be a positive integer").WithField(ParamLimit, "positive integer")
		}
		q.Limit = n
	}
	return q, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
