package client

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/pkg/types/record"
)

// RecordsClient calls the test record API.
type RecordsClient struct {
	client *Client
}

func NewRecordsClient(c *Client) *RecordsClient {
	return &RecordsClient{client: c}
}

const recordsPath = "/api/v1/test-records"

func (c *RecordsClient) GetBySystemNumber(ctx context.Context, systemNumber string, q record.Query) ([]*testrecord.TestRecord, error) {
	return c.list(ctx, recordsPath+"/"+url.PathEscape(systemNumber), q)
}

func (c *RecordsClient) GetByTesterStaffID(ctx context.Context, staffID string, q record.Query) ([]*testrecord.TestRecord, error) {
	return c.list(ctx, recordsPath+"/tester/"+url.PathEscape(staffID), q)
}

func (c *RecordsClient) GetByVIN(ctx context.Context, vin string, q record.Query) ([]*testrecord.TestRecord, error) {
	return c.list(ctx, recordsPath+"/vin/"+url.PathEscape(vin), q)
}

func (c *RecordsClient) list(ctx context.Context, path string, q record.Query) ([]*testrecord.TestRecord, error) {
	var out []*testrecord.TestRecord
	if err := c.client.do(ctx, request{method: http.MethodGet, path: path, query: q.Values()}, &out); err != nil {
		return nil, asAppError(err)
	}
	return out, nil
}

// Create submits a new record and returns it as stored.
func (c *RecordsClient) Create(ctx context.Context, r *testrecord.TestRecord, user record.UserDetails) (*testrecord.TestRecord, error) {
	var out testrecord.TestRecord
	err := c.client.do(ctx, request{
		method: http.MethodPost,
		path:   recordsPath,
		body:   record.SubmitRequest{TestResult: r, User: &user},
	}, &out)
	if err != nil {
		return nil, asAppError(err)
	}
	return &out, nil
}

// Update amends the current version of r.TestResultID.
func (c *RecordsClient) Update(ctx context.Context, systemNumber string, r *testrecord.TestRecord, user record.UserDetails) (*testrecord.TestRecord, error) {
	var out testrecord.TestRecord
	err := c.client.do(ctx, request{
		method: http.MethodPut,
		path:   recordsPath + "/" + url.PathEscape(systemNumber),
		body:   record.SubmitRequest{TestResult: r, User: &user},
	}, &out)
	if err != nil {
		return nil, asAppError(err)
	}
	return &out, nil
}

func asAppError(err error) error {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.AppError()
	}
	return err
}
