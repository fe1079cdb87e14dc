package client

import (
	"context"
	stderrors "errors"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
)

// IdempotencyHeader carries the issuance key. The test number service
// returns the number minted for a key it has already seen.
const IdempotencyHeader = "Idempotency-Key"

// TestNumberClient mints test numbers.
type TestNumberClient struct {
	client *Client
}

var _ testrecord.TestNumberIssuer = (*TestNumberClient)(nil)

func NewTestNumberClient(c *Client) *TestNumberClient {
	return &TestNumberClient{client: c}
}

type testNumberRequest struct {
	SystemNumber string `json:"systemNumber"`
	TestTypeID   string `json:"testTypeId"`
}

type testNumberResponse struct {
	TestNumber string `json:"testNumber"`
}

func (c *TestNumberClient) IssueTestNumber(ctx context.Context, key testrecord.IssuanceKey) (string, error) {
	var out testNumberResponse
	err := c.client.do(ctx, request{
		method:  "POST",
		path:    "/test-number",
		body:    testNumberRequest{SystemNumber: key.SystemNumber, TestTypeID: key.TestTypeID},
		headers: map[string]string{IdempotencyHeader: key.String()},
	}, &out)
	if err != nil {
		var apiErr *APIError
		if stderrors.As(err, &apiErr) {
			return "", apiErr.AppError()
		}
		return "", err
	}
	return out.TestNumber, nil
}
