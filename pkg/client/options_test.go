package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/vehicle-test-records/internal/testutil"
)

func TestOptions(t *testing.T) {
	hc := &http.Client{Timeout: time.Minute}
	log := testutil.NewMockLogger()
	c, err := NewClient("x", "https://svc",
		WithHTTPClient(hc),
		WithAPIKey("k"),
		WithLogger(log),
		WithRetryMax(0),
		WithUserAgent("vtrctl/1"),
	)
	require.NoError(t, err)
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, "k", c.apiKey)
	assert.Equal(t, 0, c.retryMax)
	assert.Equal(t, "vtrctl/1", c.userAgent)
}

func TestOptions_IgnoreInvalidValues(t *testing.T) {
	c, err := NewClient("x", "https://svc",
		WithHTTPClient(nil),
		WithLogger(nil),
		WithObserver(nil),
		WithRetryMax(-1),
		WithUserAgent(""),
		WithTimeout(0),
	)
	require.NoError(t, err)
	assert.NotNil(t, c.httpClient)
	assert.NotNil(t, c.observer)
	assert.Equal(t, 3, c.retryMax)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
}

func TestWithRetryWait(t *testing.T) {
	tests := []struct {
		name             string
		min, max         time.Duration
		wantMin, wantMax time.Duration
	}{
		{"valid", time.Second, 2 * time.Second, time.Second, 2 * time.Second},
		{"max below min keeps default max", time.Second, time.Millisecond, time.Second, 3 * time.Second},
		{"zero min ignored", 0, time.Second, 200 * time.Millisecond, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient("x", "https://svc", WithRetryWait(tt.min, tt.max))
			require.NoError(t, err)
			assert.Equal(t, tt.wantMin, c.retryWaitMin)
			assert.Equal(t, tt.wantMax, c.retryWaitMax)
		})
	}
}

func TestWithTimeout(t *testing.T) {
	c, err := NewClient("x", "https://svc", WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}
