package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastPolicy keeps retry tests quick.
func fastPolicy(maxAttempts int) *RetryPolicy {
	policy := NewRetryPolicy()
	policy.MaxAttempts = maxAttempts
	policy.InitialBackoff = time.Millisecond
	policy.MaxBackoff = 5 * time.Millisecond
	return policy
}

func TestFetchBytes_PermanentServerErrorExhaustsBudget(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(WithRetryPolicy(fastPolicy(3)))
	_, err := client.FetchBytes(context.Background(), server.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "budget is three attempts, then stop")
}

func TestFetchBytes_NetworkErrorExhaustsBudget(t *testing.T) {
	// A server that is immediately closed leaves a port nothing listens on.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(WithRetryPolicy(fastPolicy(3)))
	_, err := client.FetchBytes(context.Background(), url)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable, "connection failures exhaust the budget into the sentinel")
}

func TestFetchBytes_TransientErrorRecovers(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	client := New(WithRetryPolicy(fastPolicy(3)))
	body, err := client.FetchBytes(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchBytes_ClientErrorDoesNotRetry(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(WithRetryPolicy(fastPolicy(3)))
	_, err := client.FetchBytes(context.Background(), server.URL)

	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "4xx is not retryable")
}

func TestFetchBytes_TooManyRequestsIsRetryable(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := New(WithRetryPolicy(fastPolicy(3)))
	body, err := client.FetchBytes(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestFetchJSON_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := New(WithRetryPolicy(fastPolicy(3)))
	var v map[string]any
	err := client.FetchJSON(context.Background(), server.URL, &v)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestFetchJSON_DecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"name":"열연","count":2}`))
	}))
	defer server.Close()

	client := New(WithRetryPolicy(fastPolicy(3)))
	var v struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, client.FetchJSON(context.Background(), server.URL, &v))
	assert.Equal(t, "열연", v.Name)
	assert.Equal(t, 2, v.Count)
}

func TestFetchBytes_SendsConfiguredHeaders(t *testing.T) {
	var gotUA, gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotToken = r.Header.Get("x-xsrf-token")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := New(
		WithRetryPolicy(fastPolicy(1)),
		WithHeader("x-xsrf-token", "tok-123"),
	)
	_, err := client.FetchBytes(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, "tok-123", gotToken)
}

func TestFetchBytes_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	policy := fastPolicy(5)
	policy.InitialBackoff = 5 * time.Second
	policy.MaxBackoff = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := New(WithRetryPolicy(policy))
	start := time.Now()
	_, err := client.FetchBytes(ctx, server.URL)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation must cut the backoff sleep short")
}

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := NewRetryPolicy()

	for attempt := 0; attempt < 5; attempt++ {
		d := policy.Backoff(attempt)
		assert.Positive(t, d)
		assert.LessOrEqual(t, d, policy.MaxBackoff)
	}

	// Attempt 1 waits at least the doubled counter plus one second.
	assert.GreaterOrEqual(t, policy.Backoff(1), 3*time.Second)
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := NewRetryPolicy()

	tests := []struct {
		name       string
		statusCode int
		attempt    int
		want       bool
	}{
		{"network error first attempt", 0, 0, true},
		{"server error mid budget", 500, 1, true},
		{"rate limited", 429, 0, true},
		{"not found", 404, 0, false},
		{"forbidden", 403, 0, false},
		{"budget exhausted", 500, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ShouldRetry(tt.statusCode, tt.attempt))
		})
	}
}
