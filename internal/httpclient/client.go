package httpclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent mimics a desktop browser; both upstream sites reject
	// the Go default agent.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"
)

var (
	// ErrUnavailable is returned after the retry budget is exhausted.
	// Callers in bulk enrichment treat it as an empty result for the key
	// rather than aborting the batch.
	ErrUnavailable = errors.New("upstream unavailable after retries")

	// ErrMalformedPayload is returned when a 200 response body cannot be
	// decoded. It is never retried; the unit of work degrades to empty.
	ErrMalformedPayload = errors.New("malformed response payload")
)

// StatusError reports a non-retryable HTTP status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// Client is a retrying HTTP fetcher shared by all collectors. Headers and
// cookies are set once at construction; after that the client is read-only
// and safe for concurrent use across worker goroutines.
type Client struct {
	httpClient *http.Client
	headers    http.Header
	retry      *RetryPolicy
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(policy *RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit caps outbound requests per second across all workers
// sharing this client. Zero means unlimited.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithHeader adds a default header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if value != "" {
			c.headers.Set(key, value)
		}
	}
}

// WithInsecureTLS disables certificate verification. The industry portal
// serves an incomplete certificate chain.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
}

// WithCookies seeds the client's cookie jar with a session cookie set,
// typically harvested from a browser login.
func WithCookies(baseURL string, cookies []*http.Cookie) Option {
	return func(c *Client) {
		u, err := url.Parse(baseURL)
		if err != nil {
			return
		}
		jar, err := cookiejar.New(nil)
		if err != nil {
			return
		}
		jar.SetCookies(u, cookies)
		c.httpClient.Jar = jar
	}
}

// New creates a retrying HTTP client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    make(http.Header),
		retry:      NewRetryPolicy(),
		logger:     arbor.NewLogger(),
	}
	c.headers.Set("User-Agent", DefaultUserAgent)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchJSON performs a GET with retry and decodes the JSON body into v.
// Returns ErrUnavailable after the retry budget is exhausted and
// ErrMalformedPayload when a 200 body is not valid JSON.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.FetchBytes(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Warn().Str("url", rawURL).Err(err).Msg("Response body is not valid JSON")
		return fmt.Errorf("%w: %s", ErrMalformedPayload, rawURL)
	}
	return nil
}

// FetchBytes performs a GET with retry and returns the raw response body.
// Transient failures (429, 5xx, network errors) are retried with backoff;
// other non-200 statuses fail immediately with a StatusError.
func (c *Client) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte

	err := c.retry.Execute(ctx, c.logger, rawURL, func() (int, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return 0, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, err
		}
		for key, values := range c.headers {
			for _, value := range values {
				req.Header.Set(key, value)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, &StatusError{Code: resp.StatusCode, URL: rawURL}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// HTTPClient exposes the underlying http.Client (cookie jar included) for
// collaborators that drive their own requests.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}
