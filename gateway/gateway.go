// Resilience gateway for the upstream inference backend.
//
// Wraps every classifier call in a circuit breaker, a sliding-window rate
// limit, and a bounded in-flight semaphore (default one call at a time, to
// avoid overloading the backend). Retries with backoff happen inside a
// single attempt via the retryablehttp transport; the breaker gates whether
// an attempt is made at all. Calls may fail, or be rejected immediately.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/semaphore"
)

// Returned when the local rate limit rejects a call before any network
// attempt. Not counted against the circuit breaker.
var ErrThrottled = errors.New("gateway: upstream rate limit exceeded")

var (
	DefaultMaxInFlight   = int64(1)
	DefaultPerSecond     = 20
	DefaultTimeout       = 10 * time.Second
	DefaultRetryMax      = 3
	DefaultRetryWaitMin  = 500 * time.Millisecond
	DefaultRetryWaitMax  = 5 * time.Second
)

type ClientConfig struct {
	// Base URL of the inference backend, eg "http://localhost:8600"
	Host string
	// Maximum concurrent in-flight calls to the backend. Defaults to 1.
	MaxInFlight int64
	// Max requests per second to the backend (sliding window).
	PerSecond int
	// Hard timeout for one call, including retries.
	Timeout time.Duration

	Logger *slog.Logger
}

type Client struct {
	Host    string
	Logger  *slog.Logger
	Breaker *Breaker
	Timeout time.Duration

	httpClient *http.Client
	limiter    *slidingwindow.Limiter
	sem        *semaphore.Weighted
}

type AnalyzeRequest struct {
	Layer   string          `json:"layer"`
	Payload json.RawMessage `json:"payload"`
}

type AnalyzeResponse struct {
	Classification string          `json:"classification"`
	Confidence     float64         `json:"confidence"`
	Details        json.RawMessage `json:"details,omitempty"`
}

type leveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l leveledSlog) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, keysAndValues...)
}

// NewClient configures a gateway client with retrying HTTP transport and
// decent general-purpose defaults. Retries cover connection errors, 5xx
// status (except 501), and 429 (respecting 'Retry-After').
func NewClient(config ClientConfig) *Client {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("system", "gateway")
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = DefaultMaxInFlight
	}
	if config.PerSecond <= 0 {
		config.PerSecond = DefaultPerSecond
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = DefaultRetryMax
	retryClient.RetryWaitMin = DefaultRetryWaitMin
	retryClient.RetryWaitMax = DefaultRetryWaitMax
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{logger})
	httpClient := retryClient.StandardClient()
	httpClient.Timeout = config.Timeout

	limiter, _ := slidingwindow.NewLimiter(time.Second, int64(config.PerSecond), func() (slidingwindow.Window, slidingwindow.StopFunc) {
		return slidingwindow.NewLocalWindow()
	})

	return &Client{
		Host:       config.Host,
		Logger:     logger,
		Breaker:    NewBreaker(),
		Timeout:    config.Timeout,
		httpClient: httpClient,
		limiter:    limiter,
		sem:        semaphore.NewWeighted(config.MaxInFlight),
	}
}

// Invoke calls the backend's analysis endpoint once (with internal retries).
// Returns ErrCircuitOpen or ErrThrottled for immediate local rejections;
// any other error means the attempt was made and failed, and has been
// counted against the circuit breaker.
func (c *Client) Invoke(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	if err := c.Breaker.Allow(); err != nil {
		invokeRejectedCount.WithLabelValues("circuit-open").Inc()
		return nil, err
	}
	if !c.limiter.Allow() {
		invokeRejectedCount.WithLabelValues("throttled").Inc()
		return nil, ErrThrottled
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring backend slot: %w", err)
	}
	defer c.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.doAnalyze(ctx, req)
	invokeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.Breaker.RecordFailure()
		invokeErrorCount.WithLabelValues(req.Layer).Inc()
		return nil, err
	}
	c.Breaker.RecordSuccess()
	invokeCount.WithLabelValues(req.Layer).Inc()
	return resp, nil
}

func (c *Client) doAnalyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, httpResp.Body)
		return nil, fmt.Errorf("backend request failed, status=%d", httpResp.StatusCode)
	}

	var out AnalyzeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding backend response: %w", err)
	}
	return &out, nil
}
