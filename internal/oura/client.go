// ABOUTME: HTTP client for the Oura v2 usercollection API.
// ABOUTME: Date-range fetches with pagination, 429 backoff, rate limiting, and a circuit breaker.
package oura

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/harperreed/ringhealth/internal/logging"
	"github.com/harperreed/ringhealth/internal/metrics"
	"github.com/harperreed/ringhealth/internal/models"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.ouraring.com/v2"

// maxErrorBodySize bounds how much of an error response is read.
const maxErrorBodySize = 64 * 1024

// endpoint describes where a stream lives and how it takes its date range.
type endpoint struct {
	path string
	// datetime endpoints take start_datetime/end_datetime instead of dates.
	datetime bool
}

var endpoints = map[models.StreamKind]endpoint{
	models.StreamDailySleep:    {path: "/usercollection/daily_sleep"},
	models.StreamSleepSessions: {path: "/usercollection/sleep"},
	models.StreamActivity:      {path: "/usercollection/daily_activity"},
	models.StreamReadiness:     {path: "/usercollection/daily_readiness"},
	models.StreamStress:        {path: "/usercollection/daily_stress"},
	models.StreamWorkouts:      {path: "/usercollection/workout"},
	models.StreamSpO2:          {path: "/usercollection/daily_spo2"},
	models.StreamHeartRate:     {path: "/usercollection/heartrate", datetime: true},
}

// Config configures a Client. Zero values take the defaults shown.
type Config struct {
	Token   string
	BaseURL string        // DefaultBaseURL
	Timeout time.Duration // 30s

	// RatePerSecond caps outgoing requests; 0 disables the limiter.
	RatePerSecond float64
	Burst         int // 1

	MaxRetries     int           // 5, for HTTP 429 only; negative disables retries
	RetryBaseDelay time.Duration // 1s, doubled per attempt

	BreakerFailures uint32        // 5 consecutive failures open the breaker
	BreakerTimeout  time.Duration // 60s before a half-open trial request

	HTTPClient *http.Client
}

// Client fetches raw vendor records. It holds no per-call state and is safe
// for concurrent use.
type Client struct {
	baseURL        string
	token          string
	http           *http.Client
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker[[]byte]
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient builds a client. A missing token is an *AuthError so that it
// surfaces at startup rather than mid-sync.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, &AuthError{Message: "no API token configured"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Minute
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		token:          cfg.Token,
		http:           httpClient,
		limiter:        rate.NewLimiter(limit, cfg.Burst),
		breaker:        newBreaker(cfg.BreakerFailures, cfg.BreakerTimeout),
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
	}, nil
}

type page struct {
	Data      []json.RawMessage `json:"data"`
	NextToken *string           `json:"next_token"`
}

// Fetch returns every record of one stream between startDate and endDate
// inclusive, following pagination. An endpoint the vendor does not serve
// (HTTP 404) yields an empty result rather than an error.
func (c *Client) Fetch(ctx context.Context, kind models.StreamKind, startDate, endDate string) ([]models.RawRecord, error) {
	ep, ok := endpoints[kind]
	if !ok {
		return nil, fmt.Errorf("fetch: unknown stream %q", kind)
	}
	if err := validateRange(startDate, endDate); err != nil {
		return nil, err
	}

	params := url.Values{}
	if ep.datetime {
		params.Set("start_datetime", startDate+"T00:00:00Z")
		params.Set("end_datetime", endDate+"T23:59:59Z")
	} else {
		params.Set("start_date", startDate)
		params.Set("end_date", endDate)
	}

	var records []models.RawRecord
	seen := make(map[string]bool)
	for {
		body, err := c.get(ctx, ep.path, params)
		if err != nil {
			// Only the first page can report an unsupported stream.
			var ue *UpstreamError
			if len(seen) == 0 && errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound {
				logging.Ctx(ctx).Warn().Str("stream", string(kind)).Msg("endpoint not available, treating as empty")
				return []models.RawRecord{}, nil
			}
			return nil, err
		}

		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, &UpstreamError{Endpoint: ep.path, StatusCode: http.StatusOK, Message: "decode response", Err: err}
		}
		for _, r := range p.Data {
			records = append(records, models.RawRecord(r))
		}

		if p.NextToken == nil || *p.NextToken == "" {
			break
		}
		if seen[*p.NextToken] {
			return nil, &UpstreamError{Endpoint: ep.path, StatusCode: http.StatusOK,
				Message: fmt.Sprintf("next_token %q repeated", *p.NextToken)}
		}
		seen[*p.NextToken] = true
		params.Set("next_token", *p.NextToken)
	}

	if records == nil {
		records = []models.RawRecord{}
	}
	return records, nil
}

// PersonalInfo is the account summary returned by the vendor.
type PersonalInfo struct {
	ID            string   `json:"id"`
	Age           *int     `json:"age"`
	Weight        *float64 `json:"weight"`
	Height        *float64 `json:"height"`
	BiologicalSex *string  `json:"biological_sex"`
	Email         *string  `json:"email"`
}

// PersonalInfo fetches the account owner's profile. Used to check that the
// configured token works.
func (c *Client) PersonalInfo(ctx context.Context) (*PersonalInfo, error) {
	const path = "/usercollection/personal_info"
	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var info PersonalInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &UpstreamError{Endpoint: path, StatusCode: http.StatusOK, Message: "decode response", Err: err}
	}
	return &info, nil
}

// get performs one logical GET through the circuit breaker.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequestWithRateLimit(ctx, path, params)
	})
	if breakerRejected(err) {
		return nil, &UpstreamError{Endpoint: path, StatusCode: http.StatusServiceUnavailable, Message: "circuit breaker open", Err: err}
	}
	return body, err
}

// doRequestWithRateLimit sends the request, backing off exponentially on
// HTTP 429 and honoring Retry-After.
func (c *Client) doRequestWithRateLimit(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	name := strings.TrimPrefix(path, "/usercollection/")

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &UpstreamError{Endpoint: path, Message: "rate limiter wait", Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			metrics.RecordOuraRequest(name, 0, time.Since(start))
			return nil, &UpstreamError{Endpoint: path, Message: "request failed", Err: err}
		}
		metrics.RecordOuraRequest(name, resp.StatusCode, time.Since(start))

		if resp.StatusCode != http.StatusTooManyRequests {
			return readResponse(path, resp)
		}
		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}
		logging.Ctx(ctx).Debug().Str("endpoint", name).Int("attempt", attempt+1).Dur("delay", delay).
			Msg("rate limited, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &UpstreamError{Endpoint: path, Message: "cancelled during backoff", Err: ctx.Err()}
		}
	}

	return nil, &UpstreamError{
		Endpoint:   path,
		StatusCode: http.StatusTooManyRequests,
		Message:    fmt.Sprintf("rate limit exceeded after %d retries", c.maxRetries),
	}
}

func readResponse(path string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &UpstreamError{Endpoint: path, StatusCode: resp.StatusCode, Message: "read body", Err: err}
		}
		return body, nil
	}

	msg := strings.TrimSpace(string(readBodyForError(resp.Body)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: msg}
	}
	return nil, &UpstreamError{Endpoint: path, StatusCode: resp.StatusCode, Message: msg}
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

func validateRange(startDate, endDate string) error {
	start, err := time.Parse(models.DateLayout, startDate)
	if err != nil {
		return fmt.Errorf("%w: start %q is not YYYY-MM-DD", ErrInvalidRange, startDate)
	}
	end, err := time.Parse(models.DateLayout, endDate)
	if err != nil {
		return fmt.Errorf("%w: end %q is not YYYY-MM-DD", ErrInvalidRange, endDate)
	}
	if start.After(end) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, startDate, endDate)
	}
	return nil
}
