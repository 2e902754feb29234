// ABOUTME: Tests for the vendor API client against an httptest server.
// ABOUTME: Covers pagination, auth, 404 handling, 429 backoff, timeouts, and the breaker.
package oura

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/ringhealth/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		Token:          "test-token",
		BaseURL:        srv.URL,
		Timeout:        2 * time.Second,
		RetryBaseDelay: time.Millisecond,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(Config{Token: "  "})
	require.Error(t, err)
	assert.True(t, IsAuth(err))
}

func TestFetchPaginates(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/usercollection/daily_sleep", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2025-01-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2025-01-07", r.URL.Query().Get("end_date"))

		switch r.URL.Query().Get("next_token") {
		case "":
			fmt.Fprint(w, `{"data":[{"day":"2025-01-01"},{"day":"2025-01-02"}],"next_token":"page2"}`)
		case "page2":
			fmt.Fprint(w, `{"data":[{"day":"2025-01-03"}],"next_token":null}`)
		default:
			t.Errorf("unexpected token %q", r.URL.Query().Get("next_token"))
		}
	})

	records, err := c.Fetch(context.Background(), models.StreamDailySleep, "2025-01-01", "2025-01-07")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.JSONEq(t, `{"day":"2025-01-03"}`, string(records[2]))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchEmptyIsNotNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[],"next_token":null}`)
	})

	records, err := c.Fetch(context.Background(), models.StreamStress, "2025-01-01", "2025-01-01")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFetchHeartRateUsesDatetimes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/usercollection/heartrate", r.URL.Path)
		assert.Equal(t, "2025-01-01T00:00:00Z", r.URL.Query().Get("start_datetime"))
		assert.Equal(t, "2025-01-02T23:59:59Z", r.URL.Query().Get("end_datetime"))
		assert.Empty(t, r.URL.Query().Get("start_date"))
		fmt.Fprint(w, `{"data":[{"timestamp":"2025-01-01T08:00:00+00:00","bpm":55}]}`)
	})

	records, err := c.Fetch(context.Background(), models.StreamHeartRate, "2025-01-01", "2025-01-02")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFetchInvalidRange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	tests := []struct{ start, end string }{
		{"2025-01-07", "2025-01-01"},
		{"2025/01/01", "2025-01-07"},
		{"2025-01-01", ""},
	}
	for _, tt := range tests {
		_, err := c.Fetch(context.Background(), models.StreamActivity, tt.start, tt.end)
		assert.ErrorIs(t, err, ErrInvalidRange, "%s..%s", tt.start, tt.end)
	}
}

func TestFetchUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid token"}`, http.StatusUnauthorized)
	})

	_, err := c.Fetch(context.Background(), models.StreamReadiness, "2025-01-01", "2025-01-07")
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
	assert.Contains(t, ae.Message, "invalid token")
}

func TestFetchNotFoundIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	records, err := c.Fetch(context.Background(), models.StreamSpO2, "2025-01-01", "2025-01-07")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchNotFoundOnLaterPageFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("next_token") == "" {
			fmt.Fprint(w, `{"data":[{"day":"2025-01-01"},{"day":"2025-01-02"}],"next_token":"p2"}`)
			return
		}
		http.NotFound(w, r)
	})

	records, err := c.Fetch(context.Background(), models.StreamDailySleep, "2025-01-01", "2025-01-07")
	assert.Nil(t, records)
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)
}

func TestFetchRepeatedNextTokenFails(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) > 10 {
			t.Error("client kept following a repeated token")
			http.Error(w, "stop", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"data":[{"day":"2025-01-01"}],"next_token":"same"}`)
	})

	_, err := c.Fetch(context.Background(), models.StreamDailySleep, "2025-01-01", "2025-01-07")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Message, "repeated")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Fetch(context.Background(), models.StreamWorkouts, "2025-01-01", "2025-01-07")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
	assert.Equal(t, "/usercollection/workout", ue.Endpoint)
	assert.False(t, IsAuth(err))
}

func TestFetchRetriesOn429(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":[{"day":"2025-01-01"}]}`)
	})

	records, err := c.Fetch(context.Background(), models.StreamDailySleep, "2025-01-01", "2025-01-01")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, func(cfg *Config) { cfg.MaxRetries = 2 })

	_, err := c.Fetch(context.Background(), models.StreamDailySleep, "2025-01-01", "2025-01-01")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusTooManyRequests, ue.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchTimeoutIsUpstreamError(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })

	_, err := c.Fetch(context.Background(), models.StreamActivity, "2025-01-01", "2025-01-01")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Zero(t, ue.StatusCode)
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, func(cfg *Config) {
		cfg.BreakerFailures = 2
		cfg.BreakerTimeout = time.Hour
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := c.Fetch(ctx, models.StreamStress, "2025-01-01", "2025-01-01")
		require.Error(t, err)
	}

	_, err := c.Fetch(ctx, models.StreamStress, "2025-01-01", "2025-01-01")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusServiceUnavailable, ue.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "open breaker must not reach the server")
}

func TestAuthErrorsDoNotTripBreaker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, func(cfg *Config) { cfg.BreakerFailures = 1 })

	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), models.StreamStress, "2025-01-01", "2025-01-01")
		assert.True(t, IsAuth(err), "attempt %d: %v", i, err)
	}
}

func TestPersonalInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/usercollection/personal_info", r.URL.Path)
		fmt.Fprint(w, `{"id":"u1","age":41,"email":"runner@example.com"}`)
	})

	info, err := c.PersonalInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", info.ID)
	require.NotNil(t, info.Age)
	assert.Equal(t, 41, *info.Age)
}

func TestContextCancelledDuringBackoff(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, models.StreamDailySleep, "2025-01-01", "2025-01-01")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
