package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailpace/internal/store"
)

func newTestVault(t *testing.T, tokenURL string) (*Vault, uuid.UUID) {
	t.Helper()
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	userID := uuid.New()
	require.NoError(t, st.UpsertUser(&store.User{ID: userID, StravaConnected: true}))
	require.NoError(t, st.SaveToken(&store.Token{
		UserID:       userID,
		AccessToken:  "valid-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(6 * time.Hour).Unix(),
	}))

	v := NewVault(st, "client-id", "client-secret", nil, zerolog.Nop())
	if tokenURL != "" {
		v.conf.Endpoint.TokenURL = tokenURL
	}
	return v, userID
}

func fastLimiter() *RateLimiter {
	l := NewRateLimiter()
	l.minInterval = 0
	return l
}

func TestListActivitiesDecodesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/athlete/activities", r.URL.Path)
		assert.Equal(t, "Bearer valid-token", r.Header.Get("Authorization"))
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		w.Header().Set("X-RateLimit-Limit", "200,2000")
		w.Header().Set("X-RateLimit-Usage", "12,40")
		fmt.Fprint(w, `[
			{"id": 1, "name": "Dawn patrol", "type": "TrailRun", "start_date": "2025-06-01T06:00:00Z",
			 "distance": 12000, "moving_time": 4200, "elapsed_time": 4400,
			 "total_elevation_gain": 450, "average_heartrate": 152.5},
			{"id": 2, "name": "Recovery walk", "type": "Walk", "start_date": "2025-06-02T18:00:00Z",
			 "distance": 3000, "moving_time": 2400, "elapsed_time": 2500}
		]`)
	}))
	defer srv.Close()

	vault, userID := newTestVault(t, "")
	c := NewClient(vault, fastLimiter(), zerolog.Nop())
	c.SetBaseURL(srv.URL)

	activities, err := c.ListActivities(context.Background(), userID, time.Unix(1000, 0), time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, "TrailRun", activities[0].Type)
	require.NotNil(t, activities[0].AverageHeartrate)
	assert.Equal(t, 152.5, *activities[0].AverageHeartrate)
	assert.Nil(t, activities[1].AverageHeartrate)

	// The limiter picked up the usage headers.
	short, daily := c.RateLimitStatus()
	assert.Equal(t, 188, short)
	assert.Equal(t, 1960, daily)
}

func TestGetActivityDetailSplits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/activities/42", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("include_all_efforts"))
		json.NewEncoder(w).Encode(map[string]any{
			"id": 42, "name": "Hill repeats", "type": "Run",
			"start_date": "2025-06-01T06:00:00Z",
			"splits_metric": []map[string]any{
				{"split": 1, "distance": 1000, "moving_time": 310, "elevation_difference": 42.0},
				{"split": 2, "distance": 1000, "moving_time": 290, "elevation_difference": -40.0},
			},
		})
	}))
	defer srv.Close()

	vault, userID := newTestVault(t, "")
	c := NewClient(vault, fastLimiter(), zerolog.Nop())
	c.SetBaseURL(srv.URL)

	detail, err := c.GetActivityDetail(context.Background(), userID, 42)
	require.NoError(t, err)
	require.Len(t, detail.SplitsMetric, 2)
	assert.Equal(t, 42.0, detail.SplitsMetric[0].ElevationDifference)
}

func TestUnauthorizedTriggersOneRefreshAndRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer refreshed-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "refreshed-token",
			"refresh_token": "refresh-token-2",
			"expires_in":    21600,
		})
	}))
	defer tokenSrv.Close()

	vault, userID := newTestVault(t, tokenSrv.URL)
	c := NewClient(vault, fastLimiter(), zerolog.Nop())
	c.SetBaseURL(srv.URL)

	activities, err := c.ListActivities(context.Background(), userID, time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, activities)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitedRetriesAfterWindow(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	vault, userID := newTestVault(t, "")
	limiter := fastLimiter()
	// An already-expired window: the retry must not wait out a fresh one.
	limiter.shortResetsAt = time.Now().Add(-time.Second)
	c := NewClient(vault, limiter, zerolog.Nop())
	c.SetBaseURL(srv.URL)

	start := time.Now()
	_, err := c.ListActivities(context.Background(), userID, time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestServerErrorPropagatesTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	vault, userID := newTestVault(t, "")
	c := NewClient(vault, fastLimiter(), zerolog.Nop())
	c.SetBaseURL(srv.URL)

	_, err := c.ListActivities(context.Background(), userID, time.Time{}, time.Time{}, 10)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsServer())
}

func TestRateLimiterHeaderReconciliation(t *testing.T) {
	l := NewRateLimiter()
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "200,2000")
	h.Set("X-RateLimit-Usage", "150,900")
	l.UpdateFromHeaders(h)

	short, daily := l.Status()
	assert.Equal(t, 50, short)
	assert.Equal(t, 1100, daily)
}
