// Package strava talks to the activity provider: a rate-limited HTTP
// client, an OAuth token vault, and an optional cross-service token
// resolver.
package strava

import (
	"fmt"
	"net/http"
	"time"
)

const BaseURL = "https://www.strava.com/api/v3"

// Activity is an activity summary from /athlete/activities.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	StartDate          time.Time `json:"start_date"`
	Distance           float64   `json:"distance"`             // meters
	MovingTime         int       `json:"moving_time"`          // seconds
	ElapsedTime        int       `json:"elapsed_time"`         // seconds
	TotalElevationGain float64   `json:"total_elevation_gain"` // meters
	AverageSpeed       float64   `json:"average_speed"`        // m/s
	MaxSpeed           float64   `json:"max_speed"`            // m/s
	AverageHeartrate   *float64  `json:"average_heartrate"`    // bpm
	MaxHeartrate       *float64  `json:"max_heartrate"`        // bpm
	AverageCadence     *float64  `json:"average_cadence"`
	SufferScore        *int      `json:"suffer_score"`
}

// ActivityDetail is the full activity from /activities/{id}, of which the
// core only consumes the per-kilometre splits.
type ActivityDetail struct {
	Activity
	SplitsMetric []SplitMetric `json:"splits_metric"`
}

// SplitMetric is one ~1 km split from the activity detail.
type SplitMetric struct {
	Split               int      `json:"split"`
	Distance            float64  `json:"distance"`    // meters
	MovingTime          int      `json:"moving_time"` // seconds
	ElapsedTime         int      `json:"elapsed_time"`
	ElevationDifference float64  `json:"elevation_difference"` // meters
	AverageSpeed        float64  `json:"average_speed"`        // m/s
	AverageHeartrate    *float64 `json:"average_heartrate"`
	PaceZone            *int     `json:"pace_zone"`
}

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava: API error %d: %s", e.StatusCode, e.Body)
}

// IsAuth reports whether the error is a 401.
func (e *APIError) IsAuth() bool { return e.StatusCode == http.StatusUnauthorized }

// IsRateLimited reports whether the error is a 429.
func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// IsServer reports whether the error is a 5xx.
func (e *APIError) IsServer() bool { return e.StatusCode >= 500 }
