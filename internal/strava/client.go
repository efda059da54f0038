package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client is the provider API client. All calls acquire from the shared
// rate limiter before issuing HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	vault      *Vault
	log        zerolog.Logger
}

// NewClient creates a provider client backed by the given vault.
func NewClient(vault *Vault, limiter *RateLimiter, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    BaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		vault:      vault,
		log:        log,
	}
}

// SetBaseURL overrides the provider URL, used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// ListActivities fetches a page of activity summaries. after and before
// are optional (zero time omits them); perPage is capped at 200.
func (c *Client) ListActivities(ctx context.Context, userID uuid.UUID, after, before time.Time, perPage int) ([]Activity, error) {
	if perPage > 200 {
		perPage = 200
	}
	params := url.Values{}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	if !before.IsZero() {
		params.Set("before", strconv.FormatInt(before.Unix(), 10))
	}
	params.Set("per_page", strconv.Itoa(perPage))

	body, err := c.get(ctx, userID, "/athlete/activities", params)
	if err != nil {
		return nil, err
	}

	var activities []Activity
	if err := json.Unmarshal(body, &activities); err != nil {
		return nil, fmt.Errorf("decoding activities: %w", err)
	}
	return activities, nil
}

// GetActivityDetail fetches one activity in full, including splits_metric.
func (c *Client) GetActivityDetail(ctx context.Context, userID uuid.UUID, activityID int64) (*ActivityDetail, error) {
	params := url.Values{}
	params.Set("include_all_efforts", "false")

	body, err := c.get(ctx, userID, fmt.Sprintf("/activities/%d", activityID), params)
	if err != nil {
		return nil, err
	}

	var detail ActivityDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("decoding activity %d: %w", activityID, err)
	}
	return &detail, nil
}

// Deauthorize revokes the user's access with the provider.
func (c *Client) Deauthorize(ctx context.Context, userID uuid.UUID) error {
	_, err := c.do(ctx, userID, http.MethodPost, "/oauth/deauthorize", nil)
	return err
}

// RateLimitStatus returns remaining request counts for both windows.
func (c *Client) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	return c.limiter.Status()
}

func (c *Client) get(ctx context.Context, userID uuid.UUID, path string, params url.Values) ([]byte, error) {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, userID, http.MethodGet, path, nil)
}

// do issues one request with the standard recovery rules: a 401 triggers
// one forced refresh and retry, a 429 sleeps until the window resets and
// retries once. Everything else surfaces as *APIError.
func (c *Client) do(ctx context.Context, userID uuid.UUID, method, path string, body io.Reader) ([]byte, error) {
	token, err := c.vault.EnsureValid(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Wait rolls an expired window forward before the request goes out, so
	// the reset a 429 applies to is the one in force right now.
	windowReset := c.limiter.NextWindowReset()

	respBody, apiErr := c.issue(ctx, method, path, body, token)
	if apiErr == nil {
		return respBody, nil
	}

	if e, ok := apiErr.(*APIError); ok {
		switch {
		case e.IsAuth():
			c.log.Debug().Str("user_id", userID.String()).Msg("401 from provider, refreshing token")
			token, err = c.vault.ForceRefresh(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("refresh after 401: %w", err)
			}
			return c.issue(ctx, method, path, body, token)
		case e.IsRateLimited():
			wait := time.Until(windowReset)
			if wait < 0 {
				wait = 0
			}
			c.log.Warn().Dur("wait", wait).Msg("429 from provider, waiting for window reset")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return c.issue(ctx, method, path, body, token)
		}
	}
	return nil, apiErr
}

func (c *Client) issue(ctx context.Context, method, path string, body io.Reader, token string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.limiter.UpdateFromHeaders(resp.Header)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
