package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrResolverMiss is returned when the sibling service has no token for
// the user (a 404). Misses are not cached.
var ErrResolverMiss = errors.New("strava: resolver has no token")

const resolverCacheTTL = 30 * time.Minute

// ResolvedToken is a token obtained from the sibling service. It carries
// no refresh token; when it stops working the resolver is asked again.
type ResolvedToken struct {
	AccessToken string `json:"access_token"`
	AthleteID   int64  `json:"athlete_id"`
	Scope       string `json:"scope"`
}

// Resolver fetches tokens from a sibling service over HTTP with a shared
// API key, caching hits for 30 minutes.
type Resolver struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu    sync.Mutex
	cache map[uuid.UUID]resolverEntry
}

type resolverEntry struct {
	token     ResolvedToken
	fetchedAt time.Time
}

// NewResolver creates a cross-service token resolver.
func NewResolver(baseURL, apiKey string) *Resolver {
	return &Resolver{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[uuid.UUID]resolverEntry),
	}
}

// Resolve returns the sibling service's token for the user.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (*ResolvedToken, error) {
	r.mu.Lock()
	if e, ok := r.cache[userID]; ok && time.Since(e.fetchedAt) < resolverCacheTTL {
		tok := e.token
		r.mu.Unlock()
		return &tok, nil
	}
	r.mu.Unlock()

	reqURL := fmt.Sprintf("%s/internal/token?user_id=%s", r.baseURL, url.QueryEscape(userID.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolver request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrResolverMiss
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tok ResolvedToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decoding resolver response: %w", err)
	}

	r.mu.Lock()
	r.cache[userID] = resolverEntry{token: tok, fetchedAt: time.Now()}
	r.mu.Unlock()
	return &tok, nil
}

// Invalidate drops a cached token, e.g. after the provider rejected it.
func (r *Resolver) Invalidate(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}
