package strava

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"trailpace/internal/store"
)

// RefreshMargin is how long before expiry a token is treated as expired.
const RefreshMargin = 300 * time.Second

// TokenURL is the provider's OAuth token endpoint.
var TokenURL = "https://www.strava.com/oauth/token"

// ErrNoCredentials is returned when a user has no token locally and the
// resolver (if any) cannot supply one either.
var ErrNoCredentials = errors.New("strava: no credentials for user")

// Vault hands out valid access tokens. Reads are cheap; refreshes take a
// per-user mutex and replace the stored triple atomically.
type Vault struct {
	store    *store.Store
	conf     *oauth2.Config
	resolver *Resolver // nil when the cross-service fallback is disabled
	log      zerolog.Logger

	mu      sync.Mutex
	perUser map[uuid.UUID]*sync.Mutex
}

// NewVault creates a token vault. resolver may be nil.
func NewVault(st *store.Store, clientID, clientSecret string, resolver *Resolver, log zerolog.Logger) *Vault {
	return &Vault{
		store: st,
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: TokenURL},
		},
		resolver: resolver,
		log:      log,
		perUser:  make(map[uuid.UUID]*sync.Mutex),
	}
}

// EnsureValid returns an access token for the user, refreshing first when
// the stored one expires within RefreshMargin.
func (v *Vault) EnsureValid(ctx context.Context, userID uuid.UUID) (string, error) {
	tok, err := v.store.GetToken(userID)
	if errors.Is(err, store.ErrNoToken) {
		return v.resolve(ctx, userID)
	}
	if err != nil {
		return "", err
	}

	if !expiresSoon(tok.ExpiresAt) {
		return tok.AccessToken, nil
	}
	refreshed, err := v.refresh(ctx, userID, false)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// ForceRefresh refreshes the user's token regardless of its recorded
// expiry. Used after a 401: the provider is the authority on validity.
// A user with no local token got their access token from the resolver;
// the cached copy is dropped and a fresh one fetched instead.
func (v *Vault) ForceRefresh(ctx context.Context, userID uuid.UUID) (string, error) {
	tok, err := v.refresh(ctx, userID, true)
	if errors.Is(err, store.ErrNoToken) && v.resolver != nil {
		v.resolver.Invalidate(userID)
		return v.resolve(ctx, userID)
	}
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (v *Vault) refresh(ctx context.Context, userID uuid.UUID, force bool) (*store.Token, error) {
	lock := v.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: another goroutine may have refreshed while
	// we waited.
	tok, err := v.store.GetToken(userID)
	if err != nil {
		return nil, err
	}
	if !force && !expiresSoon(tok.ExpiresAt) {
		return tok, nil
	}

	// An already-expired Expiry forces the oauth2 transport into the
	// refresh-token grant.
	stale := &oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	fresh, err := v.conf.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	tok.AccessToken = fresh.AccessToken
	if fresh.RefreshToken != "" {
		tok.RefreshToken = fresh.RefreshToken
	}
	tok.ExpiresAt = fresh.Expiry.Unix()
	if err := v.store.SaveToken(tok); err != nil {
		return nil, fmt.Errorf("persisting refreshed token: %w", err)
	}
	v.log.Debug().Str("user_id", userID.String()).Msg("token refreshed")
	return tok, nil
}

func (v *Vault) resolve(ctx context.Context, userID uuid.UUID) (string, error) {
	if v.resolver == nil {
		return "", ErrNoCredentials
	}
	rt, err := v.resolver.Resolve(ctx, userID)
	if errors.Is(err, ErrResolverMiss) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", err
	}
	return rt.AccessToken, nil
}

func (v *Vault) userLock(userID uuid.UUID) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	lock, ok := v.perUser[userID]
	if !ok {
		lock = &sync.Mutex{}
		v.perUser[userID] = lock
	}
	return lock
}

func expiresSoon(expiresAt int64) bool {
	return time.Now().Add(RefreshMargin).Unix() >= expiresAt
}
