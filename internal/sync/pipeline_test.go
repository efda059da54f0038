package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailpace/internal/profile"
	"trailpace/internal/store"
	"trailpace/internal/strava"
)

// fakeProvider serves scripted pages of activities.
type fakeProvider struct {
	mu        sync.Mutex
	pages     [][]strava.Activity
	listCalls int
	details   map[int64]*strava.ActivityDetail
	detailErr map[int64]error
	// listStarted/listRelease let a test hold a pass open mid-flight.
	listStarted chan struct{}
	listRelease chan struct{}
}

func (f *fakeProvider) ListActivities(ctx context.Context, userID uuid.UUID, after, before time.Time, perPage int) ([]strava.Activity, error) {
	if f.listStarted != nil {
		f.listStarted <- struct{}{}
		<-f.listRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listCalls >= len(f.pages) {
		return nil, nil
	}
	page := f.pages[f.listCalls]
	f.listCalls++
	return page, nil
}

func (f *fakeProvider) GetActivityDetail(ctx context.Context, userID uuid.UUID, activityID int64) (*strava.ActivityDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.detailErr[activityID]; ok {
		return nil, err
	}
	if d, ok := f.details[activityID]; ok {
		return d, nil
	}
	return &strava.ActivityDetail{SplitsMetric: []strava.SplitMetric{
		{Split: 1, Distance: 1000, MovingTime: 330, ElevationDifference: 10},
	}}, nil
}

// fakeBus records notifications synchronously.
type fakeBus struct {
	mu    sync.Mutex
	types []string
}

func (b *fakeBus) CreateAndSend(userID uuid.UUID, typ string, payload map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, typ)
	return nil
}

func (b *fakeBus) count(typ string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, t := range b.types {
		if t == typ {
			n++
		}
	}
	return n
}

func activityPage(n int, typ string, newestFirst time.Time) []strava.Activity {
	page := make([]strava.Activity, n)
	for i := 0; i < n; i++ {
		page[i] = strava.Activity{
			ID:          int64(1000 + i),
			Name:        fmt.Sprintf("activity %d", i),
			Type:        typ,
			StartDate:   newestFirst.Add(-time.Duration(i) * 24 * time.Hour),
			Distance:    10000,
			MovingTime:  3300,
			ElapsedTime: 3400,
		}
	}
	return page
}

func newTestPipeline(t *testing.T, provider Provider, bus Notifier, batch int) (*Pipeline, *store.Store, uuid.UUID) {
	t.Helper()
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	userID := uuid.New()
	require.NoError(t, st.UpsertUser(&store.User{ID: userID, StravaConnected: true}))

	builder := profile.NewBuilder(st, zerolog.Nop())
	p := NewPipeline(st, provider, builder, bus, batch, zerolog.Nop())
	p.delay = 0
	return p, st, userID
}

func TestSyncSkipsDisconnectedUser(t *testing.T) {
	p, st, _ := newTestPipeline(t, &fakeProvider{}, &fakeBus{}, 10)
	disconnected := uuid.New()
	require.NoError(t, st.UpsertUser(&store.User{ID: disconnected}))

	res := p.SyncUser(context.Background(), disconnected)
	assert.Equal(t, StatusSkipped, res.Status)
}

func TestInitialSyncCompletion(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	provider := &fakeProvider{pages: [][]strava.Activity{
		activityPage(10, "Run", now),
		nil, // second call: empty page
	}}
	bus := &fakeBus{}
	p, st, userID := newTestPipeline(t, provider, bus, 10)

	// Pass 1: full page, initial sync still running.
	res := p.SyncUser(context.Background(), userID)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 10, res.Fetched)
	assert.Equal(t, 10, res.Saved)
	assert.Equal(t, 10, res.SplitsSynced)

	cursor, err := st.GetOrCreateSyncCursor(userID)
	require.NoError(t, err)
	assert.Equal(t, 10, cursor.TotalActivitiesSynced)
	assert.False(t, cursor.InitialSyncComplete)
	assert.False(t, cursor.InProgress)
	// Crossing the multiple of 10 fired a progress notification.
	assert.Equal(t, 1, bus.count(store.NotifySyncProgress))
	// 10 activities with splits crossed the first recalc checkpoint.
	assert.GreaterOrEqual(t, cursor.LastRecalcCheckpoint, 5)

	// Pass 2: short (empty) page completes the initial sync.
	res = p.SyncUser(context.Background(), userID)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 0, res.Fetched)

	cursor, err = st.GetOrCreateSyncCursor(userID)
	require.NoError(t, err)
	assert.True(t, cursor.InitialSyncComplete)
	assert.Equal(t, 100, cursor.LastRecalcCheckpoint)
	assert.Equal(t, 1, bus.count(store.NotifySyncComplete))
	require.NotNil(t, cursor.NewestSyncedDate)
	assert.True(t, cursor.NewestSyncedDate.Equal(now))

	// The completion rebuild produced a run profile from the synced splits.
	_, err = st.GetRunProfile(userID)
	assert.NoError(t, err)

	// Pass 3: nothing new; sync_complete is not emitted again.
	res = p.SyncUser(context.Background(), userID)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, bus.count(store.NotifySyncComplete))
}

func TestProgressNotifiesEachCrossedMultiple(t *testing.T) {
	now := time.Now().UTC()
	provider := &fakeProvider{pages: [][]strava.Activity{
		activityPage(25, "Run", now),
	}}
	bus := &fakeBus{}
	p, _, userID := newTestPipeline(t, provider, bus, 30)

	// One pass covering 25 activities crosses both 10 and 20.
	res := p.SyncUser(context.Background(), userID)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 25, res.Saved)
	assert.Equal(t, 2, bus.count(store.NotifySyncProgress))
	// 25 < batch, so the same pass also completes the initial sync.
	assert.Equal(t, 1, bus.count(store.NotifySyncComplete))
}

func TestRepeatedPassIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	// The same page on every call, as if the provider kept returning the
	// activities already cached.
	provider := &fakeProvider{pages: [][]strava.Activity{
		activityPage(5, "Hike", now),
		activityPage(5, "Hike", now),
	}}
	p, st, userID := newTestPipeline(t, provider, &fakeBus{}, 10)

	res := p.SyncUser(context.Background(), userID)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 5, res.Saved)

	res = p.SyncUser(context.Background(), userID)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 0, res.Saved)
	assert.Equal(t, 0, res.SplitsSynced)

	count, err := st.CountActivities(userID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestConcurrentPassSkipsWithoutTouchingDB(t *testing.T) {
	provider := &fakeProvider{
		pages:       [][]strava.Activity{activityPage(3, "Run", time.Now().UTC())},
		listStarted: make(chan struct{}, 1),
		listRelease: make(chan struct{}),
	}
	p, st, userID := newTestPipeline(t, provider, &fakeBus{}, 10)

	done := make(chan Result, 1)
	go func() { done <- p.SyncUser(context.Background(), userID) }()

	<-provider.listStarted // first pass holds the lock, blocked in HTTP

	res := p.SyncUser(context.Background(), userID)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, "already_in_progress", res.Reason)
	count, err := st.CountActivities(userID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	close(provider.listRelease)
	first := <-done
	assert.Equal(t, StatusSuccess, first.Status)
}

func TestDetailFailureDoesNotAbortPass(t *testing.T) {
	now := time.Now().UTC()
	provider := &fakeProvider{
		pages:     [][]strava.Activity{activityPage(3, "Run", now)},
		detailErr: map[int64]error{1001: errors.New("detail boom")},
	}
	p, st, userID := newTestPipeline(t, provider, &fakeBus{}, 10)

	res := p.SyncUser(context.Background(), userID)
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 3, res.Saved)
	assert.Equal(t, 2, res.SplitsSynced)

	cursor, err := st.GetOrCreateSyncCursor(userID)
	require.NoError(t, err)
	assert.Equal(t, 2, cursor.ActivitiesWithSplits)
	assert.Empty(t, cursor.LastError)
}

func TestListFailureRecordsErrorAndReleasesLock(t *testing.T) {
	provider := &failingProvider{err: errors.New("provider down")}
	p, st, userID := newTestPipeline(t, provider, &fakeBus{}, 10)

	res := p.SyncUser(context.Background(), userID)
	assert.Equal(t, StatusError, res.Status)

	cursor, err := st.GetOrCreateSyncCursor(userID)
	require.NoError(t, err)
	assert.Contains(t, cursor.LastError, "provider down")
	assert.False(t, cursor.InProgress)

	// The lock was released; the next pass can run.
	acquired, err := st.AcquireSyncLock(userID)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestPostInitialRecalcEveryThreeNewActivities(t *testing.T) {
	now := time.Now().UTC()
	provider := &fakeProvider{pages: [][]strava.Activity{
		activityPage(2, "Run", now),
		activityPage(1, "Run", now.Add(48*time.Hour))[0:1],
	}}
	// Distinct ids for the second page.
	provider.pages[1][0].ID = 2001

	bus := &fakeBus{}
	p, st, userID := newTestPipeline(t, provider, bus, 10)

	// First pass: 2 < batch, so initial sync completes immediately.
	res := p.SyncUser(context.Background(), userID)
	require.Equal(t, StatusSuccess, res.Status)
	cursor, err := st.GetOrCreateSyncCursor(userID)
	require.NoError(t, err)
	require.True(t, cursor.InitialSyncComplete)
	assert.Equal(t, 0, cursor.NewSinceRecalc)
	updatedAfterInitial := bus.count(store.NotifyProfileUpdated)

	// Second pass: one new activity accumulates but does not fire.
	res = p.SyncUser(context.Background(), userID)
	require.Equal(t, StatusSuccess, res.Status)
	cursor, err = st.GetOrCreateSyncCursor(userID)
	require.NoError(t, err)
	assert.Equal(t, 1, cursor.NewSinceRecalc)
	assert.Equal(t, updatedAfterInitial, bus.count(store.NotifyProfileUpdated))
}

func TestPersistentAuthFailureDisconnectsUser(t *testing.T) {
	provider := &failingProvider{err: &strava.APIError{StatusCode: 401, Body: "unauthorized"}}
	p, st, userID := newTestPipeline(t, provider, &fakeBus{}, 10)

	res := p.SyncUser(context.Background(), userID)
	assert.Equal(t, StatusError, res.Status)

	user, err := st.GetUser(userID)
	require.NoError(t, err)
	assert.False(t, user.StravaConnected, "a 401 that survives refresh should disconnect the user")

	// Subsequent passes skip until the user re-authorises.
	res = p.SyncUser(context.Background(), userID)
	assert.Equal(t, StatusSkipped, res.Status)
}

type failingProvider struct{ err error }

func (f *failingProvider) ListActivities(ctx context.Context, userID uuid.UUID, after, before time.Time, perPage int) ([]strava.Activity, error) {
	return nil, f.err
}

func (f *failingProvider) GetActivityDetail(ctx context.Context, userID uuid.UUID, activityID int64) (*strava.ActivityDetail, error) {
	return nil, f.err
}
