// Package sync keeps each user's activity cache current: an incremental,
// rate-limited, resumable fetch pass per user, plus a scheduler that runs
// passes concurrently over a deduplicating queue.
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trailpace/internal/profile"
	"trailpace/internal/store"
	"trailpace/internal/strava"
)

const (
	// DefaultBatchSize is the activities fetched per pass.
	DefaultBatchSize = 10

	// MaxHistoryDays bounds the first historical import.
	MaxHistoryDays = 365

	// apiCallDelay spaces the per-activity detail fetches.
	apiCallDelay = 1500 * time.Millisecond

	// progressNotificationInterval is the activity-count step between
	// sync_progress notifications during the initial import.
	progressNotificationInterval = 10

	// postSyncRecalcMinNew is how many newly split-synced activities
	// accumulate before an incremental profile rebuild.
	postSyncRecalcMinNew = 3
)

// supportedTypes are the activity types whose splits feed profiles.
var supportedTypes = map[string]bool{
	"Run": true, "TrailRun": true, "VirtualRun": true,
	"Hike": true, "Walk": true,
}

// Status classifies the outcome of one sync pass.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Result is the coarse outcome of one pass. Durable state lives on the
// SyncCursor; callers consult this only for logging.
type Result struct {
	Status       Status
	Fetched      int
	Saved        int
	SplitsSynced int
	Reason       string
}

// Provider is the slice of the provider client the pipeline needs.
type Provider interface {
	ListActivities(ctx context.Context, userID uuid.UUID, after, before time.Time, perPage int) ([]strava.Activity, error)
	GetActivityDetail(ctx context.Context, userID uuid.UUID, activityID int64) (*strava.ActivityDetail, error)
}

// Notifier is the slice of the notification bus the pipeline needs.
type Notifier interface {
	CreateAndSend(userID uuid.UUID, typ string, payload map[string]any) error
}

// Pipeline runs sync passes.
type Pipeline struct {
	store     *store.Store
	provider  Provider
	builder   *profile.Builder
	bus       Notifier
	batchSize int
	delay     time.Duration
	log       zerolog.Logger
}

// NewPipeline creates a sync pipeline. batchSize <= 0 selects the default.
func NewPipeline(st *store.Store, provider Provider, builder *profile.Builder, bus Notifier, batchSize int, log zerolog.Logger) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{
		store:     st,
		provider:  provider,
		builder:   builder,
		bus:       bus,
		batchSize: batchSize,
		delay:     apiCallDelay,
		log:       log,
	}
}

// SyncUser runs one pass for one user. A pass already in flight for the
// same user is skipped, never queued behind.
func (p *Pipeline) SyncUser(ctx context.Context, userID uuid.UUID) Result {
	start := time.Now()

	user, err := p.store.GetUser(userID)
	if err != nil {
		return Result{Status: StatusSkipped, Reason: "user not found"}
	}
	if !user.StravaConnected {
		return Result{Status: StatusSkipped, Reason: "not provider-connected"}
	}

	acquired, err := p.store.AcquireSyncLock(userID)
	if err != nil {
		return Result{Status: StatusError, Reason: err.Error()}
	}
	if !acquired {
		return Result{Status: StatusSkipped, Reason: "already_in_progress"}
	}
	defer func() {
		if err := p.store.ReleaseSyncLock(userID); err != nil {
			p.log.Error().Err(err).Str("user_id", userID.String()).Msg("releasing sync lock")
		}
	}()

	cursor, err := p.store.GetOrCreateSyncCursor(userID)
	if err != nil {
		return Result{Status: StatusError, Reason: err.Error()}
	}

	res, passErr := p.pass(ctx, userID, cursor)
	if passErr != nil {
		cursor.LastError = passErr.Error()
		now := time.Now().UTC()
		cursor.LastSyncAt = &now
		if err := p.store.UpdateSyncCursor(cursor); err != nil {
			p.log.Error().Err(err).Str("user_id", userID.String()).Msg("persisting cursor after failure")
		}
		// A 401 that survived the in-place refresh means the grant is gone;
		// disconnect the user until they re-authorise.
		var apiErr *strava.APIError
		if errors.As(passErr, &apiErr) && apiErr.IsAuth() {
			user.StravaConnected = false
			if err := p.store.UpsertUser(user); err != nil {
				p.log.Error().Err(err).Str("user_id", userID.String()).Msg("disconnecting user after auth failure")
			} else {
				p.log.Warn().Str("user_id", userID.String()).Msg("provider authorisation revoked, user disconnected")
			}
		}
		p.log.Error().Err(passErr).Str("user_id", userID.String()).Msg("sync pass failed")
		return Result{Status: StatusError, Reason: passErr.Error()}
	}

	p.log.Info().
		Str("user_id", userID.String()).
		Int("fetched", res.Fetched).
		Int("saved", res.Saved).
		Int("splits_synced", res.SplitsSynced).
		Dur("duration", time.Since(start)).
		Msg("sync pass complete")
	return res
}

func (p *Pipeline) pass(ctx context.Context, userID uuid.UUID, cursor *store.SyncCursor) (Result, error) {
	after := time.Now().UTC().AddDate(0, 0, -MaxHistoryDays)
	if cursor.NewestSyncedDate != nil {
		after = *cursor.NewestSyncedDate
	}

	page, err := p.provider.ListActivities(ctx, userID, after, time.Time{}, p.batchSize)
	if err != nil {
		return Result{}, err
	}

	inserted, err := p.store.InsertActivityBatch(toStoreActivities(userID, page))
	if err != nil {
		return Result{}, err
	}

	splitsSynced, typesSeen := p.fetchSplits(ctx, userID, cursor, inserted)

	prevTotal := cursor.TotalActivitiesSynced
	cursor.TotalActivitiesSynced += len(inserted)
	advanceDates(cursor, page)
	now := time.Now().UTC()
	cursor.LastSyncAt = &now
	cursor.LastError = ""

	p.notifyProgress(userID, cursor, prevTotal)

	initialCompleted := false
	if !cursor.InitialSyncComplete && len(page) < p.batchSize {
		initialCompleted = true
		cursor.InitialSyncComplete = true
		cursor.LastRecalcCheckpoint = 100
		cursor.NewSinceRecalc = 0
		p.notify(userID, store.NotifySyncComplete, map[string]any{
			"synced": cursor.TotalActivitiesSynced,
		})
		p.rebuild(userID, map[string]bool{"hike": true, "run": true})
	}

	if !initialCompleted {
		p.maybeRecalc(userID, cursor, splitsSynced, typesSeen)
	}

	if err := p.store.UpdateSyncCursor(cursor); err != nil {
		return Result{}, err
	}

	return Result{
		Status:       StatusSuccess,
		Fetched:      len(page),
		Saved:        len(inserted),
		SplitsSynced: splitsSynced,
	}, nil
}

// fetchSplits pulls detail for every newly inserted supported activity.
// Per-activity failures are logged and skipped; the pass continues.
func (p *Pipeline) fetchSplits(ctx context.Context, userID uuid.UUID, cursor *store.SyncCursor, inserted []*store.Activity) (int, map[string]bool) {
	synced := 0
	typesSeen := make(map[string]bool)
	first := true
	for _, a := range inserted {
		if !supportedTypes[a.Type] {
			continue
		}
		if !first {
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return synced, typesSeen
			}
		}
		first = false

		detail, err := p.provider.GetActivityDetail(ctx, userID, a.ID)
		if err != nil {
			p.log.Warn().
				Err(err).
				Str("user_id", userID.String()).
				Int64("activity_id", a.ID).
				Msg("fetching activity detail failed")
			continue
		}
		if err := p.store.SaveSplits(a.ID, toStoreSplits(a.ID, detail.SplitsMetric)); err != nil {
			p.log.Warn().
				Err(err).
				Int64("activity_id", a.ID).
				Msg("saving splits failed")
			continue
		}
		synced++
		cursor.ActivitiesWithSplits++
		typesSeen[profileKind(a.Type)] = true
	}
	return synced, typesSeen
}

// notifyProgress emits one sync_progress per multiple of the interval the
// running total crossed during the initial import.
func (p *Pipeline) notifyProgress(userID uuid.UUID, cursor *store.SyncCursor, prevTotal int) {
	if cursor.InitialSyncComplete {
		return
	}
	first := prevTotal/progressNotificationInterval + 1
	last := cursor.TotalActivitiesSynced / progressNotificationInterval
	for m := first; m <= last; m++ {
		p.notify(userID, store.NotifySyncProgress, map[string]any{
			"synced": m * progressNotificationInterval,
		})
		cursor.FirstBatchNotified = true
	}
}

// maybeRecalc applies the checkpoint rules and rebuilds the profiles whose
// activity types appeared in this pass.
func (p *Pipeline) maybeRecalc(userID uuid.UUID, cursor *store.SyncCursor, newSplits int, typesSeen map[string]bool) {
	if newSplits == 0 {
		return
	}

	fire := false
	if cursor.InitialSyncComplete {
		cursor.NewSinceRecalc += newSplits
		if cursor.NewSinceRecalc >= postSyncRecalcMinNew {
			fire = true
			cursor.NewSinceRecalc = 0
		}
	} else {
		switch {
		case cursor.LastRecalcCheckpoint < 5 && cursor.ActivitiesWithSplits >= 5:
			fire = true
			cursor.LastRecalcCheckpoint = 5
		case cursor.TotalActivitiesSynced > 0:
			pct := cursor.ActivitiesWithSplits * 100 / cursor.TotalActivitiesSynced
			if cursor.LastRecalcCheckpoint < 30 && pct >= 30 {
				fire = true
				cursor.LastRecalcCheckpoint = 30
			} else if cursor.LastRecalcCheckpoint < 60 && pct >= 60 {
				fire = true
				cursor.LastRecalcCheckpoint = 60
			}
		}
	}

	if fire {
		p.rebuild(userID, typesSeen)
	}
}

// rebuild runs the profile builder for the given kinds and notifies.
func (p *Pipeline) rebuild(userID uuid.UUID, kinds map[string]bool) {
	if kinds["hike"] {
		res, err := p.builder.RebuildHiking(userID)
		if err != nil {
			p.log.Error().Err(err).Str("user_id", userID.String()).Msg("hiking profile rebuild failed")
		} else if res.Built {
			p.notify(userID, store.NotifyProfileUpdated, map[string]any{"kind": "hiking"})
		}
	}
	if kinds["run"] {
		res, err := p.builder.RebuildRunning(userID)
		if err != nil {
			p.log.Error().Err(err).Str("user_id", userID.String()).Msg("run profile rebuild failed")
		} else if res.Built {
			p.notify(userID, store.NotifyProfileUpdated, map[string]any{"kind": "running"})
		}
	}
}

func (p *Pipeline) notify(userID uuid.UUID, typ string, payload map[string]any) {
	if p.bus == nil {
		return
	}
	if err := p.bus.CreateAndSend(userID, typ, payload); err != nil {
		p.log.Warn().Err(err).Str("type", typ).Msg("creating notification failed")
	}
}

func toStoreActivities(userID uuid.UUID, page []strava.Activity) []*store.Activity {
	out := make([]*store.Activity, len(page))
	for i, a := range page {
		out[i] = &store.Activity{
			ID:               a.ID,
			UserID:           userID,
			Name:             a.Name,
			Type:             a.Type,
			StartDate:        a.StartDate.UTC(),
			DistanceM:        a.Distance,
			MovingTimeS:      a.MovingTime,
			ElapsedTimeS:     a.ElapsedTime,
			ElevationGainM:   a.TotalElevationGain,
			AverageSpeed:     a.AverageSpeed,
			MaxSpeed:         a.MaxSpeed,
			AverageHeartrate: a.AverageHeartrate,
			MaxHeartrate:     a.MaxHeartrate,
			AverageCadence:   a.AverageCadence,
			SufferScore:      a.SufferScore,
		}
	}
	return out
}

func toStoreSplits(activityID int64, metrics []strava.SplitMetric) []store.Split {
	out := make([]store.Split, len(metrics))
	for i, m := range metrics {
		out[i] = store.Split{
			ActivityID:       activityID,
			Split:            m.Split,
			DistanceM:        m.Distance,
			MovingTimeS:      m.MovingTime,
			ElapsedTimeS:     m.ElapsedTime,
			ElevationDiffM:   m.ElevationDifference,
			AverageSpeed:     m.AverageSpeed,
			AverageHeartrate: m.AverageHeartrate,
			PaceZone:         m.PaceZone,
		}
	}
	return out
}

func profileKind(activityType string) string {
	switch activityType {
	case "Hike", "Walk":
		return "hike"
	default:
		return "run"
	}
}

// advanceDates keeps the cursor's date range monotonically widening.
func advanceDates(cursor *store.SyncCursor, page []strava.Activity) {
	for _, a := range page {
		sd := a.StartDate.UTC()
		if cursor.NewestSyncedDate == nil || sd.After(*cursor.NewestSyncedDate) {
			t := sd
			cursor.NewestSyncedDate = &t
		}
		if cursor.OldestSyncedDate == nil || sd.Before(*cursor.OldestSyncedDate) {
			t := sd
			cursor.OldestSyncedDate = &t
		}
	}
}
