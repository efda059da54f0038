package store

import (
	"time"

	"github.com/google/uuid"

	"trailpace/internal/gradient"
	"trailpace/internal/personal"
)

// User is an account known to the system. Creation belongs to the
// presentation layer; the core only reads and links to it.
type User struct {
	ID              uuid.UUID
	StravaAthleteID int64
	TelegramChatID  int64 // 0 when the user has no push channel
	StravaConnected bool
	CreatedAt       time.Time
}

// Activity is one workout cached from the activity provider. Activities are
// append-only: once inserted they are never modified, except for the
// splits_synced flag. GPS traces are never persisted.
type Activity struct {
	ID               int64 // provider activity id
	UserID           uuid.UUID
	Name             string
	Type             string
	StartDate        time.Time
	DistanceM        float64
	MovingTimeS      int
	ElapsedTimeS     int
	ElevationGainM   float64
	ElevationLossM   float64
	AverageSpeed     float64
	MaxSpeed         float64
	AverageHeartrate *float64
	MaxHeartrate     *float64
	AverageCadence   *float64
	SufferScore      *int
	SplitsSynced     bool
}

// Split is one ~1 km segment of an activity. Immutable once the parent's
// splits_synced flag is set.
type Split struct {
	ActivityID       int64
	Split            int // 1-based ordinal
	DistanceM        float64
	MovingTimeS      int
	ElapsedTimeS     int
	ElevationDiffM   float64
	AverageSpeed     float64
	AverageHeartrate *float64
	PaceZone         *int
}

// PaceMinKm derives the split's pace in minutes per km. Zero-distance
// splits yield 0.
func (s Split) PaceMinKm() float64 {
	if s.DistanceM <= 0 {
		return 0
	}
	return (float64(s.MovingTimeS) / 60) / (s.DistanceM / 1000)
}

// GradientPct derives the split's gradient in percent.
func (s Split) GradientPct() float64 {
	if s.DistanceM <= 0 {
		return 0
	}
	return s.ElevationDiffM / s.DistanceM * 100
}

// SyncCursor tracks one user's incremental sync progress. The in_progress
// flag doubles as the per-user sync lock.
type SyncCursor struct {
	UserID                uuid.UUID
	OldestSyncedDate      *time.Time
	NewestSyncedDate      *time.Time
	TotalActivitiesSynced int
	ActivitiesWithSplits  int
	LastError             string
	InProgress            bool
	InitialSyncComplete   bool
	LastRecalcCheckpoint  int
	NewSinceRecalc        int
	FirstBatchNotified    bool
	LastSyncAt            *time.Time
}

// Token holds one user's OAuth credentials for the activity provider.
// Treated as opaque secrets everywhere.
type Token struct {
	UserID       uuid.UUID
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // epoch seconds
	Scope        string
}

// Notification types created by the core.
const (
	NotifySyncProgress      = "sync_progress"
	NotifySyncComplete      = "sync_complete"
	NotifyProfileUpdated    = "profile_updated"
	NotifyProfileComplete   = "profile_complete"
	NotifyProfileIncomplete = "profile_incomplete"
	NotifyStravaConnected   = "strava_connected"
)

// Notification is a user-visible event. The row is the source of truth;
// any push delivery is best-effort.
type Notification struct {
	ID        int64
	UserID    uuid.UUID
	Type      string
	Payload   map[string]any
	Read      bool
	CreatedAt time.Time
}

// HikingProfile is a user's personalised hiking pace profile.
type HikingProfile struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Table            personal.PaceTable
	Legacy           map[gradient.LegacyCategory]float64
	TotalActivities  int
	TotalHikes       int
	TotalDistanceKm  float64
	TotalElevationM  float64
	VerticalAbility  float64
	LastCalculatedAt time.Time
}

// RunProfile is a user's personalised trail-running pace profile.
type RunProfile struct {
	ID               int64
	UserID           uuid.UUID
	Table            personal.PaceTable
	Legacy           map[gradient.LegacyCategory]float64
	TotalActivities  int
	TotalRuns        int
	TotalDistanceKm  float64
	TotalElevationM  float64
	WalkThresholdPct *float64 // nil until detected; consumers default to 25
	LastCalculatedAt time.Time
}
