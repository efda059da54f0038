// Package service is the inbound control surface: the presentation layer
// (HTTP handlers, bots) calls the core through it and nothing else.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trailpace/internal/gpx"
	"trailpace/internal/predict"
	"trailpace/internal/profile"
	"trailpace/internal/store"
	syncpkg "trailpace/internal/sync"
)

// ErrUnknownProfileKind is returned for a RebuildProfile kind outside
// {hiking, running}.
var ErrUnknownProfileKind = errors.New("unknown profile kind")

// Deauthorizer revokes a user's access with the activity provider.
type Deauthorizer interface {
	Deauthorize(ctx context.Context, userID uuid.UUID) error
}

// Service bundles the core's entry points.
type Service struct {
	store     *store.Store
	builder   *profile.Builder
	pipeline  *syncpkg.Pipeline
	scheduler *syncpkg.Scheduler
	provider  Deauthorizer
	log       zerolog.Logger
}

// New creates the service facade. provider may be nil when no activity
// provider is configured.
func New(st *store.Store, builder *profile.Builder, pipeline *syncpkg.Pipeline, scheduler *syncpkg.Scheduler, provider Deauthorizer, log zerolog.Logger) *Service {
	return &Service{store: st, builder: builder, pipeline: pipeline, scheduler: scheduler, provider: provider, log: log}
}

// HikeRequest is a hiking prediction request.
type HikeRequest struct {
	GPX    []byte
	UserID *uuid.UUID // nil for formula-only estimates

	Fatigue    bool
	Multiplier float64
}

// PredictHike parses the GPX and runs the hiking path, personalised from
// the user's hiking profile when one exists.
func (s *Service) PredictHike(req HikeRequest) (*predict.HikePrediction, error) {
	points, err := gpx.Parse(bytes.NewReader(req.GPX))
	if err != nil {
		return nil, err
	}

	opts := predict.HikeOptions{Fatigue: req.Fatigue, Multiplier: req.Multiplier}
	if req.UserID != nil {
		if p, err := s.store.GetHikingProfile(*req.UserID); err == nil {
			opts.Personaliser = p.Personaliser()
		} else if !errors.Is(err, store.ErrProfileNotFound) {
			return nil, err
		}
	}
	return predict.PredictHike(points, opts)
}

// RunRequest is a trail-running prediction request.
type RunRequest struct {
	GPX    []byte
	UserID *uuid.UUID

	GAPMode           predict.GAPMode
	FlatPaceMinKm     float64
	Fatigue           bool
	AdaptiveThreshold bool
	// WalkThresholdPct overrides both the default and the profile's
	// learned threshold.
	WalkThresholdPct *float64
}

// PredictTrailRun parses the GPX and runs the trail-running path. The
// user's run profile supplies the pace table and the learned walk
// threshold unless overridden.
func (s *Service) PredictTrailRun(req RunRequest) (*predict.RunPrediction, error) {
	points, err := gpx.Parse(bytes.NewReader(req.GPX))
	if err != nil {
		return nil, err
	}

	opts := predict.RunOptions{
		GAPMode:           req.GAPMode,
		FlatPaceMinKm:     req.FlatPaceMinKm,
		Fatigue:           req.Fatigue,
		AdaptiveThreshold: req.AdaptiveThreshold,
		WalkThresholdPct:  req.WalkThresholdPct,
	}
	if req.UserID != nil {
		if p, err := s.store.GetRunProfile(*req.UserID); err == nil {
			opts.Personaliser = p.Personaliser()
			if opts.WalkThresholdPct == nil {
				opts.WalkThresholdPct = p.WalkThresholdPct
			}
		} else if !errors.Is(err, store.ErrProfileNotFound) {
			return nil, err
		}
	}
	return predict.PredictTrailRun(points, opts)
}

// EnqueueSync queues a background sync for the user. Returns false when
// the user is already queued.
func (s *Service) EnqueueSync(userID uuid.UUID) bool {
	return s.scheduler.Enqueue(userID)
}

// SyncUser runs a sync pass immediately, bypassing the queue.
func (s *Service) SyncUser(ctx context.Context, userID uuid.UUID) syncpkg.Result {
	return s.pipeline.SyncUser(ctx, userID)
}

// Disconnect revokes the user's provider access and removes their
// credentials. The revocation call is best-effort; local state is always
// cleared.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID) error {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return err
	}
	if s.provider != nil {
		if err := s.provider.Deauthorize(ctx, userID); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("provider deauthorize failed")
		}
	}
	if err := s.store.DeleteToken(userID); err != nil {
		return err
	}
	user.StravaConnected = false
	return s.store.UpsertUser(user)
}

// RebuildProfile recomputes one of the user's profiles on demand.
// kind is "hiking" or "running".
func (s *Service) RebuildProfile(userID uuid.UUID, kind string) (*profile.Result, error) {
	switch kind {
	case "hiking":
		return s.builder.RebuildHiking(userID)
	case "running":
		return s.builder.RebuildRunning(userID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfileKind, kind)
	}
}

// ListNotifications returns the user's notifications, newest first.
func (s *Service) ListNotifications(userID uuid.UUID, unreadOnly bool, limit int) ([]store.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListNotifications(userID, unreadOnly, limit)
}

// MarkRead marks the given notifications read for the user.
func (s *Service) MarkRead(userID uuid.UUID, ids []int64) error {
	return s.store.MarkNotificationsRead(userID, ids)
}
