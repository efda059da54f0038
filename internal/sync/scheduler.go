package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trailpace/internal/store"
)

const (
	// DefaultUsersPerBatch is the number of concurrent sync workers.
	DefaultUsersPerBatch = 5

	// DefaultMinSyncInterval is how old a user's last sync must be before
	// the periodic scan re-enqueues them.
	DefaultMinSyncInterval = 6 * time.Hour

	// staleLockAge is how long an in_progress flag may stand before the
	// crash-recovery sweep clears it.
	staleLockAge = time.Hour

	// queueCapacity bounds the sync queue.
	queueCapacity = 256
)

// Scheduler feeds the pipeline: a bounded deduplicating queue of user ids
// consumed by a fixed pool of workers, plus a periodic scan that enqueues
// users overdue for a sync.
type Scheduler struct {
	pipeline        *Pipeline
	store           *store.Store
	workers         int
	minSyncInterval time.Duration
	scanInterval    time.Duration
	log             zerolog.Logger

	mu     sync.Mutex
	queued map[uuid.UUID]struct{}
	queue  chan uuid.UUID
}

// NewScheduler creates a scheduler. Zero values select the defaults.
func NewScheduler(p *Pipeline, st *store.Store, workers int, minSyncInterval time.Duration, log zerolog.Logger) *Scheduler {
	if workers <= 0 {
		workers = DefaultUsersPerBatch
	}
	if minSyncInterval <= 0 {
		minSyncInterval = DefaultMinSyncInterval
	}
	return &Scheduler{
		pipeline:        p,
		store:           st,
		workers:         workers,
		minSyncInterval: minSyncInterval,
		scanInterval:    15 * time.Minute,
		log:             log,
		queued:          make(map[uuid.UUID]struct{}),
		queue:           make(chan uuid.UUID, queueCapacity),
	}
}

// Enqueue adds a user to the sync queue. Returns false when the user is
// already queued or the queue is full.
func (s *Scheduler) Enqueue(userID uuid.UUID) bool {
	s.mu.Lock()
	if _, dup := s.queued[userID]; dup {
		s.mu.Unlock()
		return false
	}
	select {
	case s.queue <- userID:
		s.queued[userID] = struct{}{}
		s.mu.Unlock()
		return true
	default:
		s.mu.Unlock()
		s.log.Warn().Str("user_id", userID.String()).Msg("sync queue full, dropping enqueue")
		return false
	}
}

// Run starts the workers and the periodic scan, blocking until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.recoverStaleLocks()

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case userID := <-s.queue:
					s.mu.Lock()
					delete(s.queued, userID)
					s.mu.Unlock()

					res := s.pipeline.SyncUser(ctx, userID)
					if res.Status == StatusSkipped {
						s.log.Debug().
							Str("user_id", userID.String()).
							Str("reason", res.Reason).
							Msg("sync skipped")
					}
				}
			}
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(s.scanInterval)
		defer ticker.Stop()
		s.scan()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				s.recoverStaleLocks()
				s.scan()
			}
		}
	})

	return g.Wait()
}

// scan enqueues every connected user whose last sync is older than the
// minimum interval.
func (s *Scheduler) scan() {
	cutoff := time.Now().UTC().Add(-s.minSyncInterval)
	ids, err := s.store.ListUsersNeedingSync(cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("scanning for stale users")
		return
	}
	enqueued := 0
	for _, id := range ids {
		if s.Enqueue(id) {
			enqueued++
		}
	}
	if enqueued > 0 {
		s.log.Info().Int("users", enqueued).Msg("enqueued stale users for sync")
	}
}

// recoverStaleLocks clears in_progress flags abandoned by a crashed
// process so those users can sync again.
func (s *Scheduler) recoverStaleLocks() {
	ids, err := s.store.RecoverStaleSyncLocks(staleLockAge)
	if err != nil {
		s.log.Error().Err(err).Msg("recovering stale sync locks")
		return
	}
	if len(ids) > 0 {
		s.log.Warn().Int("users", len(ids)).Msg("recovered stale sync locks")
	}
}
