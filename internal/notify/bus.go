// Package notify creates durable notification rows and pushes them to the
// user's external channel on a best-effort basis.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trailpace/internal/store"
)

// Bus writes notifications to the store and pushes them out. The row is
// the source of truth; a failed push never propagates.
type Bus struct {
	store  *store.Store
	pusher Pusher // nil when push is disabled
	log    zerolog.Logger
}

// NewBus creates a notification bus. pusher may be nil.
func NewBus(st *store.Store, pusher Pusher, log zerolog.Logger) *Bus {
	return &Bus{store: st, pusher: pusher, log: log}
}

// CreateAndSend inserts the notification row, then attempts a push to the
// user's channel. Only the insert can fail the call.
func (b *Bus) CreateAndSend(userID uuid.UUID, typ string, payload map[string]any) error {
	n := &store.Notification{UserID: userID, Type: typ, Payload: payload}
	if err := b.store.InsertNotification(n); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	if b.pusher == nil {
		return nil
	}
	user, err := b.store.GetUser(userID)
	if err != nil || user.TelegramChatID == 0 {
		return nil
	}

	text := format(typ, payload)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := b.pusher.Push(ctx, user.TelegramChatID, text); err != nil {
			b.log.Warn().
				Err(err).
				Str("user_id", userID.String()).
				Str("type", typ).
				Msg("notification push failed")
		}
	}()
	return nil
}

// format renders a notification payload as the push message text.
func format(typ string, payload map[string]any) string {
	switch typ {
	case store.NotifySyncProgress:
		return fmt.Sprintf("Sync in progress: %v activities imported so far.", payload["synced"])
	case store.NotifySyncComplete:
		return fmt.Sprintf("Activity sync complete: %v activities imported.", payload["synced"])
	case store.NotifyProfileUpdated:
		return fmt.Sprintf("Your %v pace profile was updated.", payload["kind"])
	case store.NotifyProfileComplete:
		return fmt.Sprintf("Your %v pace profile is ready. Predictions are now personalised.", payload["kind"])
	case store.NotifyProfileIncomplete:
		return fmt.Sprintf("Not enough data yet for a %v pace profile: %v", payload["kind"], payload["reason"])
	case store.NotifyStravaConnected:
		return "Strava connected. Importing your activity history now."
	default:
		return fmt.Sprintf("Notification: %s", typ)
	}
}
