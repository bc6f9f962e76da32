package revisor

import (
	"context"
	"fmt"
	"sync"
)

// Event names a lifecycle moment hooks can subscribe to. Pre-events
// (Creating, Publishing, SavingNewVersion, ...) fire before the mutation and
// may veto it by returning ErrVetoed.
type Event string

const (
	EventCreating  Event = "creating"
	EventCreated   Event = "created"
	EventUpdating  Event = "updating"
	EventUpdated   Event = "updated"
	EventSaving    Event = "saving"
	EventDeleting  Event = "deleting"
	EventDeleted   Event = "deleted"
	EventRestored  Event = "restored"

	EventPublishing   Event = "publishing"
	EventPublished    Event = "published"
	EventUnpublishing Event = "unpublishing"
	EventUnpublished  Event = "unpublished"

	EventSavingNewVersion        Event = "savingNewVersion"
	EventSavedNewVersion         Event = "savedNewVersion"
	EventSyncingToCurrentVersion Event = "syncingToCurrentVersion"
	EventSyncedToCurrentVersion  Event = "syncedToCurrentVersion"
	EventRevertingToVersion      Event = "revertingToVersion"
	EventRevertedToVersion       Event = "revertedToVersion"
)

// Hook observes a lifecycle event. Returning an error from a pre-event
// aborts the operation; ErrVetoed marks the expected rejection path, any
// other error is treated as a failure.
type Hook func(ctx context.Context, rec *Record) error

// Hooks dispatches lifecycle events to subscribers in registration order.
type Hooks struct {
	mu       sync.RWMutex
	handlers map[Event][]Hook
}

func NewHooks() *Hooks {
	return &Hooks{handlers: make(map[Event][]Hook)}
}

// On subscribes a hook to an event.
func (h *Hooks) On(event Event, hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[event] = append(h.handlers[event], hook)
}

// Fire runs the subscribers for an event, stopping at the first error.
func (h *Hooks) Fire(ctx context.Context, event Event, rec *Record) error {
	h.mu.RLock()
	hooks := h.handlers[event]
	h.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, rec); err != nil {
			return fmt.Errorf("%s %s: %w", event, rec.Base(), err)
		}
	}
	return nil
}
