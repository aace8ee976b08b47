package usecase

import (
	"context"
	"sync"
	"time"

	"tradechat/internal/domain/entity"
	"tradechat/internal/domain/repository"
	"tradechat/pkg/errors"
	"tradechat/pkg/logger"
)

// State is the controller lifecycle: Idle before the first pass, Loading
// while a pass is in flight, Ready once a snapshot has been published.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
)

// Notifier receives a ping whenever a viewer's conversation snapshot
// changes. The websocket manager implements it.
type Notifier interface {
	NotifyConversationsUpdated(userID string)
}

// SyncController owns one viewer's conversation snapshot. It listens on
// the store's change feed, polls as a backstop, and serializes
// aggregation passes: at most one pass runs at a time, and any number of
// triggers arriving mid-pass coalesce into exactly one follow-up pass.
//
// The snapshot is copy-on-write. Readers get the current slice as-is;
// every publication installs a fresh slice, so a reader is never exposed
// to in-place mutation.
type SyncController struct {
	viewerID     string
	repo         repository.MessageRepository
	notifier     Notifier
	pollInterval time.Duration

	mu         sync.Mutex
	state      State
	inFlight   bool
	pending    bool
	snapshot   []*entity.Conversation
	generation uint64
	lastErr    error
	lastAccess time.Time

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

func NewSyncController(viewerID string, repo repository.MessageRepository, notifier Notifier, pollInterval time.Duration) *SyncController {
	return &SyncController{
		viewerID:     viewerID,
		repo:         repo,
		notifier:     notifier,
		pollInterval: pollInterval,
		state:        StateIdle,
		ctx:          context.Background(),
		lastAccess:   time.Now(),
	}
}

// Start subscribes to the change feed, begins the fallback poll and
// kicks off the initial aggregation pass. A failed subscription is
// tolerated: the poll alone still guarantees eventual consistency.
func (c *SyncController) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	unsubscribe, err := c.repo.Subscribe(c.ctx, c.viewerID, c.Refresh)
	if err != nil {
		logger.Warn("sync %s: change feed unavailable, relying on poll: %v", c.viewerID, err)
	} else {
		c.unsubscribe = unsubscribe
	}

	go c.pollLoop()
	c.Refresh()
}

// Stop tears down the subscription and the poll loop.
func (c *SyncController) Stop() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *SyncController) pollLoop() {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Refresh()
		case <-c.ctx.Done():
			return
		}
	}
}

// Refresh schedules an aggregation pass. If one is already running the
// request collapses into a single pending slot.
func (c *SyncController) Refresh() {
	c.mu.Lock()
	if c.inFlight {
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.state = StateLoading
	c.mu.Unlock()

	go c.runPasses()
}

// runPasses executes the current pass plus at most one coalesced
// follow-up per batch of triggers.
func (c *SyncController) runPasses() {
	for {
		messages, err := c.repo.FetchForUser(c.ctx, c.viewerID)

		var snapshot []*entity.Conversation
		if err == nil {
			snapshot = Aggregate(messages, c.viewerID)
		}

		c.mu.Lock()
		if err != nil {
			// Previous snapshot is retained; the error is surfaced via
			// the side channel for a retry affordance.
			c.lastErr = err
		} else {
			c.snapshot = snapshot
			c.generation++
			c.lastErr = nil
		}
		c.state = StateReady
		again := c.pending
		c.pending = false
		if !again {
			c.inFlight = false
		} else {
			c.state = StateLoading
		}
		c.mu.Unlock()

		if err != nil {
			logger.Error("sync %s: fetch failed: %v", c.viewerID, err)
		} else if c.notifier != nil {
			c.notifier.NotifyConversationsUpdated(c.viewerID)
		}

		if !again {
			return
		}
	}
}

// GetConversations returns the filtered view of the last published
// snapshot. It never blocks on an in-flight pass.
func (c *SyncController) GetConversations(filter entity.Filter) []*entity.Conversation {
	c.mu.Lock()
	snapshot := c.snapshot
	c.lastAccess = time.Now()
	c.mu.Unlock()

	return ApplyFilter(snapshot, filter)
}

// UnreadTotal is the global badge count over the current snapshot.
func (c *SyncController) UnreadTotal() int {
	c.mu.Lock()
	snapshot := c.snapshot
	c.mu.Unlock()

	return UnreadTotal(snapshot)
}

// Loading reports whether a pass is currently in flight.
func (c *SyncController) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateLoading
}

// State returns the current controller state.
func (c *SyncController) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err exposes the side-channel error from the last failed fetch or
// mutation. A successful pass clears it.
func (c *SyncController) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LastAccess is used by the hub to evict idle controllers.
func (c *SyncController) LastAccess() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAccess
}

// Archive sets or clears the archived flag on every message of the pair.
func (c *SyncController) Archive(ctx context.Context, otherUserID string, archived bool) error {
	patch := repository.MessagePatch{Archived: &archived}
	return c.mutatePair(ctx, otherUserID, patch, func(conv *entity.Conversation) {
		conv.Archived = archived
	})
}

// Silence marks the pair silenced. Visibility is unaffected; only
// notification delivery is suppressed.
func (c *SyncController) Silence(ctx context.Context, otherUserID string) error {
	silenced := true
	patch := repository.MessagePatch{Silenced: &silenced}
	return c.mutatePair(ctx, otherUserID, patch, func(conv *entity.Conversation) {
		conv.Silenced = true
	})
}

// Delete soft-deletes the conversation. It remains reachable through the
// deleted view until retrieved.
func (c *SyncController) Delete(ctx context.Context, otherUserID string) error {
	deleted := true
	patch := repository.MessagePatch{Deleted: &deleted}
	return c.mutatePair(ctx, otherUserID, patch, func(conv *entity.Conversation) {
		conv.Deleted = true
	})
}

// Retrieve restores a deleted or archived conversation to the inbox.
func (c *SyncController) Retrieve(ctx context.Context, otherUserID string) error {
	off := false
	patch := repository.MessagePatch{Deleted: &off, Archived: &off}
	return c.mutatePair(ctx, otherUserID, patch, func(conv *entity.Conversation) {
		conv.Deleted = false
		conv.Archived = false
	})
}

// MarkRead clears the unread state of every message the viewer received
// from the counterparty. Messages sent by the viewer are untouched, and
// repeating the call has no additional effect.
func (c *SyncController) MarkRead(ctx context.Context, otherUserID string) error {
	key, err := ConversationKey(c.viewerID, otherUserID)
	if err != nil {
		return errors.BadRequest("Invalid counterparty id", err)
	}

	prev, gen := c.applyLocal(key, func(conv *entity.Conversation) {
		conv.UnreadCount = 0
	})

	if err := c.repo.MarkPairRead(ctx, c.viewerID, otherUserID); err != nil {
		c.rollback(prev, gen, err)
		return errors.Internal("Failed to mark conversation read", err)
	}

	c.Refresh()
	return nil
}

// mutatePair runs the optimistic-update protocol shared by the overlay
// mutations: apply locally, persist the bulk update, roll back the local
// change if persistence fails, otherwise reconcile with a full pass.
func (c *SyncController) mutatePair(ctx context.Context, otherUserID string, patch repository.MessagePatch, apply func(*entity.Conversation)) error {
	key, err := ConversationKey(c.viewerID, otherUserID)
	if err != nil {
		return errors.BadRequest("Invalid counterparty id", err)
	}

	prev, gen := c.applyLocal(key, apply)

	if err := c.repo.BulkUpdatePair(ctx, c.viewerID, otherUserID, patch); err != nil {
		c.rollback(prev, gen, err)
		return errors.Internal("Failed to update conversation", err)
	}

	c.Refresh()
	return nil
}

// applyLocal installs a new snapshot with apply run against the clone of
// the matching conversation. It returns the prior snapshot and its
// generation for a possible rollback.
func (c *SyncController) applyLocal(key string, apply func(*entity.Conversation)) ([]*entity.Conversation, uint64) {
	c.mu.Lock()
	prev := c.snapshot
	prevGen := c.generation

	next := make([]*entity.Conversation, len(prev))
	copy(next, prev)
	for i, conv := range next {
		if conv.ID == key {
			clone := conv.Clone()
			apply(clone)
			next[i] = clone
		}
	}
	c.snapshot = next
	c.generation++
	c.mu.Unlock()

	if c.notifier != nil {
		c.notifier.NotifyConversationsUpdated(c.viewerID)
	}
	return prev, prevGen
}

// rollback restores the pre-mutation snapshot unless a newer pass has
// already replaced it, in which case that pass is the fresher truth.
func (c *SyncController) rollback(prev []*entity.Conversation, prevGen uint64, cause error) {
	c.mu.Lock()
	if c.generation == prevGen+1 {
		c.snapshot = prev
		c.generation++
	}
	c.lastErr = cause
	c.mu.Unlock()

	if c.notifier != nil {
		c.notifier.NotifyConversationsUpdated(c.viewerID)
	}
}
