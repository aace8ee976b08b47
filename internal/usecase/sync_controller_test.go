package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradechat/internal/domain/entity"
	"tradechat/internal/domain/repository"
)

// fakeMessageRepo is an in-memory store for controller tests. The
// optional gates let a test hold a fetch open to exercise coalescing.
type fakeMessageRepo struct {
	mu          sync.Mutex
	messages    []*entity.Message
	fetchErr    error
	bulkErr     error
	markReadErr error
	fetchCount  int
	fetchBegun  chan struct{}
	fetchGate   chan struct{}
}

func (f *fakeMessageRepo) FetchForUser(ctx context.Context, userID string) ([]*entity.Message, error) {
	f.mu.Lock()
	f.fetchCount++
	begun := f.fetchBegun
	gate := f.fetchGate
	err := f.fetchErr
	messages := make([]*entity.Message, len(f.messages))
	for i, m := range f.messages {
		clone := *m
		messages[i] = &clone
	}
	f.mu.Unlock()

	if begun != nil {
		begun <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (f *fakeMessageRepo) Insert(ctx context.Context, message *entity.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeMessageRepo) BulkUpdatePair(ctx context.Context, userID, otherID string, patch repository.MessagePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return f.bulkErr
	}
	for _, m := range f.messages {
		between := (m.SenderID == userID && m.ReceiverID == otherID) ||
			(m.SenderID == otherID && m.ReceiverID == userID)
		if !between {
			continue
		}
		if patch.Read != nil {
			m.Read = *patch.Read
		}
		if patch.Archived != nil {
			m.Archived = *patch.Archived
		}
		if patch.Deleted != nil {
			m.Deleted = *patch.Deleted
		}
		if patch.Silenced != nil {
			m.Silenced = *patch.Silenced
		}
	}
	return nil
}

func (f *fakeMessageRepo) MarkPairRead(ctx context.Context, viewerID, otherID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markReadErr != nil {
		return f.markReadErr
	}
	for _, m := range f.messages {
		if m.ReceiverID == viewerID && m.SenderID == otherID {
			m.Read = true
		}
	}
	return nil
}

func (f *fakeMessageRepo) Subscribe(ctx context.Context, userID string, onChange func()) (func(), error) {
	return func() {}, nil
}

func (f *fakeMessageRepo) setFetchErr(err error) {
	f.mu.Lock()
	f.fetchErr = err
	f.mu.Unlock()
}

func (f *fakeMessageRepo) setGates(begun, gate chan struct{}) {
	f.mu.Lock()
	f.fetchBegun = begun
	f.fetchGate = gate
	f.mu.Unlock()
}

func (f *fakeMessageRepo) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCount
}

func (f *fakeMessageRepo) messageByID(id string) *entity.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			clone := *m
			return &clone
		}
	}
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	count int
}

func (f *fakeNotifier) NotifyConversationsUpdated(userID string) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
}

func (f *fakeNotifier) notifications() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func newTestRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages: []*entity.Message{
			newMsg("m1", "bob", "alice", "hi alice", 1*time.Second),
			newMsg("m2", "bob", "alice", "still there?", 2*time.Second),
			newMsg("m3", "alice", "bob", "yes", 3*time.Second),
		},
	}
}

func waitForSnapshot(t *testing.T, c *SyncController, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(c.GetConversations(entity.FilterAll)) == want && !c.Loading()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestControllerPublishesSnapshot(t *testing.T) {
	repo := newTestRepo()
	notifier := &fakeNotifier{}
	c := NewSyncController("alice", repo, notifier, time.Hour)

	assert.Equal(t, StateIdle, c.CurrentState())

	c.Refresh()
	waitForSnapshot(t, c, 1)

	conversations := c.GetConversations(entity.FilterAll)
	require.Len(t, conversations, 1)
	assert.Equal(t, "bob", conversations[0].OtherUserID)
	assert.Equal(t, "yes", conversations[0].LastMessage)
	assert.Equal(t, 2, conversations[0].UnreadCount)
	assert.Equal(t, StateReady, c.CurrentState())
	assert.GreaterOrEqual(t, notifier.notifications(), 1)
}

func TestControllerCoalescesTriggers(t *testing.T) {
	repo := newTestRepo()
	c := NewSyncController("alice", repo, nil, time.Hour)

	begun := make(chan struct{}, 10)
	gate := make(chan struct{})
	repo.setGates(begun, gate)

	c.Refresh()
	<-begun // first pass is now in flight

	// Several triggers arrive while the pass runs; they must collapse
	// into exactly one follow-up pass.
	c.Refresh()
	c.Refresh()
	c.Refresh()

	gate <- struct{}{} // finish first pass
	<-begun            // the single coalesced pass starts
	gate <- struct{}{} // finish it

	require.Eventually(t, func() bool { return !c.Loading() }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, repo.fetches(), "three pending triggers must coalesce into one extra pass")
}

func TestControllerFetchFailureRetainsSnapshot(t *testing.T) {
	repo := newTestRepo()
	c := NewSyncController("alice", repo, nil, time.Hour)

	c.Refresh()
	waitForSnapshot(t, c, 1)

	repo.setFetchErr(fmt.Errorf("store unavailable"))
	c.Refresh()

	require.Eventually(t, func() bool { return c.Err() != nil && !c.Loading() }, 2*time.Second, 5*time.Millisecond)

	conversations := c.GetConversations(entity.FilterAll)
	require.Len(t, conversations, 1, "previous snapshot must survive a failed fetch")
	assert.Equal(t, StateReady, c.CurrentState())

	// A later successful pass clears the side-channel error.
	repo.setFetchErr(nil)
	c.Refresh()
	require.Eventually(t, func() bool { return c.Err() == nil }, 2*time.Second, 5*time.Millisecond)
}

func TestControllerArchiveIsOptimistic(t *testing.T) {
	repo := newTestRepo()
	c := NewSyncController("alice", repo, nil, time.Hour)

	c.Refresh()
	waitForSnapshot(t, c, 1)

	// Hold the reconcile pass open so only the optimistic local update
	// can be observed.
	begun := make(chan struct{}, 10)
	gate := make(chan struct{})
	repo.setGates(begun, gate)

	require.NoError(t, c.Archive(context.Background(), "bob", true))

	archived := c.GetConversations(entity.FilterArchived)
	require.Len(t, archived, 1, "archive must apply locally before the reconcile pass lands")
	assert.Empty(t, c.GetConversations(entity.FilterAll))

	<-begun
	gate <- struct{}{}

	require.Eventually(t, func() bool { return !c.Loading() }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, c.GetConversations(entity.FilterArchived), 1, "archive must survive reconciliation")
}

func TestControllerMutationRollsBackOnStoreFailure(t *testing.T) {
	repo := newTestRepo()
	c := NewSyncController("alice", repo, nil, time.Hour)

	c.Refresh()
	waitForSnapshot(t, c, 1)

	repo.mu.Lock()
	repo.bulkErr = fmt.Errorf("permission denied")
	repo.mu.Unlock()

	err := c.Archive(context.Background(), "bob", true)
	require.Error(t, err)

	conversations := c.GetConversations(entity.FilterAll)
	require.Len(t, conversations, 1, "failed mutation must restore the prior snapshot")
	assert.False(t, conversations[0].Archived)
	assert.Error(t, c.Err())
}

func TestControllerDeleteAndRetrieve(t *testing.T) {
	repo := newTestRepo()
	c := NewSyncController("alice", repo, nil, time.Hour)

	c.Refresh()
	waitForSnapshot(t, c, 1)

	require.NoError(t, c.Delete(context.Background(), "bob"))
	require.Eventually(t, func() bool {
		return len(c.GetConversations(entity.FilterDeleted)) == 1 &&
			len(c.GetConversations(entity.FilterAll)) == 0
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Retrieve(context.Background(), "bob"))
	require.Eventually(t, func() bool {
		return len(c.GetConversations(entity.FilterAll)) == 1 &&
			len(c.GetConversations(entity.FilterDeleted)) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestControllerMarkReadIsIdempotentAndOneSided(t *testing.T) {
	repo := newTestRepo()
	c := NewSyncController("alice", repo, nil, time.Hour)

	c.Refresh()
	waitForSnapshot(t, c, 1)
	assert.Equal(t, 2, c.UnreadTotal())

	require.NoError(t, c.MarkRead(context.Background(), "bob"))
	require.Eventually(t, func() bool { return c.UnreadTotal() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Second call is a no-op, not an error.
	require.NoError(t, c.MarkRead(context.Background(), "bob"))
	assert.Equal(t, 0, c.UnreadTotal())

	// The viewer's own outgoing message is never marked read for bob.
	outgoing := repo.messageByID("m3")
	require.NotNil(t, outgoing)
	assert.False(t, outgoing.Read)
}

func TestControllerRejectsInvalidCounterparty(t *testing.T) {
	repo := newTestRepo()
	c := NewSyncController("alice", repo, nil, time.Hour)

	assert.Error(t, c.Archive(context.Background(), "not a valid id!", true))
	assert.Error(t, c.MarkRead(context.Background(), ""))
}

func TestHubReturnsSameControllerPerUser(t *testing.T) {
	repo := newTestRepo()
	hub := NewHub(repo, nil, time.Hour, time.Hour)
	defer hub.Shutdown()

	first := hub.Controller("alice")
	second := hub.Controller("alice")
	assert.Same(t, first, second)

	assert.NotSame(t, first, hub.Controller("bob"))

	// Nudging a user with no live controller is a no-op.
	hub.Nudge("nobody")
}
