package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradechat/internal/domain/entity"
)

var aggBase = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type msgOption func(*entity.Message)

func withItem(itemID, title string) msgOption {
	return func(m *entity.Message) {
		m.ItemID = itemID
		m.Item = &entity.ItemSnapshot{Title: title, ImageURL: "https://img.example/" + itemID + ".jpg"}
	}
}

func withOffer(offerItemID string) msgOption {
	return func(m *entity.Message) { m.OfferItemID = offerItemID }
}

func read() msgOption {
	return func(m *entity.Message) { m.Read = true }
}

func withFlags(archived, deleted, silenced bool) msgOption {
	return func(m *entity.Message) {
		m.Archived = archived
		m.Deleted = deleted
		m.Silenced = silenced
	}
}

func newMsg(id, from, to, content string, at time.Duration, opts ...msgOption) *entity.Message {
	m := &entity.Message{
		ID:         id,
		SenderID:   from,
		ReceiverID: to,
		Content:    content,
		Sender:     entity.UserSnapshot{Username: from + "-name", AvatarURL: "https://img.example/" + from + ".png"},
		Receiver:   entity.UserSnapshot{Username: to + "-name", AvatarURL: "https://img.example/" + to + ".png"},
		CreatedAt:  aggBase.Add(at),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func TestAggregateSingleConversation(t *testing.T) {
	messages := []*entity.Message{
		newMsg("m1", "alice", "bob", "hi", 1*time.Second),
		newMsg("m2", "bob", "alice", "hey", 2*time.Second),
	}

	conversations := Aggregate(messages, "alice")
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, "alice_bob", conv.ID)
	assert.Equal(t, "bob", conv.OtherUserID)
	assert.Equal(t, "bob-name", conv.OtherUserName)
	assert.Equal(t, "hey", conv.LastMessage)
	assert.Equal(t, aggBase.Add(2*time.Second), conv.LastMessageTime)
	assert.Equal(t, 1, conv.UnreadCount, "alice received one unread message")
}

func TestAggregateIdempotent(t *testing.T) {
	messages := []*entity.Message{
		newMsg("m1", "alice", "bob", "hi", 1*time.Second),
		newMsg("m2", "bob", "alice", "hey", 2*time.Second),
		newMsg("m3", "carol", "alice", "trade?", 3*time.Second, withOffer("item9")),
		newMsg("m4", "alice", "dave", "sold", 90*time.Second, withItem("item1", "Road Bike")),
	}

	first := Aggregate(messages, "alice")
	second := Aggregate(messages, "alice")

	assert.Equal(t, first, second, "re-running aggregation over the same input must be byte-identical")
}

func TestAggregateLastMessageIgnoresInsertionOrder(t *testing.T) {
	newer := newMsg("m2", "bob", "alice", "newer", 10*time.Second)
	older := newMsg("m1", "alice", "bob", "older", 5*time.Second)

	forward := Aggregate([]*entity.Message{older, newer}, "alice")
	backward := Aggregate([]*entity.Message{newer, older}, "alice")

	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assert.Equal(t, "newer", forward[0].LastMessage)
	assert.Equal(t, "newer", backward[0].LastMessage)
}

func TestAggregateItemRecencyTracksCreatedAt(t *testing.T) {
	messages := []*entity.Message{
		newMsg("m1", "alice", "bob", "hi", 1*time.Second),
		newMsg("m2", "bob", "alice", "hey", 2*time.Second),
		newMsg("m3", "alice", "bob", "about this one", 3*time.Second, withItem("item1", "Camera")),
		// Inserted out of order: older than m3 despite arriving last.
		newMsg("m4", "bob", "alice", "or this one", 2500*time.Millisecond, withItem("item2", "Tripod")),
	}

	conversations := Aggregate(messages, "alice")
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, "about this one", conv.LastMessage)
	assert.Equal(t, "Camera", conv.RecentItemTitle, "item recency follows createdAt, not insertion order")
}

func TestAggregateItemAndLastMessageTrackersAreIndependent(t *testing.T) {
	messages := []*entity.Message{
		newMsg("m1", "alice", "bob", "look at this", 1*time.Second, withItem("item1", "Camera")),
		newMsg("m2", "bob", "alice", "nice", 2*time.Second),
	}

	conversations := Aggregate(messages, "alice")
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, "nice", conv.LastMessage, "last message has no item")
	assert.Equal(t, "Camera", conv.RecentItemTitle, "item context comes from the older item-bearing message")
}

func TestAggregateOfferStickiness(t *testing.T) {
	messages := []*entity.Message{
		newMsg("m1", "bob", "alice", "swap for my tent?", 1*time.Second, withOffer("item7")),
		newMsg("m2", "alice", "bob", "maybe", 2*time.Second),
		newMsg("m3", "bob", "alice", "deal?", 3*time.Second),
	}

	conversations := Aggregate(messages, "alice")
	require.Len(t, conversations, 1)
	assert.True(t, conversations[0].HasOffer, "hasOffer stays true after the offer message is superseded")
}

func TestAggregateUnreadCountsOnlyViewerAsReceiver(t *testing.T) {
	messages := []*entity.Message{
		newMsg("m1", "bob", "alice", "one", 1*time.Second),
		newMsg("m2", "bob", "alice", "two", 2*time.Second),
		newMsg("m3", "bob", "alice", "three", 3*time.Second, read()),
		// Sent by the viewer; unread from bob's perspective, not alice's.
		newMsg("m4", "alice", "bob", "four", 4*time.Second),
	}

	conversations := Aggregate(messages, "alice")
	require.Len(t, conversations, 1)
	assert.Equal(t, 2, conversations[0].UnreadCount)
}

func TestAggregateUnreadIsolationBetweenConversations(t *testing.T) {
	unreadFromBob := newMsg("m1", "bob", "alice", "hi", 1*time.Second)
	unreadFromCarol := newMsg("m2", "carol", "alice", "hello", 2*time.Second)

	before := Aggregate([]*entity.Message{unreadFromBob, unreadFromCarol}, "alice")
	require.Len(t, before, 2)

	// Reading bob's conversation must not touch carol's count.
	readFromBob := newMsg("m1", "bob", "alice", "hi", 1*time.Second, read())
	after := Aggregate([]*entity.Message{readFromBob, unreadFromCarol}, "alice")
	require.Len(t, after, 2)

	for _, conv := range after {
		switch conv.OtherUserID {
		case "bob":
			assert.Equal(t, 0, conv.UnreadCount)
		case "carol":
			assert.Equal(t, 1, conv.UnreadCount)
		}
	}
}

func TestAggregateSkipsMalformedMessages(t *testing.T) {
	badSender := newMsg("m1", "not a valid id!", "alice", "??", 1*time.Second)
	notParticipant := newMsg("m2", "bob", "carol", "private", 2*time.Second)
	valid := newMsg("m3", "bob", "alice", "hello", 3*time.Second)

	conversations := Aggregate([]*entity.Message{badSender, notParticipant, valid}, "alice")

	require.Len(t, conversations, 1, "malformed records are dropped, not fatal")
	assert.Equal(t, "bob", conversations[0].OtherUserID)
}

func TestAggregateOverlayFlagsFollowMostRecentMessage(t *testing.T) {
	messages := []*entity.Message{
		newMsg("m1", "bob", "alice", "old", 1*time.Second, withFlags(true, false, true)),
		newMsg("m2", "bob", "alice", "new", 2*time.Second, withFlags(false, false, false)),
	}

	conversations := Aggregate(messages, "alice")
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.False(t, conv.Archived, "flags come from the most recent message")
	assert.False(t, conv.Silenced)
}

func TestAggregateSortsByLastMessageTimeDescending(t *testing.T) {
	messages := []*entity.Message{
		newMsg("m1", "bob", "alice", "oldest", 1*time.Second),
		newMsg("m2", "carol", "alice", "newest", 30*time.Second),
		newMsg("m3", "dave", "alice", "middle", 10*time.Second),
	}

	conversations := Aggregate(messages, "alice")
	require.Len(t, conversations, 3)
	assert.Equal(t, "carol", conversations[0].OtherUserID)
	assert.Equal(t, "dave", conversations[1].OtherUserID)
	assert.Equal(t, "bob", conversations[2].OtherUserID)
}

func TestAggregateEmptyInput(t *testing.T) {
	conversations := Aggregate(nil, "alice")
	assert.Empty(t, conversations)
}
