package usecase

import (
	"sort"

	"tradechat/internal/domain/entity"
	"tradechat/pkg/logger"
)

// conversationAccum tracks the two independent "most recent" trackers
// for one pair while the fold runs. The message that carries the latest
// createdAt supplies the last-message fields and the overlay flags; the
// latest item-bearing message supplies the item context. They are often
// different messages.
type conversationAccum struct {
	lastMsg     *entity.Message
	lastItemMsg *entity.Message
	hasOffer    bool
}

// Aggregate folds the viewer's full message list into per-counterparty
// conversation summaries. The input may arrive in any order; the result
// is sorted by last-message time descending with the conversation key as
// tie-break, so re-running over the same list yields identical output.
//
// Overlay flags follow the most-recent-message-wins policy: the summary
// reflects the flags of whichever message supplied lastMessageTime.
// Since bulk updates write every message of a pair, mixed flags only
// occur after a partial update failure and converge on the next pass.
func Aggregate(messages []*entity.Message, viewerID string) []*entity.Conversation {
	accums := make(map[string]*conversationAccum)
	unread := make(map[string]int)

	for _, msg := range messages {
		other, err := msg.Counterparty(viewerID)
		if err != nil {
			logger.Warn("aggregate: skipping message %s: %v", msg.ID, err)
			continue
		}

		key, err := ConversationKey(viewerID, other)
		if err != nil {
			logger.Warn("aggregate: skipping message %s: %v", msg.ID, err)
			continue
		}

		acc, ok := accums[key]
		if !ok {
			acc = &conversationAccum{}
			accums[key] = acc
		}

		if acc.lastMsg == nil || msg.CreatedAt.After(acc.lastMsg.CreatedAt) {
			acc.lastMsg = msg
		}
		if msg.ItemID != "" {
			if acc.lastItemMsg == nil || msg.CreatedAt.After(acc.lastItemMsg.CreatedAt) {
				acc.lastItemMsg = msg
			}
		}
		if msg.OfferItemID != "" {
			acc.hasOffer = true
		}

		// Unread counting is kept in a parallel map and merged at the
		// end so summary construction order cannot affect the count.
		if msg.ReceiverID == viewerID && !msg.Read {
			unread[key]++
		}
	}

	conversations := make([]*entity.Conversation, 0, len(accums))
	for key, acc := range accums {
		last := acc.lastMsg
		otherID, _ := last.Counterparty(viewerID)
		profile := last.CounterpartySnapshot(viewerID)

		conv := &entity.Conversation{
			ID:              key,
			OtherUserID:     otherID,
			OtherUserName:   profile.Username,
			OtherUserAvatar: profile.AvatarURL,
			LastMessage:     last.Content,
			LastMessageTime: last.CreatedAt,
			HasOffer:        acc.hasOffer,
			UnreadCount:     unread[key],
			Archived:        last.Archived,
			Deleted:         last.Deleted,
			Silenced:        last.Silenced,
		}
		if acc.lastItemMsg != nil && acc.lastItemMsg.Item != nil {
			conv.RecentItemTitle = acc.lastItemMsg.Item.Title
			conv.RecentItemImage = acc.lastItemMsg.Item.ImageURL
		}
		conversations = append(conversations, conv)
	}

	sort.Slice(conversations, func(i, j int) bool {
		if !conversations[i].LastMessageTime.Equal(conversations[j].LastMessageTime) {
			return conversations[i].LastMessageTime.After(conversations[j].LastMessageTime)
		}
		return conversations[i].ID < conversations[j].ID
	})

	return conversations
}
