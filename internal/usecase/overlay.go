package usecase

import (
	"tradechat/internal/domain/entity"
)

// Visible reports whether a conversation belongs in the given view.
// Deleted conversations appear only in the deleted view; archived ones
// only in the archived view. Silencing never affects visibility, it only
// suppresses notification delivery.
func Visible(conv *entity.Conversation, filter entity.Filter) bool {
	switch filter {
	case entity.FilterDeleted:
		return conv.Deleted
	case entity.FilterArchived:
		return conv.Archived && !conv.Deleted
	case entity.FilterUnread:
		return !conv.Deleted && !conv.Archived && conv.UnreadCount > 0
	case entity.FilterOffers:
		return !conv.Deleted && !conv.Archived && conv.HasOffer
	default:
		return !conv.Deleted && !conv.Archived
	}
}

// ApplyFilter returns the conversations visible under filter, preserving
// the aggregator's ordering.
func ApplyFilter(conversations []*entity.Conversation, filter entity.Filter) []*entity.Conversation {
	filtered := make([]*entity.Conversation, 0, len(conversations))
	for _, conv := range conversations {
		if Visible(conv, filter) {
			filtered = append(filtered, conv)
		}
	}
	return filtered
}

// UnreadTotal computes the global badge count. Archived conversations
// still count toward the badge; deleted ones never do.
func UnreadTotal(conversations []*entity.Conversation) int {
	total := 0
	for _, conv := range conversations {
		if conv.Deleted {
			continue
		}
		total += conv.UnreadCount
	}
	return total
}
