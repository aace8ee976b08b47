package entity

import (
	"fmt"
	"time"
)

// Filter selects which derived conversations are visible in a view.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterUnread   Filter = "unread"
	FilterOffers   Filter = "offers"
	FilterArchived Filter = "archived"
	FilterDeleted  Filter = "deleted"
)

// ParseFilter maps a query-string value onto a Filter. An empty value
// defaults to "all".
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterUnread, FilterOffers, FilterArchived, FilterDeleted:
		return Filter(s), nil
	default:
		return "", fmt.Errorf("unknown filter %q", s)
	}
}

// Conversation is the derived per-counterparty summary. It is never
// persisted: every aggregation pass rebuilds the full set from the
// message log.
type Conversation struct {
	ID              string    `json:"id"`
	OtherUserID     string    `json:"other_user_id"`
	OtherUserName   string    `json:"other_user_name"`
	OtherUserAvatar string    `json:"other_user_avatar,omitempty"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	RecentItemTitle string    `json:"recent_item_title,omitempty"`
	RecentItemImage string    `json:"recent_item_image,omitempty"`
	HasOffer        bool      `json:"has_offer"`
	UnreadCount     int       `json:"unread_count"`
	Archived        bool      `json:"archived"`
	Deleted         bool      `json:"deleted"`
	Silenced        bool      `json:"silenced"`
}

// Clone returns a copy safe to mutate without touching the published
// snapshot.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	return &cp
}
