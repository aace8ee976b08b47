package entity

import (
	"fmt"
	"regexp"
	"time"
)

// userIDPattern matches canonical participant identifiers. Messages whose
// participants fail this check are rejected at the store boundary and
// skipped during aggregation.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// UserSnapshot is the minimal profile embedded on every message so that
// conversation aggregation never needs a per-user lookup.
type UserSnapshot struct {
	Username  string `json:"username" firestore:"username"`
	AvatarURL string `json:"avatar_url,omitempty" firestore:"avatarUrl,omitempty"`
}

// ItemSnapshot is the embedded listing context for item-scoped messages.
type ItemSnapshot struct {
	Title    string `json:"title" firestore:"title"`
	ImageURL string `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`
}

// Message is a single entry in the append-only message log. Content and
// participants are immutable once written; only the read and overlay
// flags change afterwards, always via bulk updates over a pair.
type Message struct {
	ID          string        `json:"id" firestore:"id"`
	SenderID    string        `json:"sender_id" firestore:"senderId"`
	ReceiverID  string        `json:"receiver_id" firestore:"receiverId"`
	Content     string        `json:"content" firestore:"content"`
	ItemID      string        `json:"item_id,omitempty" firestore:"itemId,omitempty"`
	OfferItemID string        `json:"offer_item_id,omitempty" firestore:"offerItemId,omitempty"`
	Read        bool          `json:"read" firestore:"read"`
	Archived    bool          `json:"archived" firestore:"archived"`
	Deleted     bool          `json:"deleted" firestore:"deleted"`
	Silenced    bool          `json:"silenced" firestore:"silenced"`
	Sender      UserSnapshot  `json:"sender" firestore:"sender"`
	Receiver    UserSnapshot  `json:"receiver" firestore:"receiver"`
	Item        *ItemSnapshot `json:"item,omitempty" firestore:"item,omitempty"`
	CreatedAt   time.Time     `json:"created_at" firestore:"createdAt"`
}

// ValidUserID reports whether id is a canonical participant identifier.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// Validate checks the fields required before a message may enter the
// store. Aggregation applies the same participant checks on the way out.
func (m *Message) Validate() error {
	if !ValidUserID(m.SenderID) {
		return fmt.Errorf("invalid sender id %q", m.SenderID)
	}
	if !ValidUserID(m.ReceiverID) {
		return fmt.Errorf("invalid receiver id %q", m.ReceiverID)
	}
	if m.SenderID == m.ReceiverID {
		return fmt.Errorf("sender and receiver must differ")
	}
	if m.Content == "" {
		return fmt.Errorf("content is required")
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("createdAt is required")
	}
	return nil
}

// Counterparty returns the participant id on the other side of the
// message relative to viewerID, or an error when the viewer is not a
// participant at all.
func (m *Message) Counterparty(viewerID string) (string, error) {
	switch viewerID {
	case m.SenderID:
		return m.ReceiverID, nil
	case m.ReceiverID:
		return m.SenderID, nil
	default:
		return "", fmt.Errorf("user %s is not a participant of message %s", viewerID, m.ID)
	}
}

// CounterpartySnapshot returns the embedded profile of the side that is
// not the viewer.
func (m *Message) CounterpartySnapshot(viewerID string) UserSnapshot {
	if viewerID == m.SenderID {
		return m.Receiver
	}
	return m.Sender
}
