package repository

import (
	"context"

	"tradechat/internal/domain/entity"
)

// MessagePatch is a partial update applied in bulk to every message of a
// participant pair. Nil fields are left untouched.
type MessagePatch struct {
	Read     *bool
	Archived *bool
	Deleted  *bool
	Silenced *bool
}

// Empty reports whether the patch would change nothing.
func (p MessagePatch) Empty() bool {
	return p.Read == nil && p.Archived == nil && p.Deleted == nil && p.Silenced == nil
}

// MessageRepository is the store contract the engine depends on. The
// change feed is best-effort: Subscribe carries no payload guarantee
// beyond "something changed for this user", so callers always re-fetch.
type MessageRepository interface {
	// FetchForUser returns every message where the user is sender or
	// receiver, in no particular order.
	FetchForUser(ctx context.Context, userID string) ([]*entity.Message, error)

	// Insert appends a new message to the log.
	Insert(ctx context.Context, message *entity.Message) error

	// BulkUpdatePair applies patch to all messages between userID and
	// otherID, both directions.
	BulkUpdatePair(ctx context.Context, userID, otherID string, patch MessagePatch) error

	// MarkPairRead sets read=true on every unread message the viewer
	// received from otherID. Messages sent by the viewer are untouched.
	MarkPairRead(ctx context.Context, viewerID, otherID string) error

	// Subscribe invokes onChange whenever a message involving userID may
	// have changed. The returned function cancels the subscription.
	Subscribe(ctx context.Context, userID string, onChange func()) (func(), error)
}
