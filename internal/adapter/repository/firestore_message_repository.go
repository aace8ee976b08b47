package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tradechat/internal/domain/entity"
	"tradechat/internal/domain/repository"
	"tradechat/pkg/errors"
	"tradechat/pkg/logger"
)

// Firestore caps a WriteBatch at 500 operations.
const maxBatchSize = 450

type firestoreMessageRepository struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreMessageRepository(client *firestore.Client, collection string) repository.MessageRepository {
	return &firestoreMessageRepository{
		client:     client,
		collection: collection,
	}
}

func (r *firestoreMessageRepository) messages() *firestore.CollectionRef {
	return r.client.Collection(r.collection)
}

// FetchForUser runs one query per side (Firestore has no OR over two
// fields here) and merges the results, deduplicating by message id.
// Malformed documents are skipped instead of failing the fetch.
func (r *firestoreMessageRepository) FetchForUser(ctx context.Context, userID string) ([]*entity.Message, error) {
	queries := []firestore.Query{
		r.messages().Where("senderId", "==", userID),
		r.messages().Where("receiverId", "==", userID),
	}

	seen := make(map[string]bool)
	var messages []*entity.Message

	for _, query := range queries {
		iter := query.Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				logger.Error("Firestore error while fetching messages for user %s: %v", userID, err)
				return nil, errors.Internal("Failed to fetch messages", err)
			}

			if seen[doc.Ref.ID] {
				continue
			}
			seen[doc.Ref.ID] = true

			var message entity.Message
			if err := doc.DataTo(&message); err != nil {
				logger.Warn("Skipping malformed message document %s: %v", doc.Ref.ID, err)
				continue
			}
			if message.ID == "" {
				message.ID = doc.Ref.ID
			}
			messages = append(messages, &message)
		}
	}

	return messages, nil
}

func (r *firestoreMessageRepository) Insert(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	_, err := r.messages().Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to insert message", err)
	}

	return nil
}

// BulkUpdatePair applies patch to every message between the two users,
// both directions, in batched writes.
func (r *firestoreMessageRepository) BulkUpdatePair(ctx context.Context, userID, otherID string, patch repository.MessagePatch) error {
	updates := patchUpdates(patch)
	if len(updates) == 0 {
		return nil
	}

	queries := []firestore.Query{
		r.messages().Where("senderId", "==", userID).Where("receiverId", "==", otherID),
		r.messages().Where("senderId", "==", otherID).Where("receiverId", "==", userID),
	}

	for _, query := range queries {
		if err := r.batchUpdate(ctx, query, updates); err != nil {
			return err
		}
	}

	return nil
}

// MarkPairRead flips read on the viewer's unread incoming messages only;
// a repeat call matches nothing and is a no-op.
func (r *firestoreMessageRepository) MarkPairRead(ctx context.Context, viewerID, otherID string) error {
	query := r.messages().
		Where("receiverId", "==", viewerID).
		Where("senderId", "==", otherID).
		Where("read", "==", false)

	return r.batchUpdate(ctx, query, []firestore.Update{{Path: "read", Value: true}})
}

func (r *firestoreMessageRepository) batchUpdate(ctx context.Context, query firestore.Query, updates []firestore.Update) error {
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return errors.Internal("Failed to query messages for bulk update", err)
	}

	for start := 0; start < len(docs); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(docs) {
			end = len(docs)
		}

		batch := r.client.Batch()
		for _, doc := range docs[start:end] {
			batch.Update(doc.Ref, updates)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return errors.Internal("Failed to commit bulk message update", err)
		}
	}

	return nil
}

// Subscribe attaches snapshot listeners on both sides of the user's
// message log. Every snapshot, including the initial one, triggers
// onChange with no payload; callers re-fetch rather than trusting the
// push contents.
func (r *firestoreMessageRepository) Subscribe(ctx context.Context, userID string, onChange func()) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	queries := []firestore.Query{
		r.messages().Where("senderId", "==", userID),
		r.messages().Where("receiverId", "==", userID),
	}

	for _, query := range queries {
		snapshots := query.Snapshots(subCtx)
		go func() {
			defer snapshots.Stop()
			for {
				_, err := snapshots.Next()
				if err != nil {
					if status.Code(err) == codes.Canceled {
						return
					}
					// Disconnects are tolerated silently; the fallback
					// poll guarantees eventual consistency.
					logger.Warn("Change feed for user %s stopped: %v", userID, err)
					return
				}
				onChange()
			}
		}()
	}

	return cancel, nil
}

func patchUpdates(patch repository.MessagePatch) []firestore.Update {
	var updates []firestore.Update
	if patch.Read != nil {
		updates = append(updates, firestore.Update{Path: "read", Value: *patch.Read})
	}
	if patch.Archived != nil {
		updates = append(updates, firestore.Update{Path: "archived", Value: *patch.Archived})
	}
	if patch.Deleted != nil {
		updates = append(updates, firestore.Update{Path: "deleted", Value: *patch.Deleted})
	}
	if patch.Silenced != nil {
		updates = append(updates, firestore.Update{Path: "silenced", Value: *patch.Silenced})
	}
	return updates
}
