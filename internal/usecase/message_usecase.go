package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tradechat/internal/domain/entity"
	"tradechat/internal/domain/repository"
	"tradechat/internal/infrastructure/ratelimit"
	"tradechat/pkg/errors"
	"tradechat/pkg/logger"
)

type MessageUseCase struct {
	repo        repository.MessageRepository
	hub         *Hub
	rateLimiter *ratelimit.RateLimiter
}

func NewMessageUseCase(repo repository.MessageRepository, hub *Hub) *MessageUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &MessageUseCase{
		repo:        repo,
		hub:         hub,
		rateLimiter: rateLimiter,
	}
}

type SendMessageInput struct {
	ReceiverID  string
	Content     string
	ItemID      string
	OfferItemID string
	Sender      entity.UserSnapshot
	Receiver    entity.UserSnapshot
	Item        *entity.ItemSnapshot
}

// SendMessage appends a message to the log with the profile and item
// snapshots embedded, then nudges both participants' controllers so the
// new message shows up without waiting for the change feed.
func (uc *MessageUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*entity.Message, error) {
	allowed, waitTime := uc.rateLimiter.Allow(senderID, "send_message")
	if !allowed {
		logger.Warn("SendMessage rate limited: user %s must wait %v", senderID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message")
	}

	if senderID == input.ReceiverID {
		return nil, errors.BadRequest("You cannot message yourself", nil)
	}

	message := &entity.Message{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		ReceiverID:  input.ReceiverID,
		Content:     input.Content,
		ItemID:      input.ItemID,
		OfferItemID: input.OfferItemID,
		Sender:      input.Sender,
		Receiver:    input.Receiver,
		Item:        input.Item,
		CreatedAt:   time.Now(),
	}

	// An item-scoped message must carry its listing snapshot, otherwise
	// aggregation could never surface the item context.
	if message.ItemID != "" && message.Item == nil {
		return nil, errors.BadRequest("Item snapshot is required for item-scoped messages", nil)
	}

	if err := message.Validate(); err != nil {
		return nil, errors.BadRequest("Invalid message", err)
	}

	if err := uc.repo.Insert(ctx, message); err != nil {
		logger.Error("SendMessage: failed to insert message from %s to %s: %v", senderID, input.ReceiverID, err)
		return nil, err
	}

	uc.hub.Nudge(senderID)
	uc.hub.Nudge(input.ReceiverID)

	return message, nil
}
