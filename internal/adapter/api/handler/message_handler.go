package handler

import (
	"github.com/labstack/echo/v4"

	"tradechat/internal/domain/entity"
	"tradechat/internal/usecase"
	"tradechat/pkg/response"
)

type MessageHandler struct {
	messageUseCase *usecase.MessageUseCase
}

func NewMessageHandler(messageUseCase *usecase.MessageUseCase) *MessageHandler {
	return &MessageHandler{
		messageUseCase: messageUseCase,
	}
}

type itemSnapshotRequest struct {
	Title    string `json:"title" validate:"required"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

type sendMessageRequest struct {
	ReceiverID     string               `json:"receiver_id" validate:"required"`
	Content        string               `json:"content" validate:"required,max=4000"`
	ItemID         string               `json:"item_id"`
	OfferItemID    string               `json:"offer_item_id"`
	SenderName     string               `json:"sender_name" validate:"required"`
	SenderAvatar   string               `json:"sender_avatar" validate:"omitempty,url"`
	ReceiverName   string               `json:"receiver_name" validate:"required"`
	ReceiverAvatar string               `json:"receiver_avatar" validate:"omitempty,url"`
	Item           *itemSnapshotRequest `json:"item"`
}

// SendMessage appends a message to the log. Profile and item snapshots
// travel with the message so conversation aggregation never needs a
// lookup per record.
func (h *MessageHandler) SendMessage(c echo.Context) error {
	userID := c.Get("uid").(string)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	input := usecase.SendMessageInput{
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		ItemID:      req.ItemID,
		OfferItemID: req.OfferItemID,
		Sender: entity.UserSnapshot{
			Username:  req.SenderName,
			AvatarURL: req.SenderAvatar,
		},
		Receiver: entity.UserSnapshot{
			Username:  req.ReceiverName,
			AvatarURL: req.ReceiverAvatar,
		},
	}
	if req.Item != nil {
		input.Item = &entity.ItemSnapshot{
			Title:    req.Item.Title,
			ImageURL: req.Item.ImageURL,
		}
	}

	message, err := h.messageUseCase.SendMessage(c.Request().Context(), userID, input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}
