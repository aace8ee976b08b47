package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tradechat/internal/domain/entity"
	"tradechat/internal/usecase"
	"tradechat/pkg/errors"
	"tradechat/pkg/response"
	"tradechat/pkg/utils"
)

type ConversationHandler struct {
	hub *usecase.Hub
}

func NewConversationHandler(hub *usecase.Hub) *ConversationHandler {
	return &ConversationHandler{
		hub: hub,
	}
}

type archiveRequest struct {
	Archived *bool `json:"archived" validate:"required"`
}

type conversationListResponse struct {
	Items     []*entity.Conversation `json:"items"`
	Total     int                    `json:"total"`
	Page      int                    `json:"page"`
	PageSize  int                    `json:"pageSize"`
	Loading   bool                   `json:"loading"`
	SyncError string                 `json:"sync_error,omitempty"`
	UnreadAll int                    `json:"unread_total"`
}

// ListConversations returns the viewer's filtered, sorted conversation
// snapshot. The read never blocks on an in-flight sync pass: loading and
// any sync error are reported alongside the last published data.
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	userID := c.Get("uid").(string)

	filter, err := entity.ParseFilter(c.QueryParam("filter"))
	if err != nil {
		return response.Error(c, errors.BadRequest("Invalid filter", err))
	}

	controller := h.hub.Controller(userID)
	conversations := controller.GetConversations(filter)

	params := utils.GetPaginationParams(c)
	total := len(conversations)
	start := params.Offset
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}

	resp := conversationListResponse{
		Items:     conversations[start:end],
		Total:     total,
		Page:      params.Page,
		PageSize:  params.PageSize,
		Loading:   controller.Loading(),
		UnreadAll: controller.UnreadTotal(),
	}
	if syncErr := controller.Err(); syncErr != nil {
		resp.SyncError = syncErr.Error()
	}

	return response.Success(c, resp)
}

// UnreadCount returns the global badge total. Archived conversations
// count toward it; deleted ones do not.
func (h *ConversationHandler) UnreadCount(c echo.Context) error {
	userID := c.Get("uid").(string)

	controller := h.hub.Controller(userID)

	return response.Success(c, map[string]int{
		"unread_total": controller.UnreadTotal(),
	})
}

// Archive sets or clears the archived flag for a conversation.
func (h *ConversationHandler) Archive(c echo.Context) error {
	userID := c.Get("uid").(string)
	otherUserID := c.Param("userId")

	var req archiveRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.hub.Controller(userID).Archive(c.Request().Context(), otherUserID, *req.Archived); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// Silence suppresses notifications for a conversation without hiding it.
func (h *ConversationHandler) Silence(c echo.Context) error {
	userID := c.Get("uid").(string)
	otherUserID := c.Param("userId")

	if err := h.hub.Controller(userID).Silence(c.Request().Context(), otherUserID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// Delete soft-deletes a conversation; it stays reachable via the deleted
// filter until retrieved.
func (h *ConversationHandler) Delete(c echo.Context) error {
	userID := c.Get("uid").(string)
	otherUserID := c.Param("userId")

	if err := h.hub.Controller(userID).Delete(c.Request().Context(), otherUserID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// Retrieve restores a deleted or archived conversation to the inbox.
func (h *ConversationHandler) Retrieve(c echo.Context) error {
	userID := c.Get("uid").(string)
	otherUserID := c.Param("userId")

	if err := h.hub.Controller(userID).Retrieve(c.Request().Context(), otherUserID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// MarkRead marks every message the viewer received in this conversation
// as read. Calling it twice has no additional effect.
func (h *ConversationHandler) MarkRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	otherUserID := c.Param("userId")

	if err := h.hub.Controller(userID).MarkRead(c.Request().Context(), otherUserID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}
