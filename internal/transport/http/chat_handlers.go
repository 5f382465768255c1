package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tripconnect/tripchat-server/internal/chat"
)

// ChatHandlers serves the REST views of chat state for clients that are
// not holding a socket open.
type ChatHandlers struct {
	svc *chat.Service
	log *zerolog.Logger
}

// Conversations returns the authenticated user's conversation list.
func (h *ChatHandlers) Conversations(c *gin.Context) {
	userID := c.GetString(ContextKeyUserID)

	summaries, err := h.svc.OnGetConversations(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("list conversations failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list conversations"})
		return
	}

	c.JSON(http.StatusOK, conversationListData(summaries))
}
