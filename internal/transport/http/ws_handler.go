package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tripconnect/tripchat-server/internal/auth"
	"github.com/tripconnect/tripchat-server/internal/chat"
	"github.com/tripconnect/tripchat-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to the chat
// service: the read loop turns inbound envelopes into service calls, the
// write loop drains the client's event channel into the socket.
type WSHandler struct {
	svc  *chat.Service
	auth *auth.Service
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(svc *chat.Service, authService *auth.Service, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{svc: svc, auth: authService, log: logger}
}

// Handle authenticates the connection and runs the session loops.
func (h *WSHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		c.JSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	client := chat.NewClient(claims.UserID)
	result, notifs, err := h.svc.OnConnect(ctx, claims.UserID, client)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", claims.UserID).Msg("connect failed")
		conn.Close(websocket.StatusInternalError, "connect failed")
		return
	}
	h.svc.Dispatch(notifs)
	defer func() {
		h.svc.Dispatch(h.svc.OnDisconnect(claims.UserID, client))
	}()

	// Seed the fresh session with its own state before the loops start.
	for _, out := range connectOutbound(result) {
		if err := wsjson.Write(ctx, conn, out); err != nil {
			h.log.Warn().Err(err).Str("user_id", claims.UserID).Msg("write connect state")
			return
		}
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *chat.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if err := h.handleInbound(ctx, client, inbound); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *chat.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("user_id", client.UserID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleInbound maps one envelope to a service call. Domain errors go back
// to the originating client only; malformed JSON tears the session down.
func (h *WSHandler) handleInbound(ctx context.Context, client *chat.Client, inbound proto.Inbound) error {
	switch inbound.Type {
	case proto.InboundTypeJoinChat:
		var data proto.JoinChatData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return err
		}
		result, err := h.svc.OnJoin(ctx, client.UserID, data.ReceiverID)
		if err != nil {
			return h.sendError(client, err)
		}
		client.Events <- historyEvent(result)

	case proto.InboundTypeGetConversations:
		summaries, err := h.svc.OnGetConversations(ctx, client.UserID)
		if err != nil {
			return h.sendError(client, err)
		}
		client.Events <- &chat.Event{Kind: chat.EventConversationList, Summaries: summaries}

	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return err
		}
		_, notifs, err := h.svc.OnSend(ctx, client.UserID, data.ReceiverID, data.Message, data.JourneyID, data.TravelingDate)
		if err != nil {
			return h.sendError(client, err)
		}
		h.svc.Dispatch(notifs)

	case proto.InboundTypeTyping:
		var data proto.TypingData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return err
		}
		notifs, err := h.svc.OnTyping(client.UserID, data.ReceiverID, data.IsTyping)
		if err != nil {
			return h.sendError(client, err)
		}
		h.svc.Dispatch(notifs)

	case proto.InboundTypeMarkRead:
		var data proto.MarkReadData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return err
		}
		notifs, err := h.svc.OnMarkRead(ctx, client.UserID, data.ReceiverID, data.MessageIDs)
		if err != nil {
			return h.sendError(client, err)
		}
		h.svc.Dispatch(notifs)

	default:
		client.Events <- &chat.Event{
			Kind:  chat.EventError,
			Error: &chat.Error{Code: chat.ErrCodeBadRequest, Message: "unknown message type"},
		}
	}

	return nil
}

func (h *WSHandler) sendError(client *chat.Client, err error) error {
	client.Events <- &chat.Event{Kind: chat.EventError, Error: chat.AsError(err)}
	return nil
}
