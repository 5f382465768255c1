package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/tripconnect/tripchat-server/internal/store"
)

const (
	// MaxBodyLen is the maximum message length in code points.
	MaxBodyLen = 1000
	// DefaultHistoryLimit caps the recent window returned on join.
	DefaultHistoryLimit = 100
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	HistoryLimit int
	TypingDecay  time.Duration
	TypingStale  time.Duration
}

// Service orchestrates the message store and the in-memory registries.
// Every operation mutates state and returns the notifications the
// transport layer must fan out; the service itself performs no socket I/O,
// only pushes onto client event channels via Dispatch.
type Service struct {
	store        store.MessageStore
	presence     *PresenceRegistry
	typing       *TypingRegistry
	historyLimit int
	log          *zerolog.Logger
}

// NewService constructs a service with its own presence and typing
// registries, so separate instances (and tests) never share state.
func NewService(st store.MessageStore, opts Options, logger *zerolog.Logger) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}

	s := &Service{
		store:        st,
		presence:     NewPresenceRegistry(),
		historyLimit: opts.HistoryLimit,
		log:          logger,
	}
	s.typing = NewTypingRegistry(opts.TypingDecay, opts.TypingStale, s.typingExpired)
	return s
}

// Presence exposes the registry for transport-level checks.
func (s *Service) Presence() *PresenceRegistry {
	return s.presence
}

// Dispatch pushes each notification's event to its audience. Offline
// targets are skipped; the messages themselves wait in the store until the
// user reconnects.
func (s *Service) Dispatch(notifs []Notification) {
	for _, n := range notifs {
		if n.Broadcast {
			s.presence.Broadcast(n.Event, n.ExcludeUserID)
			continue
		}
		for _, userID := range n.UserIDs {
			s.presence.Send(userID, n.Event)
		}
	}
}

// ConnectResult is returned to the freshly connected user.
type ConnectResult struct {
	Undelivered   []*store.Message
	TotalUnread   int
	Conversations []*store.ConversationSummary
}

// OnConnect registers the user's connection, replays undelivered messages
// (marking them delivered and notifying their senders), and reports the
// unread totals and conversation list. Broadcasts the presence change.
func (s *Service) OnConnect(ctx context.Context, userID string, client *Client) (*ConnectResult, []Notification, error) {
	if old := s.presence.Connect(userID, client); old != nil {
		s.log.Debug().Str("user_id", userID).Msg("superseded previous connection")
	}

	undelivered, err := s.store.ListUndelivered(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list undelivered: %w", err)
	}

	var notifs []Notification
	if len(undelivered) > 0 {
		ids := make([]int64, 0, len(undelivered))
		for _, msg := range undelivered {
			ids = append(ids, msg.ID)
		}
		if err := s.store.MarkDelivered(ctx, ids); err != nil {
			return nil, nil, fmt.Errorf("mark delivered: %w", err)
		}

		now := time.Now()
		perSender := make(map[string][]int64)
		for _, msg := range undelivered {
			msg.Delivered = true
			perSender[msg.SenderID] = append(perSender[msg.SenderID], msg.ID)
		}
		for senderID, senderIDs := range perSender {
			notifs = append(notifs, notifyUsers(&Event{
				Kind:       EventMessageDelivered,
				UserID:     userID,
				MessageIDs: senderIDs,
				Timestamp:  now,
			}, senderID))
		}
	}

	totalUnread, err := s.store.UnreadCount(ctx, userID, "")
	if err != nil {
		return nil, nil, fmt.Errorf("unread count: %w", err)
	}

	conversations, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list conversations: %w", err)
	}

	notifs = append(notifs, notifyAll(&Event{
		Kind:   EventPresenceUpdate,
		UserID: userID,
		Online: true,
	}, userID))

	return &ConnectResult{
		Undelivered:   undelivered,
		TotalUnread:   totalUnread,
		Conversations: conversations,
	}, notifs, nil
}

// JoinResult is returned to the user who opened a conversation.
type JoinResult struct {
	ConversationID string
	History        []*store.Message
	Metadata       *store.ConversationMetadata
	Typing         []TypingState
}

// OnJoin returns the conversation's recent history, the caller's unread
// metadata, and who is currently typing.
func (s *Service) OnJoin(ctx context.Context, userID, peerID string) (*JoinResult, error) {
	conversationID, err := DeriveConversationID(userID, peerID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.History(ctx, conversationID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	metadata, err := s.store.Metadata(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	return &JoinResult{
		ConversationID: conversationID,
		History:        history,
		Metadata:       metadata,
		Typing:         s.typing.Snapshot(conversationID, userID),
	}, nil
}

// OnGetConversations returns the user's conversation list, most recent
// first, with per-conversation unread counts.
func (s *Service) OnGetConversations(ctx context.Context, userID string) ([]*store.ConversationSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newError(ErrCodeBadRequest, "user id is required")
	}
	summaries, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return summaries, nil
}

// OnSend validates and persists a message and produces the fan-out:
// receive_message to both participants, refreshed metadata per side, and a
// delivered receipt when the receiver is online.
func (s *Service) OnSend(ctx context.Context, senderID, receiverID, body, journeyID, travelingDate string) (*store.Message, []Notification, error) {
	conversationID, err := DeriveConversationID(senderID, receiverID)
	if err != nil {
		return nil, nil, err
	}

	if strings.TrimSpace(body) == "" {
		return nil, nil, newError(ErrCodeValidation, "message body must not be empty")
	}
	if utf8.RuneCountInString(body) > MaxBodyLen {
		return nil, nil, newError(ErrCodeValidation, fmt.Sprintf("message exceeds the maximum length of %d characters", MaxBodyLen))
	}

	var traveling *time.Time
	if travelingDate != "" {
		parsed, err := time.Parse(time.RFC3339, travelingDate)
		if err != nil {
			return nil, nil, newError(ErrCodeInvalidDate, "traveling date must be a valid RFC 3339 instant")
		}
		traveling = &parsed
	}

	msg := &store.Message{
		SenderID:       senderID,
		ReceiverID:     receiverID,
		ConversationID: conversationID,
		Body:           body,
		TravelingDate:  traveling,
	}
	if journeyID != "" {
		msg.JourneyID = &journeyID
	}

	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, nil, fmt.Errorf("append message: %w", err)
	}

	notifs := []Notification{
		notifyUsers(&Event{
			Kind:           EventReceiveMessage,
			ConversationID: conversationID,
			Message:        msg,
		}, senderID, receiverID),
	}

	for _, userID := range []string{senderID, receiverID} {
		metadata, err := s.store.Metadata(ctx, conversationID, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("load metadata: %w", err)
		}
		notifs = append(notifs, notifyUsers(&Event{
			Kind:           EventConversationMetadata,
			ConversationID: conversationID,
			Metadata:       metadata,
		}, userID))
	}

	if s.presence.IsOnline(receiverID) {
		if err := s.store.MarkDelivered(ctx, []int64{msg.ID}); err != nil {
			return nil, nil, fmt.Errorf("mark delivered: %w", err)
		}
		msg.Delivered = true
		notifs = append(notifs, notifyUsers(&Event{
			Kind:           EventMessageDelivered,
			ConversationID: conversationID,
			UserID:         receiverID,
			MessageIDs:     []int64{msg.ID},
			Timestamp:      time.Now(),
		}, senderID, receiverID))
	}

	return msg, notifs, nil
}

// OnTyping records the ephemeral typing signal and tells the peer.
func (s *Service) OnTyping(userID, peerID string, isTyping bool) ([]Notification, error) {
	conversationID, err := DeriveConversationID(userID, peerID)
	if err != nil {
		return nil, err
	}

	s.typing.Set(conversationID, userID, peerID, isTyping)

	return []Notification{
		notifyUsers(&Event{
			Kind:           EventUserTyping,
			ConversationID: conversationID,
			UserID:         userID,
			IsTyping:       isTyping,
		}, peerID),
	}, nil
}

// typingExpired turns a decayed entry into a synthetic "stopped typing"
// notification. Runs on the registry's timer goroutine.
func (s *Service) typingExpired(conversationID, userID, peerID string) {
	s.Dispatch([]Notification{
		notifyUsers(&Event{
			Kind:           EventUserTyping,
			ConversationID: conversationID,
			UserID:         userID,
			IsTyping:       false,
		}, peerID),
	})
}

// OnMarkRead flips the given messages to read on behalf of readerID.
// Messages addressed to someone else are silently ignored. Produces a read
// receipt for the conversation and refreshed metadata for the reader.
func (s *Service) OnMarkRead(ctx context.Context, readerID, peerID string, ids []int64) ([]Notification, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	conversationID, err := DeriveConversationID(readerID, peerID)
	if err != nil {
		return nil, err
	}

	transitioned, err := s.store.MarkRead(ctx, ids, readerID)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if len(transitioned) == 0 {
		return nil, nil
	}

	readIDs := make([]int64, 0, len(transitioned))
	for _, msg := range transitioned {
		readIDs = append(readIDs, msg.ID)
	}

	metadata, err := s.store.Metadata(ctx, conversationID, readerID)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	return []Notification{
		notifyUsers(&Event{
			Kind:           EventMessagesRead,
			ConversationID: conversationID,
			UserID:         readerID,
			MessageIDs:     readIDs,
		}, readerID, peerID),
		notifyUsers(&Event{
			Kind:           EventConversationMetadata,
			ConversationID: conversationID,
			Metadata:       metadata,
		}, readerID),
	}, nil
}

// OnDisconnect clears the user's presence record (unless a newer
// connection superseded this one) and any pending typing entries.
func (s *Service) OnDisconnect(userID string, client *Client) []Notification {
	if !s.presence.Disconnect(userID, client) {
		// A newer connection owns the presence record now.
		return nil
	}

	var notifs []Notification
	for _, state := range s.typing.ClearUser(userID) {
		notifs = append(notifs, notifyUsers(&Event{
			Kind:           EventUserTyping,
			ConversationID: state.ConversationID,
			UserID:         userID,
			IsTyping:       false,
		}, state.PeerID))
	}

	notifs = append(notifs, notifyAll(&Event{
		Kind:   EventPresenceUpdate,
		UserID: userID,
		Online: false,
	}, userID))

	return notifs
}
