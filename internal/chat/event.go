package chat

import (
	"time"

	"github.com/tripconnect/tripchat-server/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventReceiveMessage delivers a freshly stored message to a participant.
	EventReceiveMessage EventKind = iota
	// EventChatHistory delivers conversation history upon joining.
	EventChatHistory
	// EventConversationList delivers a user's conversation summaries.
	EventConversationList
	// EventConversationMetadata delivers unread count and last activity for one conversation.
	EventConversationMetadata
	// EventMessageDelivered notifies a conversation that messages reached the receiver.
	EventMessageDelivered
	// EventMessagesRead notifies a conversation that the receiver read messages.
	EventMessagesRead
	// EventUserTyping notifies the peer that a user started or stopped typing.
	EventUserTyping
	// EventPresenceUpdate notifies everyone that a user went online or offline.
	EventPresenceUpdate
	// EventUnreadTotal delivers the total unread count across conversations.
	EventUnreadTotal
	// EventError notifies the originating client about a domain error.
	EventError
)

// Event describes what happened in the system. Only the fields relevant
// to the Kind are populated.
type Event struct {
	Kind           EventKind
	ConversationID string
	UserID         string
	Message        *store.Message
	Messages       []*store.Message
	Summaries      []*store.ConversationSummary
	Metadata       *store.ConversationMetadata
	MessageIDs     []int64
	IsTyping       bool
	Typing         []TypingState
	Online         bool
	TotalUnread    int
	Timestamp      time.Time
	Error          *Error
}

// Notification pairs an event with its audience. The transport layer owns
// delivery; the core only names targets.
type Notification struct {
	// UserIDs are explicit recipients. Ignored when Broadcast is set.
	UserIDs []string
	// Broadcast sends to every connected client except ExcludeUserID.
	Broadcast     bool
	ExcludeUserID string
	Event         *Event
}

func notifyUsers(ev *Event, userIDs ...string) Notification {
	return Notification{UserIDs: userIDs, Event: ev}
}

func notifyAll(ev *Event, exclude string) Notification {
	return Notification{Broadcast: true, ExcludeUserID: exclude, Event: ev}
}
