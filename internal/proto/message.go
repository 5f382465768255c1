package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoinChat         = "join_chat"
	InboundTypeGetConversations = "get_conversations"
	InboundTypeSendMessage      = "send_message"
	InboundTypeTyping           = "typing"
	InboundTypeMarkRead         = "mark_read"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// JoinChatData requests to open the conversation with a peer.
type JoinChatData struct {
	ReceiverID string `json:"receiver_id"`
}

// SendMessageData is a direct message from the client. Field names mirror
// the persisted columns.
type SendMessageData struct {
	ReceiverID    string `json:"receiver_id"`
	Message       string `json:"message"`
	JourneyID     string `json:"journey_id,omitempty"`
	TravelingDate string `json:"traveling_date,omitempty"`
}

// TypingData signals that the client started or stopped typing to a peer.
type TypingData struct {
	ReceiverID string `json:"receiver_id"`
	IsTyping   bool   `json:"is_typing"`
}

// MarkReadData asks to mark inbound messages from a peer as read.
type MarkReadData struct {
	ReceiverID string  `json:"receiver_id"`
	MessageIDs []int64 `json:"message_ids"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Outbound event names.
const (
	EventChatHistory          = "chat_history"
	EventConversationList     = "conversation_list"
	EventConversationMetadata = "conversation_metadata"
	EventReceiveMessage       = "receive_message"
	EventMessageDelivered     = "message_delivered"
	EventMessagesRead         = "messages_read"
	EventUserTyping           = "user_typing"
	EventPresenceUpdate       = "presence_update"
	EventUnreadTotal          = "unread_total"
)

// WireMessage is a stored message as seen on the wire.
type WireMessage struct {
	ID             int64  `json:"id"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	ConversationID string `json:"conversation_id"`
	JourneyID      string `json:"journey_id,omitempty"`
	Message        string `json:"message"`
	Date           int64  `json:"date"`
	TravelingDate  string `json:"traveling_date,omitempty"`
	Delivered      bool   `json:"delivered"`
	Read           bool   `json:"read"`
}

// EventChatHistoryData delivers conversation history to the requester.
type EventChatHistoryData struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []WireMessage `json:"messages"`
	Typing         []string      `json:"typing,omitempty"`
}

// ConversationEntry is one row of a user's conversation list.
type ConversationEntry struct {
	ConversationID string      `json:"conversation_id"`
	LastMessage    WireMessage `json:"last_message"`
	UnreadCount    int         `json:"unread_count"`
}

// EventConversationListData delivers a user's conversation summaries.
type EventConversationListData struct {
	Conversations []ConversationEntry `json:"conversations"`
}

// EventConversationMetadataData delivers one conversation's unread state.
type EventConversationMetadataData struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int    `json:"unread_count"`
	LastUpdated    int64  `json:"last_updated"`
}

// EventMessageDeliveredData notifies that messages reached the receiver.
type EventMessageDeliveredData struct {
	ConversationID string  `json:"conversation_id,omitempty"`
	MessageIDs     []int64 `json:"message_ids"`
	Timestamp      int64   `json:"timestamp"`
}

// EventMessagesReadData notifies that the receiver read messages.
type EventMessagesReadData struct {
	ConversationID string  `json:"conversation_id"`
	MessageIDs     []int64 `json:"message_ids"`
	ReaderID       string  `json:"reader_id"`
}

// EventUserTypingData notifies the peer about a typing change.
type EventUserTypingData struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	IsTyping       bool   `json:"is_typing"`
}

// EventPresenceUpdateData notifies about a user going online or offline.
type EventPresenceUpdateData struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// EventUnreadTotalData delivers the total unread count on connect.
type EventUnreadTotalData struct {
	TotalUnread int `json:"total_unread"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
