package store

import (
	"context"
	"time"
)

// User represents a user in the system. IDs are UUID strings so they sort
// lexicographically inside conversation keys.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
}

// Message represents a persisted direct message. Body, participants and
// dates are immutable after insert; only the delivered and read flags flip,
// each at most once.
type Message struct {
	ID             int64
	SenderID       string
	ReceiverID     string
	ConversationID string
	JourneyID      *string // optional topic/journey tag
	Body           string
	CreatedAt      time.Time
	TravelingDate  *time.Time // gates visibility until near the travel date
	Delivered      bool
	Read           bool
}

// ConversationMetadata is the per-(conversation, user) unread counter.
// Its count always equals the number of unread messages addressed to the
// user in the conversation; only the store's own write paths touch it.
type ConversationMetadata struct {
	ConversationID string
	UserID         string
	UnreadCount    int
	LastUpdated    time.Time
}

// ConversationSummary is one entry in a user's conversation list: the most
// recent message plus that user's unread count.
type ConversationSummary struct {
	ConversationID string
	LastMessage    *Message
	UnreadCount    int
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, id, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, id, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserBySessionID retrieves a guest user by session ID.
	GetUserBySessionID(ctx context.Context, sessionID string) (*User, error)
}

// MessageStore handles message persistence and the unread counters that
// must stay consistent with it.
type MessageStore interface {
	// AppendMessage persists msg and increments the receiver's unread
	// counter in one transaction. Assigns msg.ID and msg.CreatedAt.
	AppendMessage(ctx context.Context, msg *Message) error

	// History returns the most recent messages of a conversation, oldest
	// first, capped at limit. Messages whose traveling date is more than
	// the grace window in the future are hidden.
	History(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// ListConversations returns one summary per conversation the user
	// participates in, most recent first, ties broken by message id.
	ListConversations(ctx context.Context, userID string) ([]*ConversationSummary, error)

	// ListUndelivered returns the user's inbound messages with delivered=0,
	// oldest first.
	ListUndelivered(ctx context.Context, userID string) ([]*Message, error)

	// ListByJourney returns the most recent messages tagged with the
	// journey, oldest first, capped at limit.
	ListByJourney(ctx context.Context, journeyID string, limit int) ([]*Message, error)

	// MarkDelivered flips delivered=1 for the given ids. Idempotent;
	// already-delivered and unknown ids are silently skipped.
	MarkDelivered(ctx context.Context, ids []int64) error

	// MarkRead flips read=1 for ids addressed to readerID that are still
	// unread, decrementing the affected unread counters in the same
	// transaction. Other ids are silently ignored. Returns the rows that
	// transitioned.
	MarkRead(ctx context.Context, ids []int64, readerID string) ([]*Message, error)

	// UnreadCount returns the user's total unread count, or the count
	// scoped to one conversation when conversationID is non-empty.
	UnreadCount(ctx context.Context, userID, conversationID string) (int, error)

	// Metadata returns the (conversation, user) counter row, or a zero
	// counter when no message has touched the conversation yet.
	Metadata(ctx context.Context, conversationID, userID string) (*ConversationMetadata, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
