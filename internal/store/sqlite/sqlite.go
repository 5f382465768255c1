package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tripconnect/tripchat-server/internal/store"
)

// timeLayout is how datetimes are written, always UTC, so SQLite's
// datetime() can compare them against 'now' in queries.
const timeLayout = "2006-01-02 15:04:05"

// graceWindow is how long before its traveling date a message becomes
// visible in history. Expressed as a SQLite modifier so the comparison
// happens on the database side, exactly like the original query.
const graceWindow = "+12 hours"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply an alternative schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup.
	// SQLite works best with a single connection; it also makes every
	// transaction a serialization point, which the unread counters rely on.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, id, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (id, username, password_hash, is_guest)
		VALUES (?, ?, ?, 0)
	`
	if _, err := s.db.ExecContext(ctx, query, id, username, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a temporary guest user with session ID.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, id, sessionID string) (*store.User, error) {
	query := `
		INSERT INTO users (id, username, password_hash, is_guest, session_id)
		VALUES (?, ?, '', 1, ?)
	`
	guestUsername := "guest_" + sessionID[:8]

	if _, err := s.db.ExecContext(ctx, query, id, guestUsername, sessionID); err != nil {
		return nil, fmt.Errorf("insert guest user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE username = ? AND is_guest = 0
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// GetUserBySessionID retrieves a guest user by session ID.
func (s *SQLiteStore) GetUserBySessionID(ctx context.Context, sessionID string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE session_id = ? AND is_guest = 1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, sessionID))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsGuest,
		&user.SessionID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== MessageStore implementation ====

const messageColumns = `id, sender_id, receiver_id, conversation_id, journey_id, body, created_at, traveling_date, delivered, read`

// AppendMessage persists msg and increments the receiver's unread counter.
// The insert, the lazy metadata row creation for both participants, and
// the counter increment are one transaction; the increment is a single SQL
// expression, never a read-modify-write in application code.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	now := time.Now().UTC().Truncate(time.Second)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var travelingDate any
	if msg.TravelingDate != nil {
		travelingDate = msg.TravelingDate.UTC().Format(timeLayout)
	}

	insert := `
		INSERT INTO messages (sender_id, receiver_id, conversation_id, journey_id, body, created_at, traveling_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, insert,
		msg.SenderID,
		msg.ReceiverID,
		msg.ConversationID,
		msg.JourneyID,
		msg.Body,
		now.Format(timeLayout),
		travelingDate,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	ensure := `
		INSERT INTO conversation_metadata (conversation_id, user_id, unread_count, last_updated)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`
	for _, userID := range []string{msg.SenderID, msg.ReceiverID} {
		if _, err := tx.ExecContext(ctx, ensure, msg.ConversationID, userID, now.Format(timeLayout)); err != nil {
			return fmt.Errorf("ensure metadata row: %w", err)
		}
	}

	increment := `
		UPDATE conversation_metadata
		SET unread_count = unread_count + 1, last_updated = ?
		WHERE conversation_id = ? AND user_id = ?
	`
	if _, err := tx.ExecContext(ctx, increment, now.Format(timeLayout), msg.ConversationID, msg.ReceiverID); err != nil {
		return fmt.Errorf("increment unread count: %w", err)
	}

	touch := `
		UPDATE conversation_metadata
		SET last_updated = ?
		WHERE conversation_id = ? AND user_id = ?
	`
	if _, err := tx.ExecContext(ctx, touch, now.Format(timeLayout), msg.ConversationID, msg.SenderID); err != nil {
		return fmt.Errorf("touch sender metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = now
	msg.Delivered = false
	msg.Read = false
	return nil
}

// History retrieves the most recent messages of a conversation, oldest
// first. Messages scheduled for a future travel date stay hidden until
// within the grace window of that date.
func (s *SQLiteStore) History(ctx context.Context, conversationID string, limit int) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ?
		  AND (traveling_date IS NULL OR datetime(traveling_date, '` + graceWindow + `') > datetime('now'))
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// ListConversations returns one summary per conversation the user
// participates in, most recent message first. Ties in recency are broken
// by message id, which is why the subquery selects MAX(id).
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*store.ConversationSummary, error) {
	query := `
		SELECT m.id, m.sender_id, m.receiver_id, m.conversation_id, m.journey_id, m.body,
		       m.created_at, m.traveling_date, m.delivered, m.read,
		       COALESCE(cm.unread_count, 0)
		FROM messages m
		LEFT JOIN conversation_metadata cm
		  ON cm.conversation_id = m.conversation_id AND cm.user_id = ?
		WHERE (m.sender_id = ? OR m.receiver_id = ?)
		  AND m.id = (
			SELECT MAX(m2.id)
			FROM messages m2
			WHERE m2.conversation_id = m.conversation_id
		  )
		ORDER BY m.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var summaries []*store.ConversationSummary
	for rows.Next() {
		var msg store.Message
		var journeyID sql.NullString
		var travelingDate sql.NullTime
		var unread int
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.ConversationID,
			&journeyID,
			&msg.Body,
			&msg.CreatedAt,
			&travelingDate,
			&msg.Delivered,
			&msg.Read,
			&unread,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if journeyID.Valid {
			msg.JourneyID = &journeyID.String
		}
		if travelingDate.Valid {
			msg.TravelingDate = &travelingDate.Time
		}
		summaries = append(summaries, &store.ConversationSummary{
			ConversationID: msg.ConversationID,
			LastMessage:    &msg,
			UnreadCount:    unread,
		})
	}

	return summaries, rows.Err()
}

// ListUndelivered returns the user's inbound messages with delivered=0.
func (s *SQLiteStore) ListUndelivered(ctx context.Context, userID string) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE receiver_id = ? AND delivered = 0
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query undelivered: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListByJourney returns the most recent messages tagged with the journey,
// oldest first.
func (s *SQLiteStore) ListByJourney(ctx context.Context, journeyID string, limit int) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE journey_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, journeyID, limit)
	if err != nil {
		return nil, fmt.Errorf("query journey messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// MarkDelivered flips delivered=1 for the given ids. Already-delivered and
// unknown ids are silently skipped, which makes the call idempotent.
func (s *SQLiteStore) MarkDelivered(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE messages
		SET delivered = 1
		WHERE delivered = 0 AND id IN (` + placeholders(len(ids)) + `)
	`
	if _, err := s.db.ExecContext(ctx, query, idArgs(ids)...); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// MarkRead flips read=1 for ids addressed to readerID that are still
// unread and decrements the affected unread counters by the exact number
// of rows that transitioned, clamped at zero. Ids addressed to someone
// else are silently ignored so a caller cannot mark another user's inbox.
func (s *SQLiteStore) MarkRead(ctx context.Context, ids []int64, readerID string) ([]*store.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Truncate(time.Second)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	selectQuery := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE receiver_id = ? AND read = 0 AND id IN (` + placeholders(len(ids)) + `)
		ORDER BY id ASC
	`
	args := append([]any{readerID}, idArgs(ids)...)
	rows, err := tx.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query unread messages: %w", err)
	}
	transitioned, err := scanMessages(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(transitioned) == 0 {
		return nil, tx.Commit()
	}

	transitionedIDs := make([]int64, 0, len(transitioned))
	perConversation := make(map[string]int)
	for _, msg := range transitioned {
		transitionedIDs = append(transitionedIDs, msg.ID)
		perConversation[msg.ConversationID]++
	}

	update := `
		UPDATE messages
		SET read = 1
		WHERE id IN (` + placeholders(len(transitionedIDs)) + `)
	`
	if _, err := tx.ExecContext(ctx, update, idArgs(transitionedIDs)...); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	decrement := `
		UPDATE conversation_metadata
		SET unread_count = MAX(unread_count - ?, 0), last_updated = ?
		WHERE conversation_id = ? AND user_id = ?
	`
	for conversationID, count := range perConversation {
		if _, err := tx.ExecContext(ctx, decrement, count, now.Format(timeLayout), conversationID, readerID); err != nil {
			return nil, fmt.Errorf("decrement unread count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	for _, msg := range transitioned {
		msg.Read = true
	}
	return transitioned, nil
}

// UnreadCount returns the user's unread total, optionally scoped to one
// conversation. Reads only the counter rows, so it stays O(1) per row.
func (s *SQLiteStore) UnreadCount(ctx context.Context, userID, conversationID string) (int, error) {
	var (
		query string
		args  []any
	)
	if conversationID != "" {
		query = `
			SELECT COALESCE(SUM(unread_count), 0)
			FROM conversation_metadata
			WHERE user_id = ? AND conversation_id = ?
		`
		args = []any{userID, conversationID}
	} else {
		query = `
			SELECT COALESCE(SUM(unread_count), 0)
			FROM conversation_metadata
			WHERE user_id = ?
		`
		args = []any{userID}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("query unread count: %w", err)
	}
	return count, nil
}

// Metadata returns the (conversation, user) counter row. A conversation
// that has seen no messages yet reports a zero counter rather than an
// error, since metadata rows are created lazily on first insert.
func (s *SQLiteStore) Metadata(ctx context.Context, conversationID, userID string) (*store.ConversationMetadata, error) {
	query := `
		SELECT unread_count, last_updated
		FROM conversation_metadata
		WHERE conversation_id = ? AND user_id = ?
	`
	meta := &store.ConversationMetadata{
		ConversationID: conversationID,
		UserID:         userID,
	}
	err := s.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&meta.UnreadCount, &meta.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return meta, nil
		}
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	return meta, nil
}

// ==== helpers ====

func scanMessages(rows *sql.Rows) ([]*store.Message, error) {
	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var journeyID sql.NullString
		var travelingDate sql.NullTime
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.ConversationID,
			&journeyID,
			&msg.Body,
			&msg.CreatedAt,
			&travelingDate,
			&msg.Delivered,
			&msg.Read,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if journeyID.Valid {
			msg.JourneyID = &journeyID.String
		}
		if travelingDate.Valid {
			msg.TravelingDate = &travelingDate.Time
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
