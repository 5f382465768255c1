package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tripconnect/tripchat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func appendMessage(t *testing.T, st *SQLiteStore, senderID, receiverID, body string) *store.Message {
	t.Helper()

	msg := &store.Message{
		SenderID:       senderID,
		ReceiverID:     receiverID,
		ConversationID: conversationOf(senderID, receiverID),
		Body:           body,
	}
	if err := st.AppendMessage(context.Background(), msg); err != nil {
		t.Fatalf("append message: %v", err)
	}
	return msg
}

func conversationOf(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "-" + b
}

func timePtr(v time.Time) *time.Time { return &v }

func TestAppendMessageAssignsIDAndIncrementsUnread(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := appendMessage(t, st, "alice", "bob", "hello")
	second := appendMessage(t, st, "alice", "bob", "again")

	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}

	unread, err := st.UnreadCount(ctx, "bob", first.ConversationID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 2 {
		t.Fatalf("expected unread 2, got %d", unread)
	}

	unread, err = st.UnreadCount(ctx, "alice", first.ConversationID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected sender unread 0, got %d", unread)
	}
}

func TestHistoryReturnsChronologicalOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three"} {
		appendMessage(t, st, "alice", "bob", body)
	}

	history, err := st.History(ctx, "alice-bob", 100)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	for i, want := range []string{"one", "two", "three"} {
		if history[i].Body != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, history[i].Body)
		}
	}
}

func TestHistoryKeepsMostRecentWhenOverLimit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		appendMessage(t, st, "alice", "bob", strings.Repeat("x", i+1))
	}

	history, err := st.History(ctx, "alice-bob", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	// The window is the newest messages, still oldest first.
	if len(history[0].Body) != 4 || len(history[1].Body) != 5 {
		t.Fatalf("expected the two newest messages, got lengths %d and %d",
			len(history[0].Body), len(history[1].Body))
	}
}

func TestHistoryTravelingDateVisibility(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	cases := []struct {
		body          string
		travelingDate *time.Time
		visible       bool
	}{
		{"no date", nil, true},
		{"six hours ago", timePtr(now.Add(-6 * time.Hour)), true},
		{"thirteen hours ago", timePtr(now.Add(-13 * time.Hour)), false},
		{"tomorrow", timePtr(now.Add(24 * time.Hour)), true},
	}

	for _, tc := range cases {
		msg := &store.Message{
			SenderID:       "alice",
			ReceiverID:     "bob",
			ConversationID: "alice-bob",
			Body:           tc.body,
			TravelingDate:  tc.travelingDate,
		}
		if err := st.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append %q: %v", tc.body, err)
		}
	}

	history, err := st.History(ctx, "alice-bob", 100)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	got := make(map[string]bool, len(history))
	for _, msg := range history {
		got[msg.Body] = true
	}
	for _, tc := range cases {
		if got[tc.body] != tc.visible {
			t.Errorf("message %q: visible=%v, expected %v", tc.body, got[tc.body], tc.visible)
		}
	}
}

func TestListConversationsOrderAndUnread(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	appendMessage(t, st, "alice", "bob", "to bob")
	appendMessage(t, st, "carol", "alice", "to alice")
	last := appendMessage(t, st, "alice", "bob", "to bob again")

	summaries, err := st.ListConversations(ctx, "alice")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(summaries))
	}

	// Most recent conversation first, carrying its latest message.
	if summaries[0].ConversationID != "alice-bob" {
		t.Fatalf("expected alice-bob first, got %s", summaries[0].ConversationID)
	}
	if summaries[0].LastMessage.ID != last.ID {
		t.Fatalf("expected last message id %d, got %d", last.ID, summaries[0].LastMessage.ID)
	}
	if summaries[0].UnreadCount != 0 {
		t.Fatalf("alice sent both messages, expected unread 0, got %d", summaries[0].UnreadCount)
	}
	if summaries[1].ConversationID != "alice-carol" {
		t.Fatalf("expected alice-carol second, got %s", summaries[1].ConversationID)
	}
	if summaries[1].UnreadCount != 1 {
		t.Fatalf("expected unread 1 from carol, got %d", summaries[1].UnreadCount)
	}
}

func TestListConversationsEmptyForUnknownUser(t *testing.T) {
	st := newTestStore(t)

	summaries, err := st.ListConversations(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected no conversations, got %d", len(summaries))
	}
}

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	msg := appendMessage(t, st, "alice", "bob", "hi")

	undelivered, err := st.ListUndelivered(ctx, "bob")
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(undelivered) != 1 || undelivered[0].ID != msg.ID {
		t.Fatalf("expected the new message undelivered, got %d rows", len(undelivered))
	}

	if err := st.MarkDelivered(ctx, []int64{msg.ID}); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	// Repeating, and including unknown ids, must not fail.
	if err := st.MarkDelivered(ctx, []int64{msg.ID, 9999}); err != nil {
		t.Fatalf("repeat mark delivered: %v", err)
	}
	if err := st.MarkDelivered(ctx, nil); err != nil {
		t.Fatalf("empty mark delivered: %v", err)
	}

	undelivered, err = st.ListUndelivered(ctx, "bob")
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(undelivered) != 0 {
		t.Fatalf("expected no undelivered rows, got %d", len(undelivered))
	}
}

func TestMarkReadDecrementsOnlyTransitions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := appendMessage(t, st, "alice", "bob", "one")
	second := appendMessage(t, st, "alice", "bob", "two")

	transitioned, err := st.MarkRead(ctx, []int64{first.ID}, "bob")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if len(transitioned) != 1 || transitioned[0].ID != first.ID || !transitioned[0].Read {
		t.Fatalf("expected exactly the first message to transition, got %+v", transitioned)
	}

	unread, err := st.UnreadCount(ctx, "bob", first.ConversationID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 1 {
		t.Fatalf("expected unread 1, got %d", unread)
	}

	// A mixed batch of already-read, unread, and unknown ids only counts
	// the real transitions.
	transitioned, err = st.MarkRead(ctx, []int64{first.ID, second.ID, 9999}, "bob")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if len(transitioned) != 1 || transitioned[0].ID != second.ID {
		t.Fatalf("expected only the second message to transition, got %+v", transitioned)
	}

	unread, err = st.UnreadCount(ctx, "bob", first.ConversationID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected unread 0, got %d", unread)
	}
}

func TestMarkReadIgnoresOtherReceivers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	msg := appendMessage(t, st, "alice", "bob", "hi")

	transitioned, err := st.MarkRead(ctx, []int64{msg.ID}, "alice")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if len(transitioned) != 0 {
		t.Fatalf("expected no transitions for the sender, got %d", len(transitioned))
	}

	unread, err := st.UnreadCount(ctx, "bob", msg.ConversationID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 1 {
		t.Fatalf("expected bob unread unchanged at 1, got %d", unread)
	}
}

func TestUnreadCountScoping(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	appendMessage(t, st, "alice", "bob", "one")
	appendMessage(t, st, "carol", "bob", "two")
	appendMessage(t, st, "carol", "bob", "three")

	total, err := st.UnreadCount(ctx, "bob", "")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}

	scoped, err := st.UnreadCount(ctx, "bob", "bob-carol")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if scoped != 2 {
		t.Fatalf("expected 2 from carol, got %d", scoped)
	}

	none, err := st.UnreadCount(ctx, "bob", "nothing-here")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if none != 0 {
		t.Fatalf("expected 0 for unknown conversation, got %d", none)
	}
}

func TestMetadataZeroValueForUnknownConversation(t *testing.T) {
	st := newTestStore(t)

	meta, err := st.Metadata(context.Background(), "alice-bob", "alice")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.ConversationID != "alice-bob" || meta.UserID != "alice" || meta.UnreadCount != 0 {
		t.Fatalf("expected zero-value metadata, got %+v", meta)
	}
}

func TestListByJourney(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	journeyID := "journey-42"
	for _, body := range []string{"first", "second"} {
		msg := &store.Message{
			SenderID:       "alice",
			ReceiverID:     "bob",
			ConversationID: "alice-bob",
			JourneyID:      &journeyID,
			Body:           body,
		}
		if err := st.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	appendMessage(t, st, "alice", "bob", "untagged")

	messages, err := st.ListByJourney(ctx, journeyID, 100)
	if err != nil {
		t.Fatalf("list by journey: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 tagged messages, got %d", len(messages))
	}
	if messages[0].Body != "first" || messages[1].Body != "second" {
		t.Fatalf("expected oldest-first ordering, got %q then %q", messages[0].Body, messages[1].Body)
	}
	for _, msg := range messages {
		if msg.JourneyID == nil || *msg.JourneyID != journeyID {
			t.Fatalf("expected journey id %q on message %d", journeyID, msg.ID)
		}
	}
}

func TestUserStoreRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateUser(ctx, "user-1", "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID != "user-1" || created.Username != "alice" || created.IsGuest {
		t.Fatalf("unexpected user %+v", created)
	}

	byName, err := st.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != created.ID {
		t.Fatalf("expected id %s, got %s", created.ID, byName.ID)
	}

	if _, err := st.GetUserByID(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown id")
	}

	if _, err := st.CreateUser(ctx, "user-2", "alice", "hash"); err == nil {
		t.Fatal("expected unique constraint violation on username")
	}
}

func TestGuestUserLookupBySession(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	guest, err := st.CreateGuestUser(ctx, "guest-1", "abcdef1234567890")
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	if !guest.IsGuest || guest.Username != "guest_abcdef12" {
		t.Fatalf("unexpected guest %+v", guest)
	}

	bySession, err := st.GetUserBySessionID(ctx, "abcdef1234567890")
	if err != nil {
		t.Fatalf("get by session: %v", err)
	}
	if bySession.ID != guest.ID {
		t.Fatalf("expected id %s, got %s", guest.ID, bySession.ID)
	}

	// Guests never resolve through the username lookup.
	if _, err := st.GetUserByUsername(ctx, guest.Username); err == nil {
		t.Fatal("expected guest to be invisible to username lookup")
	}
}
