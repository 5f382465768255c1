package http

import (
	"errors"
	"testing"
	"time"

	"github.com/tripconnect/tripchat-server/internal/chat"
	"github.com/tripconnect/tripchat-server/internal/proto"
	"github.com/tripconnect/tripchat-server/internal/store"
)

func sampleMessage() *store.Message {
	journeyID := "journey-7"
	traveling := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	return &store.Message{
		ID:             42,
		SenderID:       "alice",
		ReceiverID:     "bob",
		ConversationID: "alice-bob",
		JourneyID:      &journeyID,
		Body:           "see you there",
		CreatedAt:      time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		TravelingDate:  &traveling,
		Delivered:      true,
	}
}

func TestWireMessageMapping(t *testing.T) {
	wire := wireMessage(sampleMessage())

	if wire.ID != 42 || wire.SenderID != "alice" || wire.ReceiverID != "bob" {
		t.Fatalf("unexpected identity fields: %+v", wire)
	}
	if wire.Message != "see you there" {
		t.Fatalf("unexpected body %q", wire.Message)
	}
	if wire.JourneyID != "journey-7" {
		t.Fatalf("unexpected journey id %q", wire.JourneyID)
	}
	if wire.TravelingDate != "2026-09-01T12:00:00Z" {
		t.Fatalf("unexpected traveling date %q", wire.TravelingDate)
	}
	if !wire.Delivered || wire.Read {
		t.Fatalf("unexpected flags: %+v", wire)
	}
}

func TestWireMessageOmitsOptionalFields(t *testing.T) {
	wire := wireMessage(&store.Message{
		ID:             1,
		SenderID:       "alice",
		ReceiverID:     "bob",
		ConversationID: "alice-bob",
		Body:           "plain",
		CreatedAt:      time.Now(),
	})

	if wire.JourneyID != "" || wire.TravelingDate != "" {
		t.Fatalf("expected empty optional fields, got %+v", wire)
	}
}

func TestConnectOutboundSeedsSession(t *testing.T) {
	msg := sampleMessage()
	outs := connectOutbound(&chat.ConnectResult{
		Undelivered: []*store.Message{msg},
		TotalUnread: 3,
		Conversations: []*store.ConversationSummary{
			{ConversationID: "alice-bob", LastMessage: msg, UnreadCount: 3},
		},
	})

	if len(outs) != 3 {
		t.Fatalf("expected 3 envelopes, got %d", len(outs))
	}
	if outs[0].Event != proto.EventConversationList {
		t.Fatalf("expected conversation list first, got %s", outs[0].Event)
	}
	unread, ok := outs[1].Data.(proto.EventUnreadTotalData)
	if !ok || unread.TotalUnread != 3 {
		t.Fatalf("expected unread total 3, got %+v", outs[1].Data)
	}
	if outs[2].Event != proto.EventReceiveMessage {
		t.Fatalf("expected undelivered replay last, got %s", outs[2].Event)
	}
}

func TestOutboundFromTypingEvent(t *testing.T) {
	out := outboundFromEvent(&chat.Event{
		Kind:           chat.EventUserTyping,
		ConversationID: "alice-bob",
		UserID:         "alice",
		IsTyping:       true,
	})

	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventUserTyping {
		t.Fatalf("unexpected envelope %+v", out)
	}
	data, ok := out.Data.(proto.EventUserTypingData)
	if !ok {
		t.Fatalf("unexpected data type %T", out.Data)
	}
	if data.SenderID != "alice" || !data.IsTyping {
		t.Fatalf("unexpected typing data %+v", data)
	}
}

func TestOutboundFromErrorEvent(t *testing.T) {
	out := outboundFromEvent(&chat.Event{
		Kind:  chat.EventError,
		Error: chat.AsError(errors.New("disk on fire")),
	})

	if out.Type != proto.OutboundTypeError || out.Error == nil {
		t.Fatalf("expected error envelope, got %+v", out)
	}
	// Internals never leak through the wire error.
	if out.Error.Code != chat.ErrCodeStorage || out.Error.Msg == "disk on fire" {
		t.Fatalf("unexpected wire error %+v", out.Error)
	}
}

func TestHistoryEventCarriesTypingSnapshot(t *testing.T) {
	result := &chat.JoinResult{
		ConversationID: "alice-bob",
		History:        []*store.Message{sampleMessage()},
		Metadata:       &store.ConversationMetadata{ConversationID: "alice-bob", UserID: "bob", UnreadCount: 1},
		Typing:         []chat.TypingState{{ConversationID: "alice-bob", UserID: "alice", PeerID: "bob"}},
	}

	out := outboundFromEvent(historyEvent(result))
	data, ok := out.Data.(proto.EventChatHistoryData)
	if !ok {
		t.Fatalf("unexpected data type %T", out.Data)
	}
	if data.ConversationID != "alice-bob" || len(data.Messages) != 1 {
		t.Fatalf("unexpected history data %+v", data)
	}
	if len(data.Typing) != 1 || data.Typing[0] != "alice" {
		t.Fatalf("expected alice in typing snapshot, got %v", data.Typing)
	}
}
