package chat

import (
	"errors"
	"testing"
)

func TestDeriveConversationIDIsOrderIndependent(t *testing.T) {
	ab, err := DeriveConversationID("alice", "bob")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	ba, err := DeriveConversationID("bob", "alice")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if ab != ba {
		t.Fatalf("expected same id for both orders, got %q and %q", ab, ba)
	}
	if ab != "alice-bob" {
		t.Fatalf("expected sorted join, got %q", ab)
	}
}

func TestDeriveConversationIDDiffersPerPair(t *testing.T) {
	first, err := DeriveConversationID("alice", "bob")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	second, err := DeriveConversationID("alice", "carol")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if first == second {
		t.Fatalf("distinct pairs must not share an id: %q", first)
	}
}

func TestDeriveConversationIDRejectsInvalidParticipants(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"equal ids", "alice", "alice"},
		{"empty first", "", "bob"},
		{"empty second", "alice", ""},
		{"blank first", "   ", "bob"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DeriveConversationID(tc.a, tc.b)
			if err == nil {
				t.Fatalf("expected error for %q/%q", tc.a, tc.b)
			}
			var derr *Error
			if !errors.As(err, &derr) || derr.Code != ErrCodeInvalidParticipants {
				t.Fatalf("expected %s, got %v", ErrCodeInvalidParticipants, err)
			}
		})
	}
}
