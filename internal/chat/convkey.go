package chat

import "strings"

// conversationKeySeparator joins the two sorted participant ids.
// Changing it would fragment every existing conversation.
const conversationKeySeparator = "-"

// DeriveConversationID returns the canonical id of the two-party
// conversation between a and b. The result is order-independent: both
// participants, and every producer (send, join, typing, read), derive the
// same id. Returns ErrInvalidParticipants when the ids are blank or equal.
func DeriveConversationID(a, b string) (string, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" || a == b {
		return "", newError(ErrCodeInvalidParticipants, "participants must be two distinct non-empty ids")
	}
	if a > b {
		a, b = b, a
	}
	return a + conversationKeySeparator + b, nil
}
