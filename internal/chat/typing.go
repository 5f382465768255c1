package chat

import (
	"sync"
	"time"
)

const (
	// DefaultTypingDecay is how long a typing signal stays armed without a
	// refresh before a synthetic "stopped typing" is produced.
	DefaultTypingDecay = 3 * time.Second
	// DefaultTypingStale guards queries against a missed or cancelled decay
	// timer: entries idle longer than this are treated as absent.
	DefaultTypingStale = 5 * time.Second
)

// TypingState is a live "user is typing" record as seen by queries.
type TypingState struct {
	ConversationID string
	UserID         string
	PeerID         string
	UpdatedAt      time.Time
}

type typingKey struct {
	conversationID string
	userID         string
}

type typingEntry struct {
	peerID    string
	updatedAt time.Time
	timer     *time.Timer
	gen       uint64
}

// TypingRegistry is an in-memory, time-decaying record of who is typing in
// which conversation, keyed by (conversation, user) so simultaneous typers
// do not clobber each other. Entries expire after the decay window without
// requiring an explicit stop event; expiry invokes onExpire exactly once.
// State is ephemeral and lost on restart by design.
type TypingRegistry struct {
	mu      sync.Mutex
	entries map[typingKey]*typingEntry
	decay   time.Duration
	stale   time.Duration

	// onExpire runs on the timer goroutine, outside the registry lock.
	onExpire func(conversationID, userID, peerID string)
}

// NewTypingRegistry constructs a registry. onExpire may be nil.
func NewTypingRegistry(decay, stale time.Duration, onExpire func(conversationID, userID, peerID string)) *TypingRegistry {
	if decay <= 0 {
		decay = DefaultTypingDecay
	}
	if stale <= 0 {
		stale = DefaultTypingStale
	}
	return &TypingRegistry{
		entries:  make(map[typingKey]*typingEntry),
		decay:    decay,
		stale:    stale,
		onExpire: onExpire,
	}
}

// Set records that the user is (or stopped) typing to peer in the
// conversation. A true flag arms the decay timer; a newer event for the
// same (conversation, user) cancels the previous timer so a stale clear
// never races a fresh signal.
func (r *TypingRegistry) Set(conversationID, userID, peerID string, isTyping bool) {
	key := typingKey{conversationID: conversationID, userID: userID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[key]; ok {
		existing.timer.Stop()
		existing.gen++
		if !isTyping {
			delete(r.entries, key)
			return
		}
		existing.peerID = peerID
		existing.updatedAt = time.Now()
		gen := existing.gen
		existing.timer = time.AfterFunc(r.decay, func() { r.expire(key, gen) })
		return
	}

	if !isTyping {
		return
	}

	entry := &typingEntry{
		peerID:    peerID,
		updatedAt: time.Now(),
	}
	gen := entry.gen
	entry.timer = time.AfterFunc(r.decay, func() { r.expire(key, gen) })
	r.entries[key] = entry
}

// expire removes the entry if no newer Set superseded the armed timer.
func (r *TypingRegistry) expire(key typingKey, gen uint64) {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok || entry.gen != gen {
		r.mu.Unlock()
		return
	}
	peerID := entry.peerID
	delete(r.entries, key)
	r.mu.Unlock()

	if r.onExpire != nil {
		r.onExpire(key.conversationID, key.userID, peerID)
	}
}

// Snapshot returns the non-expired typers in the conversation, excluding
// the requester. Entries idle beyond the stale window are skipped even if
// their timer has not fired yet.
func (r *TypingRegistry) Snapshot(conversationID, exclude string) []TypingState {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var states []TypingState
	for key, entry := range r.entries {
		if key.conversationID != conversationID || key.userID == exclude {
			continue
		}
		if now.Sub(entry.updatedAt) > r.stale {
			continue
		}
		states = append(states, TypingState{
			ConversationID: key.conversationID,
			UserID:         key.userID,
			PeerID:         entry.peerID,
			UpdatedAt:      entry.updatedAt,
		})
	}
	return states
}

// ClearUser cancels every pending entry for the user and returns the
// cleared states so the caller can emit "stopped typing" to the peers.
func (r *TypingRegistry) ClearUser(userID string) []TypingState {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared []TypingState
	for key, entry := range r.entries {
		if key.userID != userID {
			continue
		}
		entry.timer.Stop()
		entry.gen++
		cleared = append(cleared, TypingState{
			ConversationID: key.conversationID,
			UserID:         key.userID,
			PeerID:         entry.peerID,
			UpdatedAt:      entry.updatedAt,
		})
		delete(r.entries, key)
	}
	return cleared
}
