// Package conversation keeps the process-lifetime, per-identity message
// history that gives every completion call its rolling context window.
// Histories live in memory only; a restart forgets every conversation.
package conversation

import "sync"

// Role tags a turn with its author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation. Immutable once created.
type Turn struct {
	Role    Role
	Content string
}

// History is the ordered turn sequence for one conversation identity.
// Element 0 is always the system turn; it is never evicted or reordered and
// is excluded from window counts. The turn slice carries its own lock so a
// History held across concurrent store appends reads consistently.
type History struct {
	// ID is a process-unique tag for this conversation, used in logs.
	ID string

	mu    sync.RWMutex
	turns []Turn
}

// Len returns the number of turns including the system turn.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Turns returns a copy of the full turn sequence.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) append(turn Turn) {
	h.mu.Lock()
	h.turns = append(h.turns, turn)
	h.mu.Unlock()
}

// window returns the system turn plus the last n non-system turns,
// chronological, copied out.
func (h *History) window(n int) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tail := h.turns[1:]
	if len(tail) > n {
		tail = tail[len(tail)-n:]
	}
	out := make([]Turn, 0, 1+len(tail))
	out = append(out, h.turns[0])
	out = append(out, tail...)
	return out
}
