package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultWindow is the number of trailing non-system turns included in a
// completion request when the caller does not say otherwise.
const DefaultWindow = 10

// ErrUnknownIdentity is returned when a turn is appended for an identity
// that has no history yet. The store never self-heals on append: callers
// must establish the history with GetOrCreate first.
var ErrUnknownIdentity = errors.New("conversation: unknown identity")

// StoreConfig holds configuration for the Store.
type StoreConfig struct {
	// MaxConversations caps the number of identities kept in memory. When
	// the cap is exceeded the least-recently-used identity's history is
	// dropped. Zero means unbounded (the conversation map grows with every
	// distinct identity ever seen).
	MaxConversations int
}

// Store maps conversation identities to their histories. It is the only
// mutable shared state in the process and is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	config   StoreConfig
	convos   map[string]*History
	lastUsed map[string]time.Time
	pinned   map[string]int
}

// NewStore creates a Store with the given configuration.
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		config:   cfg,
		convos:   make(map[string]*History),
		lastUsed: make(map[string]time.Time),
		pinned:   make(map[string]int),
	}
}

// GetOrCreate returns the history for identity, creating it with the given
// system turn as element 0 when the identity has not been seen before.
// Repeated calls without an intervening append return the same single-element
// history — no duplicate system turns.
func (s *Store) GetOrCreate(identity string, systemTurn Turn) *History {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.convos[identity]
	if h == nil {
		h = &History{
			ID:    uuid.New().String(),
			turns: []Turn{{Role: RoleSystem, Content: systemTurn.Content}},
		}
		s.convos[identity] = h
		s.evictOverCap(identity)
	}
	s.lastUsed[identity] = time.Now()
	return h
}

// AppendUser appends a user turn to identity's history.
func (s *Store) AppendUser(identity, text string) error {
	return s.append(identity, Turn{Role: RoleUser, Content: text})
}

// AppendAssistant appends an assistant turn to identity's history.
func (s *Store) AppendAssistant(identity, text string) error {
	return s.append(identity, Turn{Role: RoleAssistant, Content: text})
}

func (s *Store) append(identity string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.convos[identity]
	if h == nil {
		return ErrUnknownIdentity
	}
	h.append(turn)
	s.lastUsed[identity] = time.Now()
	return nil
}

// Window returns the system turn followed by the last n non-system turns of
// identity's history, in chronological order (fewer when the history is
// shorter). The stored history is not mutated; the result is a copy. A
// non-positive n falls back to DefaultWindow. Unknown identities yield nil.
func (s *Store) Window(identity string, n int) []Turn {
	if n <= 0 {
		n = DefaultWindow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.convos[identity]
	if h == nil {
		return nil
	}
	return h.window(n)
}

// Len returns the number of tracked identities.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convos)
}

// Pin marks identity as in use, shielding its history from LRU eviction
// until a matching Unpin. Pins nest; an eviction racing a half-processed
// message would otherwise turn a successful reply into ErrUnknownIdentity.
func (s *Store) Pin(identity string) {
	s.mu.Lock()
	s.pinned[identity]++
	s.mu.Unlock()
}

// Unpin releases one Pin of identity.
func (s *Store) Unpin(identity string) {
	s.mu.Lock()
	if s.pinned[identity] > 1 {
		s.pinned[identity]--
	} else {
		delete(s.pinned, identity)
	}
	s.mu.Unlock()
}

// evictOverCap drops least-recently-used histories until the configured cap
// is respected. The identity just touched and pinned identities are never
// evicted, so the store can sit over cap while every candidate is in use.
// Must be called with mu held.
func (s *Store) evictOverCap(justCreated string) {
	if s.config.MaxConversations <= 0 {
		return
	}
	for len(s.convos) > s.config.MaxConversations {
		oldest := ""
		var oldestAt time.Time
		for id, at := range s.lastUsed {
			if id == justCreated || s.pinned[id] > 0 {
				continue
			}
			if oldest == "" || at.Before(oldestAt) {
				oldest = id
				oldestAt = at
			}
		}
		if oldest == "" {
			return
		}
		delete(s.convos, oldest)
		delete(s.lastUsed, oldest)
	}
}
