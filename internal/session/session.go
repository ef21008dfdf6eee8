// Package session holds per-chat navigation state: the selection stack, the
// action-token cache, a bounded message history and the delivery-in-flight
// guard. Sessions live only in process memory.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrExpired is returned when an action token cannot be resolved,
	// typically because the session was evicted or the process restarted.
	ErrExpired = errors.New("session expired")

	// ErrDeliveryInFlight is returned when a second delivery is attempted
	// for a chat that already has one running.
	ErrDeliveryInFlight = errors.New("delivery already in progress")
)

// tokenLen keeps encoded callbacks far below the 64-byte payload bound.
const tokenLen = 10

// Session is the mutable state of one chat
type Session struct {
	chatID int64

	mu          sync.Mutex
	stack       []string          // selected segment names, root to current level
	actionCache map[string]string // token -> absolute path
	history     []int             // message ids, oldest first
	historyCap  int
	generation  int // bumped on every reset, checked by in-flight deliveries
	delivering  bool
	cancel      context.CancelFunc
	lastSeen    time.Time
}

func newSession(chatID int64, historyCap int) *Session {
	return &Session{
		chatID:      chatID,
		actionCache: make(map[string]string),
		historyCap:  historyCap,
		lastSeen:    time.Now(),
	}
}

// ChatID returns the chat this session belongs to
func (s *Session) ChatID() int64 {
	return s.chatID
}

// Touch marks the session as recently used
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns the time of the last interaction
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Stack returns a copy of the navigation stack
func (s *Session) Stack() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.stack...)
}

// Depth returns the current navigation depth
func (s *Session) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// Push appends a selected segment to the navigation stack
func (s *Session) Push(segment string) {
	s.mu.Lock()
	s.stack = append(s.stack, segment)
	s.mu.Unlock()
}

// Pop removes and returns the deepest segment. ok is false at the root.
func (s *Session) Pop() (segment string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return "", false
	}
	segment = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return segment, true
}

// SetStack replaces the navigation stack
func (s *Session) SetStack(stack []string) {
	s.mu.Lock()
	s.stack = append([]string(nil), stack...)
	s.mu.Unlock()
}

// NewToken caches a resolved path under a fresh short token. Tokens are
// unique for the session's whole lifetime: the cache is only dropped on
// reset, and a colliding draw is redrawn.
func (s *Session) NewToken(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		token, err := gonanoid.New(tokenLen)
		if err != nil {
			return "", err
		}
		if _, taken := s.actionCache[token]; taken {
			continue
		}
		s.actionCache[token] = path
		return token, nil
	}
}

// Resolve maps a token back to its cached path
func (s *Session) Resolve(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.actionCache[token]
	if !ok {
		return "", ErrExpired
	}
	return path, nil
}

// RecordMessage appends a message id to the bounded history,
// evicting the oldest entry beyond the cap.
func (s *Session) RecordMessage(messageID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, messageID)
	if s.historyCap > 0 && len(s.history) > s.historyCap {
		s.history = s.history[len(s.history)-s.historyCap:]
	}
}

// History returns a copy of the recorded message ids, oldest first
func (s *Session) History() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.history...)
}

// Generation returns the reset generation. A delivery captures it at start
// and stops as soon as the live value differs.
func (s *Session) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// BeginDelivery marks the session as delivering and stores the pipeline's
// cancel func so a reset can abort it. At most one delivery may run per chat.
func (s *Session) BeginDelivery(cancel context.CancelFunc) (generation int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.delivering {
		return 0, ErrDeliveryInFlight
	}
	s.delivering = true
	s.cancel = cancel
	return s.generation, nil
}

// EndDelivery clears the delivery-in-flight state. Safe to call more than once.
func (s *Session) EndDelivery() {
	s.mu.Lock()
	s.delivering = false
	s.cancel = nil
	s.mu.Unlock()
}

// Delivering reports whether a delivery is currently running for this chat
func (s *Session) Delivering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivering
}

// reset clears all navigation state, bumps the generation and aborts any
// in-flight delivery. Caller keeps using the same Session value.
func (s *Session) reset() {
	s.mu.Lock()
	cancel := s.cancel
	s.stack = nil
	s.actionCache = make(map[string]string)
	s.history = nil
	s.generation++
	s.lastSeen = time.Now()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
