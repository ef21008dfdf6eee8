package session

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store owns every chat session. All map access is lock-protected; the
// sessions themselves carry their own locks so handlers for different chats
// never contend.
type Store struct {
	mu         sync.RWMutex
	sessions   map[int64]*Session
	historyCap int
	logger     zerolog.Logger
	onCount    func(n int) // optional active-sessions gauge hook
}

// NewStore creates a session store
func NewStore(historyCap int, logger zerolog.Logger) *Store {
	return &Store{
		sessions:   make(map[int64]*Session),
		historyCap: historyCap,
		logger:     logger.With().Str("component", "session").Logger(),
	}
}

// SetCountHook installs a callback invoked with the live session count
// whenever it changes.
func (st *Store) SetCountHook(hook func(n int)) {
	st.mu.Lock()
	st.onCount = hook
	st.mu.Unlock()
}

// GetOrCreate returns the chat's session, creating it on first interaction
func (st *Store) GetOrCreate(chatID int64) *Session {
	st.mu.RLock()
	s, ok := st.sessions[chatID]
	st.mu.RUnlock()
	if ok {
		s.Touch()
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok = st.sessions[chatID]; ok {
		s.Touch()
		return s
	}

	s = newSession(chatID, st.historyCap)
	st.sessions[chatID] = s
	st.notifyCountLocked()

	st.logger.Debug().Int64("chat_id", chatID).Msg("Session created")
	return s
}

// Get returns the chat's session without creating one
func (st *Store) Get(chatID int64) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[chatID]
	return s, ok
}

// Reset clears a chat's session state. An in-flight delivery for the chat is
// cancelled; the session value itself survives so concurrent holders keep a
// valid reference.
func (st *Store) Reset(chatID int64) {
	st.mu.RLock()
	s, ok := st.sessions[chatID]
	st.mu.RUnlock()
	if !ok {
		return
	}

	s.reset()
	st.logger.Info().Int64("chat_id", chatID).Msg("Session reset")
}

// Count returns the number of live sessions
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// EvictIdle purges sessions idle beyond ttl and, when the store still holds
// more than maxSessions, the oldest idle sessions beyond that bound. Sessions
// with a delivery in flight are deferred to the next sweep. Returns the
// number of evicted sessions.
func (st *Store) EvictIdle(ttl time.Duration, maxSessions int) int {
	now := time.Now()
	evicted := 0

	st.mu.Lock()
	for chatID, s := range st.sessions {
		if s.Delivering() {
			continue
		}
		if ttl > 0 && now.Sub(s.LastSeen()) >= ttl {
			delete(st.sessions, chatID)
			evicted++
		}
	}

	if maxSessions > 0 && len(st.sessions) > maxSessions {
		type aged struct {
			chatID int64
			seen   time.Time
		}
		candidates := make([]aged, 0, len(st.sessions))
		for chatID, s := range st.sessions {
			if s.Delivering() {
				continue
			}
			candidates = append(candidates, aged{chatID, s.LastSeen()})
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].seen.Before(candidates[j].seen)
		})

		excess := len(st.sessions) - maxSessions
		for i := 0; i < excess && i < len(candidates); i++ {
			delete(st.sessions, candidates[i].chatID)
			evicted++
		}
	}

	remaining := len(st.sessions)
	st.notifyCountLocked()
	st.mu.Unlock()

	if evicted > 0 {
		st.logger.Info().
			Int("evicted", evicted).
			Int("remaining", remaining).
			Msg("Idle sessions evicted")
	}

	return evicted
}

// notifyCountLocked invokes the count hook. Caller must hold st.mu.
func (st *Store) notifyCountLocked() {
	if st.onCount != nil {
		st.onCount(len(st.sessions))
	}
}
