package chat

import (
	"sync"
	"time"

	"docgpt-backend/internal/llm"
	"docgpt-backend/internal/loaders"

	"github.com/google/uuid"
)

type State string

const (
	NoActiveChat State = "no_active_chat"
	Loading      State = "loading"
	Bound        State = "bound"
)

// binding is what a bound session holds for its active chat.
type binding struct {
	chatID       uuid.UUID
	docType      loaders.DocumentType
	systemPrompt string
	agent        llm.Agent
	memory       *Memory
}

// sessionState is the chat state of one authenticated session. mu is held for
// the whole of each operation, so a session handles one interaction at a time.
type sessionState struct {
	mu      sync.Mutex
	state   State
	binding *binding
}

func (s *sessionState) bind(b *binding) {
	s.state = Bound
	s.binding = b
}

func (s *sessionState) reset() {
	s.state = NoActiveChat
	s.binding = nil
}

type sessionEntry struct {
	session      *sessionState
	lastAccessed time.Time
}

// SessionCache holds chat state per auth session, evicting the least recently
// used session when full. An evicted session starts again with no active chat.
type SessionCache struct {
	lock     sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
	maxSize  int
}

func NewSessionCache(maxSize int) *SessionCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &SessionCache{
		sessions: make(map[uuid.UUID]*sessionEntry, maxSize),
		maxSize:  maxSize,
	}
}

func (cache *SessionCache) Get(sessionID uuid.UUID) *sessionState {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	if entry, exists := cache.sessions[sessionID]; exists {
		entry.lastAccessed = time.Now()
		return entry.session
	}

	if len(cache.sessions) >= cache.maxSize {
		oldestSessionID := uuid.Nil
		var oldestTime time.Time
		for id, entry := range cache.sessions {
			if oldestSessionID == uuid.Nil || entry.lastAccessed.Before(oldestTime) {
				oldestSessionID = id
				oldestTime = entry.lastAccessed
			}
		}
		delete(cache.sessions, oldestSessionID)
	}

	session := &sessionState{state: NoActiveChat}
	cache.sessions[sessionID] = &sessionEntry{session: session, lastAccessed: time.Now()}
	return session
}

// Peek returns the session's state without creating or touching it.
func (cache *SessionCache) Peek(sessionID uuid.UUID) (*sessionState, bool) {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	entry, exists := cache.sessions[sessionID]
	if !exists {
		return nil, false
	}
	return entry.session, true
}

func (cache *SessionCache) Remove(sessionID uuid.UUID) {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	delete(cache.sessions, sessionID)
}

func (cache *SessionCache) Len() int {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	return len(cache.sessions)
}
