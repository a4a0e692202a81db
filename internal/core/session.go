package core

import (
	"sync"

	"github.com/novalabs-ai/nova-chat/internal/store"
)

// DefaultSessionID is the session used by callers that do not identify
// themselves. All such callers share one conversation history.
const DefaultSessionID = "default"

// Session scopes a conversation history. The document index is deliberately
// not per-session: every session queries the same shared corpus.
type Session struct {
	ID      string
	History *History
}

// SessionManager hands out sessions by identifier, creating them lazily.
type SessionManager struct {
	dbStore *store.SQLiteStore

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionManager(dbStore *store.SQLiteStore) *SessionManager {
	return &SessionManager{
		dbStore:  dbStore,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for the given identifier, falling back to the
// shared default session when the identifier is empty.
func (m *SessionManager) Get(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		return sess
	}
	sess := &Session{
		ID:      id,
		History: NewHistory(m.dbStore, id),
	}
	m.sessions[id] = sess
	return sess
}
