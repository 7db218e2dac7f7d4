package api

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"srokagri.com/khmer-agri-chat/internal/core"
)

const sessionCookieName = "session_id"

// SessionManager keeps the per-connection conversational state (the active
// chat pin and its serializing mutex) keyed by a session cookie. State lives
// in process memory; losing it only unpins active chats, the durable history
// stays in the store.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*core.Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*core.Session)}
}

// Ensure returns the session for the request, creating one and setting the
// cookie when the request carries none (or an unknown id).
func (m *SessionManager) Ensure(w http.ResponseWriter, r *http.Request) *core.Session {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		m.mu.Lock()
		sess, ok := m.sessions[cookie.Value]
		m.mu.Unlock()
		if ok {
			return sess
		}
	}

	id := uuid.NewString()
	sess := &core.Session{}
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}
