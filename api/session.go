/*
session.go - Bearer-token sessions holding derived encryption keys

PURPOSE:
  Login produces an opaque token mapped to the user's identity plus the
  payload key derived from the password at login time. The key exists only
  here, in process memory, for the lifetime of the session; stores hold
  ciphertext and the password verifier only.

TOKEN FORMAT:
  Random UUIDs. Nothing is encoded in the token itself.

SEE ALSO:
  - vault/vault.go: Key derivation
  - handlers.go: Login/logout and the auth middleware
*/
package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/reserve-engine/planner"
)

// Session is an authenticated user with their in-memory payload key.
type Session struct {
	Token     string
	Username  string
	Role      planner.Role
	Key       []byte
	CreatedAt time.Time
}

// SessionManager tracks live sessions by token.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]Session)}
}

// Create registers a session and returns its token.
func (sm *SessionManager) Create(username string, role planner.Role, key []byte) Session {
	s := Session{
		Token:     uuid.NewString(),
		Username:  username,
		Role:      role,
		Key:       key,
		CreatedAt: time.Now(),
	}
	sm.mu.Lock()
	sm.sessions[s.Token] = s
	sm.mu.Unlock()
	return s
}

// Get resolves a token to its session.
func (sm *SessionManager) Get(token string) (Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[token]
	return s, ok
}

// Revoke drops one session.
func (sm *SessionManager) Revoke(token string) {
	sm.mu.Lock()
	delete(sm.sessions, token)
	sm.mu.Unlock()
}

// RevokeUser drops every session of a user. Called on password change and
// account deactivation so stale keys stop working immediately.
func (sm *SessionManager) RevokeUser(username string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for token, s := range sm.sessions {
		if s.Username == username {
			delete(sm.sessions, token)
		}
	}
}

// Replace swaps the payload key of every live session of a user.
func (sm *SessionManager) Replace(username string, key []byte) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for token, s := range sm.sessions {
		if s.Username == username {
			s.Key = key
			sm.sessions[token] = s
		}
	}
}

// Each visits a snapshot of all live sessions. Used by the notification
// scheduler, which can only refresh users whose keys are in memory.
func (sm *SessionManager) Each(fn func(Session)) {
	sm.mu.RLock()
	snapshot := make([]Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		snapshot = append(snapshot, s)
	}
	sm.mu.RUnlock()

	for _, s := range snapshot {
		fn(s)
	}
}
