/*
memory.go - In-memory store for tests and ephemeral deployments

PURPOSE:
  Implements planner.Store and planner.UserStore entirely in process memory.
  Payloads are still sealed exactly like the durable store seals them, so the
  encryption path is exercised even in tests. Nothing survives a restart.
*/
package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/warp/reserve-engine/planner"
	"github.com/warp/reserve-engine/vault"
)

const (
	payloadEntries       = "entries"
	payloadNotifications = "notifications"
)

// Memory holds sealed payloads keyed by username and payload kind.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]planner.User
	payloads map[string]map[string][]byte
	backups  map[string][][]byte
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]planner.User),
		payloads: make(map[string]map[string][]byte),
		backups:  make(map[string][][]byte),
	}
}

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) CreateUser(u planner.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return planner.ErrUserExists
	}
	m.users[u.Username] = u
	return nil
}

func (m *Memory) FindUser(username string) (planner.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return planner.User{}, planner.ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) ListUsers() ([]planner.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]planner.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *Memory) UpdateUser(u planner.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; !ok {
		return planner.ErrUserNotFound
	}
	m.users[u.Username] = u
	return nil
}

func (m *Memory) DeleteUser(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return planner.ErrUserNotFound
	}
	delete(m.users, username)
	delete(m.payloads, username)
	delete(m.backups, username)
	return nil
}

// =============================================================================
// PAYLOADS
// =============================================================================

func (m *Memory) SaveEntries(username string, key []byte, records []planner.Record) error {
	return m.savePayload(username, payloadEntries, key, records)
}

func (m *Memory) LoadEntries(username string, key []byte) ([]planner.Record, error) {
	var records []planner.Record
	if err := m.loadPayload(username, payloadEntries, key, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []planner.Record{}
	}
	return records, nil
}

func (m *Memory) SaveNotifications(username string, key []byte, notes []planner.Notification) error {
	return m.savePayload(username, payloadNotifications, key, notes)
}

func (m *Memory) LoadNotifications(username string, key []byte) ([]planner.Notification, error) {
	var notes []planner.Notification
	if err := m.loadPayload(username, payloadNotifications, key, &notes); err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []planner.Notification{}
	}
	return notes, nil
}

func (m *Memory) BackupEntries(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sealed, ok := m.payloads[username][payloadEntries]
	if !ok {
		return nil
	}
	snapshot := make([]byte, len(sealed))
	copy(snapshot, sealed)
	m.backups[username] = append(m.backups[username], snapshot)
	return nil
}

func (m *Memory) Rewrap(username string, oldKey, newKey []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for kind, sealed := range m.payloads[username] {
		plain, err := vault.Open(oldKey, sealed)
		if err != nil {
			return fmt.Errorf("rewrap %s/%s: %w", username, kind, err)
		}
		resealed, err := vault.Seal(newKey, plain)
		if err != nil {
			return fmt.Errorf("rewrap %s/%s: %w", username, kind, err)
		}
		m.payloads[username][kind] = resealed
	}
	// Backups keep working after a password change.
	for i, sealed := range m.backups[username] {
		plain, err := vault.Open(oldKey, sealed)
		if err != nil {
			return fmt.Errorf("rewrap %s backup: %w", username, err)
		}
		resealed, err := vault.Seal(newKey, plain)
		if err != nil {
			return fmt.Errorf("rewrap %s backup: %w", username, err)
		}
		m.backups[username][i] = resealed
	}
	return nil
}

func (m *Memory) savePayload(username, kind string, key []byte, v any) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	sealed, err := vault.Seal(key, plain)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.payloads[username] == nil {
		m.payloads[username] = make(map[string][]byte)
	}
	m.payloads[username][kind] = sealed
	return nil
}

// loadPayload leaves v untouched when the user has no stored payload of
// this kind.
func (m *Memory) loadPayload(username, kind string, key []byte, v any) error {
	m.mu.RLock()
	sealed, ok := m.payloads[username][kind]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	plain, err := vault.Open(key, sealed)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return nil
}
