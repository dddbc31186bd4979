/*
store.go - Storage contracts for user accounts and encrypted payloads

PURPOSE:
  Defines the interfaces the API layer depends on. Implementations live in
  planner/store (in-memory) and store/sqlite (durable). Entry and notification
  payloads are sealed with a per-user key derived from the login password;
  stores only ever see ciphertext, which is why every payload method takes the
  caller's key.

SEE ALSO:
  vault/vault.go for key derivation and sealing.
*/
package planner

import "time"

// =============================================================================
// USERS
// =============================================================================

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an account record. EncSalt and EncIters parameterize the key
// derivation for this user's payloads; PasswordHash is a self-describing
// verifier string and never a key.
type User struct {
	Username     string     `json:"username"`
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	PasswordHash string     `json:"-"`
	EncSalt      []byte     `json:"-"`
	EncIters     int        `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// UserStore manages accounts. Usernames are unique; CreateUser returns
// ErrUserExists on collision and FindUser returns ErrUserNotFound for
// unknown names.
type UserStore interface {
	CreateUser(u User) error
	FindUser(username string) (User, error)
	ListUsers() ([]User, error)
	UpdateUser(u User) error
	DeleteUser(username string) error
}

// =============================================================================
// PAYLOADS
// =============================================================================

// Store persists a user's entries and notifications as sealed blobs.
// Load methods on a user with no stored payload return empty slices, not an
// error; a key that fails to open an existing payload is an error.
type Store interface {
	SaveEntries(username string, key []byte, records []Record) error
	LoadEntries(username string, key []byte) ([]Record, error)
	SaveNotifications(username string, key []byte, notes []Notification) error
	LoadNotifications(username string, key []byte) ([]Notification, error)

	// BackupEntries snapshots the current sealed entries payload before a
	// destructive replace. Retention is the implementation's concern.
	BackupEntries(username string) error

	// Rewrap re-seals every payload for the user under a new key. Used on
	// password change so the old password stops opening the data.
	Rewrap(username string, oldKey, newKey []byte) error
}
