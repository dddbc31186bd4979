/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements planner.Store and planner.UserStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  planner.UserStore: Account records
  planner.Store:     Sealed entry/notification payloads per user

ENCRYPTION BOUNDARY:
  This package never sees plaintext entries. Payload rows hold the sealed
  bytes produced by the vault; the caller's derived key is needed for every
  load and save, and a wrong key fails at Open, not in SQL.

KEY TABLES:
  users:    Accounts with password verifier and key-derivation parameters
  payloads: One sealed blob per (username, kind), kind is entries|notifications
  backups:  Pre-replace snapshots of sealed entry payloads

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/reserve.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - planner/store.go: Interface definitions
  - planner/store/memory.go: In-memory implementation for testing
  - vault/vault.go: Sealing and key derivation
*/
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/reserve-engine/planner"
	"github.com/warp/reserve-engine/vault"
)

const (
	payloadEntries       = "entries"
	payloadNotifications = "notifications"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		password_hash TEXT NOT NULL,
		enc_salt BLOB NOT NULL,
		enc_iters INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		last_login TEXT
	);

	-- Sealed payloads, one row per user and payload kind
	CREATE TABLE IF NOT EXISTS payloads (
		username TEXT NOT NULL,
		kind TEXT NOT NULL,
		sealed BLOB NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (username, kind),
		FOREIGN KEY (username) REFERENCES users(username) ON DELETE CASCADE
	);

	-- Snapshots taken before destructive entry replaces
	CREATE TABLE IF NOT EXISTS backups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		sealed BLOB NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_backups_username
		ON backups(username, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USER STORE (planner.UserStore interface)
// =============================================================================

// CreateUser inserts a new account. A taken username fails with ErrUserExists.
func (s *Store) CreateUser(u planner.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (username, role, active, password_hash, enc_salt, enc_iters, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		u.Username, string(u.Role), u.Active, u.PasswordHash,
		u.EncSalt, u.EncIters,
		u.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(u.LastLogin),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return planner.ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUser retrieves an account by username.
func (s *Store) FindUser(username string) (planner.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT username, role, active, password_hash, enc_salt, enc_iters, created_at, last_login FROM users WHERE username = ?",
		username,
	)
	return scanUser(row)
}

// ListUsers returns all accounts ordered by username.
func (s *Store) ListUsers() ([]planner.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT username, role, active, password_hash, enc_salt, enc_iters, created_at, last_login FROM users ORDER BY username",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []planner.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser rewrites an account row.
func (s *Store) UpdateUser(u planner.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE users SET role = ?, active = ?, password_hash = ?, enc_salt = ?, enc_iters = ?, last_login = ?
		WHERE username = ?
	`

	res, err := s.db.Exec(query,
		string(u.Role), u.Active, u.PasswordHash, u.EncSalt, u.EncIters,
		nullTime(u.LastLogin), u.Username,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return planner.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes an account; its payloads cascade away with it.
func (s *Store) DeleteUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM users WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return planner.ErrUserNotFound
	}
	_, err = s.db.Exec("DELETE FROM backups WHERE username = ?", username)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (planner.User, error) {
	var (
		u         planner.User
		role      string
		createdAt string
		lastLogin sql.NullString
	)

	err := row.Scan(&u.Username, &role, &u.Active, &u.PasswordHash,
		&u.EncSalt, &u.EncIters, &createdAt, &lastLogin)
	if err == sql.ErrNoRows {
		return planner.User{}, planner.ErrUserNotFound
	}
	if err != nil {
		return planner.User{}, fmt.Errorf("failed to scan user: %w", err)
	}

	u.Role = planner.Role(role)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if lastLogin.Valid {
		t, _ := time.Parse(time.RFC3339, lastLogin.String)
		u.LastLogin = &t
	}
	return u, nil
}

// =============================================================================
// PAYLOAD STORE (planner.Store interface)
// =============================================================================

func (s *Store) SaveEntries(username string, key []byte, records []planner.Record) error {
	return s.savePayload(username, payloadEntries, key, records)
}

func (s *Store) LoadEntries(username string, key []byte) ([]planner.Record, error) {
	var records []planner.Record
	if err := s.loadPayload(username, payloadEntries, key, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []planner.Record{}
	}
	return records, nil
}

func (s *Store) SaveNotifications(username string, key []byte, notes []planner.Notification) error {
	return s.savePayload(username, payloadNotifications, key, notes)
}

func (s *Store) LoadNotifications(username string, key []byte) ([]planner.Notification, error) {
	var notes []planner.Notification
	if err := s.loadPayload(username, payloadNotifications, key, &notes); err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []planner.Notification{}
	}
	return notes, nil
}

// BackupEntries copies the current sealed entries payload into the backups
// table. A user with nothing stored yet is a no-op.
func (s *Store) BackupEntries(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sealed []byte
	err := s.db.QueryRow(
		"SELECT sealed FROM payloads WHERE username = ? AND kind = ?",
		username, payloadEntries,
	).Scan(&sealed)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read payload for backup: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO backups (username, sealed, created_at) VALUES (?, ?, ?)",
		username, sealed, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Rewrap re-seals every payload of the user under newKey, atomically. Either
// all payloads switch keys or none do.
func (s *Store) Rewrap(username string, oldKey, newKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT kind, sealed FROM payloads WHERE username = ?", username)
	if err != nil {
		return err
	}

	resealed := make(map[string][]byte)
	for rows.Next() {
		var kind string
		var sealed []byte
		if err := rows.Scan(&kind, &sealed); err != nil {
			rows.Close()
			return err
		}
		next, err := reseal(oldKey, newKey, sealed)
		if err != nil {
			rows.Close()
			return fmt.Errorf("rewrap %s/%s: %w", username, kind, err)
		}
		resealed[kind] = next
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Backups keep working after a password change.
	backupRows, err := tx.Query("SELECT id, sealed FROM backups WHERE username = ?", username)
	if err != nil {
		return err
	}
	resealedBackups := make(map[int64][]byte)
	for backupRows.Next() {
		var id int64
		var sealed []byte
		if err := backupRows.Scan(&id, &sealed); err != nil {
			backupRows.Close()
			return err
		}
		next, err := reseal(oldKey, newKey, sealed)
		if err != nil {
			backupRows.Close()
			return fmt.Errorf("rewrap %s backup %d: %w", username, id, err)
		}
		resealedBackups[id] = next
	}
	backupRows.Close()
	if err := backupRows.Err(); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for kind, sealed := range resealed {
		if _, err := tx.Exec(
			"UPDATE payloads SET sealed = ?, updated_at = ? WHERE username = ? AND kind = ?",
			sealed, now, username, kind,
		); err != nil {
			return err
		}
	}
	for id, sealed := range resealedBackups {
		if _, err := tx.Exec("UPDATE backups SET sealed = ? WHERE id = ?", sealed, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func reseal(oldKey, newKey, sealed []byte) ([]byte, error) {
	plain, err := vault.Open(oldKey, sealed)
	if err != nil {
		return nil, err
	}
	return vault.Seal(newKey, plain)
}

func (s *Store) savePayload(username, kind string, key []byte, v any) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	sealed, err := vault.Seal(key, plain)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payloads (username, kind, sealed, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username, kind) DO UPDATE SET
			sealed = excluded.sealed,
			updated_at = excluded.updated_at
	`

	_, err = s.db.Exec(query, username, kind, sealed, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save %s payload: %w", kind, err)
	}
	return nil
}

// loadPayload leaves v untouched when the user has no stored payload of
// this kind.
func (s *Store) loadPayload(username, kind string, key []byte, v any) error {
	s.mu.RLock()
	var sealed []byte
	err := s.db.QueryRow(
		"SELECT sealed FROM payloads WHERE username = ? AND kind = ?",
		username, kind,
	).Scan(&sealed)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s payload: %w", kind, err)
	}

	plain, err := vault.Open(key, sealed)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", kind, err)
	}
	return nil
}

// Helper functions

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
