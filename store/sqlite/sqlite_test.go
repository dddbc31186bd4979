/*
sqlite_test.go - SQLite store behavior against an in-memory database
*/
package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/reserve-engine/planner"
	"github.com/warp/reserve-engine/vault"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testKey(password string) []byte {
	return vault.DeriveKey(password, []byte("0123456789abcdef"), 1000)
}

func testUser(username string) planner.User {
	return planner.User{
		Username:     username,
		Role:         planner.RoleUser,
		Active:       true,
		PasswordHash: "pbkdf2$1000$c2FsdA==$ZGs=",
		EncSalt:      []byte("0123456789abcdef"),
		EncIters:     1000,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLite_UserLifecycle(t *testing.T) {
	s := newTestStore(t)

	u := testUser("alice")
	require.NoError(t, s.CreateUser(u))
	assert.ErrorIs(t, s.CreateUser(u), planner.ErrUserExists)

	got, err := s.FindUser("alice")
	require.NoError(t, err)
	assert.Equal(t, planner.RoleUser, got.Role)
	assert.True(t, got.Active)
	assert.Equal(t, u.EncSalt, got.EncSalt)
	assert.Equal(t, 1000, got.EncIters)
	assert.Nil(t, got.LastLogin)

	// Last login survives an update roundtrip.
	now := time.Now().UTC().Truncate(time.Second)
	got.LastLogin = &now
	got.Active = false
	require.NoError(t, s.UpdateUser(got))

	got, err = s.FindUser("alice")
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(now))

	require.NoError(t, s.DeleteUser("alice"))
	_, err = s.FindUser("alice")
	assert.ErrorIs(t, err, planner.ErrUserNotFound)
	assert.ErrorIs(t, s.UpdateUser(u), planner.ErrUserNotFound)
	assert.ErrorIs(t, s.DeleteUser("alice"), planner.ErrUserNotFound)
}

func TestSQLite_ListUsersOrdered(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(testUser("zoe")))
	require.NoError(t, s.CreateUser(testUser("adam")))

	users, err := s.ListUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "adam", users[0].Username)
	assert.Equal(t, "zoe", users[1].Username)
}

func TestSQLite_EntriesRoundtrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(testUser("alice")))
	key := testKey("pw")

	records, err := s.LoadEntries("alice", key)
	require.NoError(t, err)
	assert.Empty(t, records)

	saved := []planner.Record{{
		ID: "r1", Name: "Car insurance", Amount: 600,
		Cycle: "annual", DueMonth: 12, StartDate: "2025-01",
	}}
	require.NoError(t, s.SaveEntries("alice", key, saved))

	records, err = s.LoadEntries("alice", key)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Car insurance", records[0].Name)

	// Saving again replaces, not appends.
	require.NoError(t, s.SaveEntries("alice", key, append(saved, planner.Record{ID: "r2", Name: "X"})))
	records, err = s.LoadEntries("alice", key)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSQLite_WrongKeyCannotLoad(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(testUser("alice")))
	require.NoError(t, s.SaveEntries("alice", testKey("pw"), []planner.Record{{ID: "r1"}}))

	_, err := s.LoadEntries("alice", testKey("other"))
	assert.Error(t, err)
}

func TestSQLite_NotificationsRoundtrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(testUser("alice")))
	key := testKey("pw")

	notes := []planner.Notification{{
		ID: "n1", EntryID: "r1", Type: planner.NoteDue,
		EffectiveMonth: "2025-09", Text: "due", CreatedAt: time.Now().UTC(),
	}}
	require.NoError(t, s.SaveNotifications("alice", key, notes))

	got, err := s.LoadNotifications("alice", key)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, planner.NoteDue, got[0].Type)
}

func TestSQLite_RewrapSwitchesKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(testUser("alice")))
	oldKey, newKey := testKey("old"), testKey("new")

	require.NoError(t, s.SaveEntries("alice", oldKey, []planner.Record{{ID: "r1"}}))
	require.NoError(t, s.SaveNotifications("alice", oldKey, []planner.Notification{{ID: "n1"}}))

	require.NoError(t, s.Rewrap("alice", oldKey, newKey))

	records, err := s.LoadEntries("alice", newKey)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	notes, err := s.LoadNotifications("alice", newKey)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	_, err = s.LoadEntries("alice", oldKey)
	assert.Error(t, err)
}

func TestSQLite_RewrapCoversBackups(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(testUser("alice")))
	oldKey, newKey := testKey("old"), testKey("new")

	require.NoError(t, s.SaveEntries("alice", oldKey, []planner.Record{{ID: "r1", Name: "Old"}}))
	require.NoError(t, s.BackupEntries("alice"))

	require.NoError(t, s.Rewrap("alice", oldKey, newKey))

	var sealed []byte
	require.NoError(t, s.db.QueryRow("SELECT sealed FROM backups WHERE username = ?", "alice").Scan(&sealed))
	plain, err := vault.Open(newKey, sealed)
	require.NoError(t, err)
	assert.Contains(t, string(plain), "Old")
}

func TestSQLite_RewrapWrongOldKeyLeavesDataIntact(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(testUser("alice")))
	key := testKey("pw")
	require.NoError(t, s.SaveEntries("alice", key, []planner.Record{{ID: "r1"}}))

	require.Error(t, s.Rewrap("alice", testKey("bogus"), testKey("new")))

	// The original key still opens the payload.
	records, err := s.LoadEntries("alice", key)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLite_BackupEntries(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(testUser("alice")))
	key := testKey("pw")

	// Nothing stored yet: no-op, no error.
	require.NoError(t, s.BackupEntries("alice"))

	require.NoError(t, s.SaveEntries("alice", key, []planner.Record{{ID: "r1", Name: "Old"}}))
	require.NoError(t, s.BackupEntries("alice"))
	require.NoError(t, s.SaveEntries("alice", key, []planner.Record{{ID: "r2", Name: "New"}}))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM backups WHERE username = ?", "alice").Scan(&count))
	assert.Equal(t, 1, count)

	// The backup row still opens with the same key and holds the old state.
	var sealed []byte
	require.NoError(t, s.db.QueryRow("SELECT sealed FROM backups WHERE username = ?", "alice").Scan(&sealed))
	plain, err := vault.Open(key, sealed)
	require.NoError(t, err)
	assert.Contains(t, string(plain), "Old")
}

func TestSQLite_DeleteUserRemovesPayloads(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(testUser("alice")))
	key := testKey("pw")
	require.NoError(t, s.SaveEntries("alice", key, []planner.Record{{ID: "r1"}}))
	require.NoError(t, s.BackupEntries("alice"))

	require.NoError(t, s.DeleteUser("alice"))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM payloads").Scan(&count))
	assert.Zero(t, count)
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM backups").Scan(&count))
	assert.Zero(t, count)
}
