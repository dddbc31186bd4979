/*
handlers.go - HTTP API handlers for the reserve planner

PURPOSE:
  Exposes the planner over REST. Handles HTTP request/response, JSON
  serialization, session auth, and delegates all accrual math to the
  planner and engine packages.

ENDPOINTS:
  Auth:
    POST   /api/auth/register          Create an account
    POST   /api/auth/login             Obtain a bearer token
    POST   /api/auth/logout            Drop the session
    POST   /api/auth/password          Change password (re-seals payloads)

  Entries:
    GET    /api/entries                List entries with computed progress
    POST   /api/entries                Create entry
    PUT    /api/entries/{id}           Update entry
    DELETE /api/entries/{id}           Delete entry

  Planning:
    GET    /api/ledger                 Balance projection (?before=&after=)

  Notifications:
    GET    /api/notifications          List, newest first
    POST   /api/notifications/{id}/read  Mark one as read
    POST   /api/notifications/read-all   Mark all as read

  Data:
    GET    /api/export                 Raw entries as JSON
    POST   /api/import                 Import entries (merge or replace)
    POST   /api/demo                   Replace own entries with demo data

  Admin:
    GET    /api/admin/users            List accounts
    PUT    /api/admin/users/{username}/active  Enable/disable an account
    DELETE /api/admin/users/{username} Delete an account

REFERENCE MONTH:
  All computed values depend on "today" at month granularity. It resolves
  once per request: the ?today=YYYY-MM query parameter if present, else the
  handler clock. Tests pin the clock.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or dead session
  - 403: Deactivated account, missing role
  - 404: Entry or user not found
  - 409: Conflict (username taken, last admin)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - session.go: Token/key management
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/reserve-engine/engine"
	"github.com/warp/reserve-engine/planner"
	"github.com/warp/reserve-engine/vault"
)

const (
	defaultMonthsBefore = 36
	defaultMonthsAfter  = 36
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Users    planner.UserStore
	Data     planner.Store
	Sessions *SessionManager

	Prefs planner.NotifyPrefs
	Rules map[string]planner.Rule

	// Now supplies the wall clock; tests pin it.
	Now func() time.Time
}

// NewHandler creates a handler with default notification settings.
func NewHandler(users planner.UserStore, data planner.Store) *Handler {
	return &Handler{
		Users:    users,
		Data:     data,
		Sessions: NewSessionManager(),
		Prefs:    planner.DefaultNotifyPrefs(),
		Rules:    planner.DefaultRules(),
		Now:      time.Now,
	}
}

// today resolves the reference month for a request.
func (h *Handler) today(r *http.Request) engine.Month {
	if q := r.URL.Query().Get("today"); q != "" {
		if m, err := engine.ParseMonth(q); err == nil {
			return m
		}
	}
	return engine.MonthOf(h.Now())
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Register creates a new account. The first account becomes the admin.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required", nil)
		return
	}

	hash, err := vault.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}
	salt, err := vault.NewSalt()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate salt", err)
		return
	}

	role := planner.RoleUser
	if existing, err := h.Users.ListUsers(); err == nil && len(existing) == 0 {
		role = planner.RoleAdmin
	}

	u := planner.User{
		Username:     req.Username,
		Role:         role,
		Active:       true,
		PasswordHash: hash,
		EncSalt:      salt,
		EncIters:     vault.DefaultIterations,
		CreatedAt:    h.Now().UTC(),
	}
	if err := h.Users.CreateUser(u); err != nil {
		if errors.Is(err, planner.ErrUserExists) {
			writeError(w, http.StatusConflict, "Username already taken", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// Login verifies credentials, derives the payload key, and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	u, err := h.Users.FindUser(strings.TrimSpace(req.Username))
	if err != nil || !vault.VerifyPassword(u.PasswordHash, req.Password) {
		// Same answer for unknown user and wrong password.
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if !u.Active {
		writeError(w, http.StatusForbidden, "Account is deactivated", planner.ErrUserInactive)
		return
	}

	key := vault.DeriveKey(req.Password, u.EncSalt, u.EncIters)
	s := h.Sessions.Create(u.Username, u.Role, key)

	now := h.Now().UTC()
	u.LastLogin = &now
	if err := h.Users.UpdateUser(u); err != nil {
		h.Sessions.Revoke(s.Token)
		writeError(w, http.StatusInternalServerError, "Failed to record login", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:    s.Token,
		Username: u.Username,
		Role:     string(u.Role),
	})
}

// Logout revokes the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	h.Sessions.Revoke(s.Token)
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword re-seals the user's payloads under a key derived from the
// new password and invalidates the old one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "New password is required", nil)
		return
	}

	u, err := h.Users.FindUser(s.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user", err)
		return
	}
	if !vault.VerifyPassword(u.PasswordHash, req.OldPassword) {
		writeError(w, http.StatusUnauthorized, "Old password is wrong", nil)
		return
	}

	hash, err := vault.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}
	salt, err := vault.NewSalt()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate salt", err)
		return
	}
	newKey := vault.DeriveKey(req.NewPassword, salt, u.EncIters)

	// Payloads first: if re-sealing fails, the old password still works.
	if err := h.Data.Rewrap(u.Username, s.Key, newKey); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to re-seal data", err)
		return
	}

	u.PasswordHash = hash
	u.EncSalt = salt
	if err := h.Users.UpdateUser(u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update user", err)
		return
	}

	h.Sessions.Replace(u.Username, newKey)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns all entries with progress, sorted by upcoming due month.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	today := h.today(r)

	records, err := h.Data.LoadEntries(s.Username, s.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load entries", err)
		return
	}

	planner.SortByDueMonth(records, today.Month())

	dtos := make([]EntryDTO, len(records))
	for i, rec := range records {
		dtos[i] = toEntryDTO(rec, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEntry validates and stores a new entry and records a notification.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	today := h.today(r)

	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec := req.record(uuid.NewString())
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry", err)
		return
	}

	records, err := h.Data.LoadEntries(s.Username, s.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load entries", err)
		return
	}
	records = append(records, rec)
	if err := h.Data.SaveEntries(s.Username, s.Key, records); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save entries", err)
		return
	}

	h.appendNotes(s, planner.NoteOnAdd(rec, today, h.Now()))

	writeJSON(w, http.StatusCreated, toEntryDTO(rec, today))
}

// UpdateEntry replaces an entry and records a notification per changed aspect.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	today := h.today(r)
	id := chi.URLParam(r, "id")

	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec := req.record(id)
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry", err)
		return
	}

	records, err := h.Data.LoadEntries(s.Username, s.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load entries", err)
		return
	}

	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Entry not found", planner.ErrRecordNotFound)
		return
	}

	old := records[idx]
	records[idx] = rec
	if err := h.Data.SaveEntries(s.Username, s.Key, records); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save entries", err)
		return
	}

	h.appendNotes(s, planner.NotesOnUpdate(old, rec, h.Prefs, today, h.Now())...)

	writeJSON(w, http.StatusOK, toEntryDTO(rec, today))
}

// DeleteEntry removes an entry.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	today := h.today(r)
	id := chi.URLParam(r, "id")

	records, err := h.Data.LoadEntries(s.Username, s.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load entries", err)
		return
	}

	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Entry not found", planner.ErrRecordNotFound)
		return
	}

	deleted := records[idx]
	records = append(records[:idx], records[idx+1:]...)
	if err := h.Data.SaveEntries(s.Username, s.Key, records); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save entries", err)
		return
	}

	h.appendNotes(s, planner.NoteOnDelete(deleted, today, h.Now()))

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LEDGER HANDLER
// =============================================================================

// GetLedger returns the balance projection around the reference month.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	today := h.today(r)

	before := queryInt(r, "before", defaultMonthsBefore)
	after := queryInt(r, "after", defaultMonthsAfter)
	if before < 0 || after < 0 {
		writeError(w, http.StatusBadRequest, "before and after must not be negative", nil)
		return
	}

	records, err := h.Data.LoadEntries(s.Username, s.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load entries", err)
		return
	}

	points, err := planner.Simulate(records, today, before, after)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute projection", err)
		return
	}

	resp := LedgerResponse{Today: today.String(), Points: make([]LedgerPointDTO, len(points))}
	for i, p := range points {
		balance, _ := p.Balance.Float64()
		resp.Points[i] = LedgerPointDTO{Month: p.Month.String(), Balance: balance}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// ListNotifications returns the user's notifications, newest first. Due
// notices for the current month are refreshed on the way.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	today := h.today(r)

	notes, err := h.refreshDueNotes(s, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load notifications", err)
		return
	}

	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})

	dtos := make([]NotificationDTO, len(notes))
	for i, n := range notes {
		dtos[i] = toNotificationDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkNotificationRead flags a single notification.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	id := chi.URLParam(r, "id")

	notes, err := h.Data.LoadNotifications(s.Username, s.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load notifications", err)
		return
	}

	found := false
	for i := range notes {
		if notes[i].ID == id {
			notes[i].Read = true
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "Notification not found", nil)
		return
	}

	if err := h.Data.SaveNotifications(s.Username, s.Key, notes); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save notifications", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead flags everything.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)

	notes, err := h.Data.LoadNotifications(s.Username, s.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load notifications", err)
		return
	}
	for i := range notes {
		notes[i].Read = true
	}
	if err := h.Data.SaveNotifications(s.Username, s.Key, notes); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save notifications", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// refreshDueNotes adds any missing due notices for the current month plus
// lead-time warnings for upcoming debits and ends, and returns the full list.
func (h *Handler) refreshDueNotes(s Session, today engine.Month) ([]planner.Notification, error) {
	notes, err := h.Data.LoadNotifications(s.Username, s.Key)
	if err != nil {
		return nil, err
	}
	records, err := h.Data.LoadEntries(s.Username, s.Key)
	if err != nil {
		return nil, err
	}

	fresh := planner.MonthlyDueNotes(records, notes, today, h.Now())
	events := planner.EvaluateEvents(records, h.Rules, today, h.Now())
	fresh = append(fresh, planner.DedupeNotes(append(notes, fresh...), events)...)
	if len(fresh) == 0 {
		return notes, nil
	}
	notes = append(notes, fresh...)
	if err := h.Data.SaveNotifications(s.Username, s.Key, notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// appendNotes stores notifications produced as a side effect of an entry
// mutation. Failures are swallowed: the mutation already succeeded and a
// lost notice must not fail the request.
func (h *Handler) appendNotes(s Session, fresh ...planner.Notification) {
	if len(fresh) == 0 {
		return
	}
	notes, err := h.Data.LoadNotifications(s.Username, s.Key)
	if err != nil {
		return
	}
	h.Data.SaveNotifications(s.Username, s.Key, append(notes, fresh...))
}

// =============================================================================
// IMPORT / EXPORT HANDLERS
// =============================================================================

// ExportEntries returns the raw stored entries.
func (h *Handler) ExportEntries(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)

	records, err := h.Data.LoadEntries(s.Username, s.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load entries", err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Entries: records})
}

// ImportEntries merges or replaces the stored entries. A replace snapshots
// the previous payload first.
func (h *Handler) ImportEntries(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	for _, rec := range req.Entries {
		if err := rec.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid entry in import", err)
			return
		}
	}

	current, err := h.Data.LoadEntries(s.Username, s.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load entries", err)
		return
	}

	if req.Replace {
		if err := h.Data.BackupEntries(s.Username); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to back up entries", err)
			return
		}
	}

	merged := planner.MergeRecords(current, req.Entries, req.Replace)
	if err := h.Data.SaveEntries(s.Username, s.Key, merged); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save entries", err)
		return
	}

	writeJSON(w, http.StatusOK, ImportResponse{Count: len(merged)})
}

// LoadDemoData replaces the user's entries with the demo set.
func (h *Handler) LoadDemoData(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	today := h.today(r)

	if err := h.Data.BackupEntries(s.Username); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to back up entries", err)
		return
	}

	records := planner.DemoRecords(today.Year())
	if err := h.Data.SaveEntries(s.Username, s.Key, records); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save entries", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Count: len(records)})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ListUsers returns all accounts.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetUserActive enables or disables an account. Disabling kills the user's
// live sessions.
func (h *Handler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	u, err := h.Users.FindUser(username)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	if !req.Active {
		if err := h.guardLastAdmin(u); err != nil {
			writeError(w, http.StatusConflict, "Cannot deactivate the last admin", nil)
			return
		}
	}

	u.Active = req.Active
	if err := h.Users.UpdateUser(u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update user", err)
		return
	}
	if !req.Active {
		h.Sessions.RevokeUser(username)
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// DeleteUser removes an account and its data.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	username := chi.URLParam(r, "username")

	if username == s.Username {
		writeError(w, http.StatusBadRequest, "Cannot delete your own account", planner.ErrSelfDelete)
		return
	}

	u, err := h.Users.FindUser(username)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if err := h.guardLastAdmin(u); err != nil {
		writeError(w, http.StatusConflict, "Cannot delete the last admin", nil)
		return
	}

	if err := h.Users.DeleteUser(username); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete user", err)
		return
	}
	h.Sessions.RevokeUser(username)
	w.WriteHeader(http.StatusNoContent)
}

// guardLastAdmin fails when removing or disabling u would leave no active
// admin behind.
func (h *Handler) guardLastAdmin(u planner.User) error {
	if u.Role != planner.RoleAdmin {
		return nil
	}
	users, err := h.Users.ListUsers()
	if err != nil {
		return err
	}
	for _, other := range users {
		if other.Username != u.Username && other.Role == planner.RoleAdmin && other.Active {
			return nil
		}
	}
	return planner.ErrLastAdmin
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func queryInt(r *http.Request, name string, fallback int) int {
	q := r.URL.Query().Get(name)
	if q == "" {
		return fallback
	}
	n, err := strconv.Atoi(q)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
