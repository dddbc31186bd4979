/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Wire-level types for JSON serialization. Keeps HTTP concerns out of the
  planner package; handlers translate between these DTOs and planner types.

CONVENTIONS:
  - Months travel as "YYYY-MM" strings
  - Monetary values travel as JSON numbers, computed values with the
    precision the engine produced
  - snake_case field names throughout

SEE ALSO:
  - handlers.go: Where these are populated
  - planner/record.go: The domain type behind EntryDTO
*/
package api

import (
	"time"

	"github.com/warp/reserve-engine/engine"
	"github.com/warp/reserve-engine/planner"
)

// =============================================================================
// AUTH
// =============================================================================

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// =============================================================================
// ENTRIES
// =============================================================================

// EntryDTO is a stored record plus its computed saving state as of the
// request's reference month.
type EntryDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Amount      float64 `json:"amount"`
	Account     string  `json:"account,omitempty"`
	Category    string  `json:"category,omitempty"`
	Cycle       string  `json:"cycle"`
	CustomCycle int     `json:"custom_cycle,omitempty"`
	DueMonth    int     `json:"due_month"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date,omitempty"`

	MonthlyRate float64 `json:"monthly_rate"`
	Percent     float64 `json:"percent"`
	Saved       float64 `json:"saved"`
	NextDue     string  `json:"next_due,omitempty"`
	NotStarted  string  `json:"not_started,omitempty"`
}

// EntryRequest is the write shape for create and update.
type EntryRequest struct {
	Name        string  `json:"name"`
	Amount      float64 `json:"amount"`
	Account     string  `json:"account"`
	Category    string  `json:"category"`
	Cycle       string  `json:"cycle"`
	CustomCycle int     `json:"custom_cycle"`
	DueMonth    int     `json:"due_month"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
}

func (req EntryRequest) record(id string) planner.Record {
	return planner.Record{
		ID:          id,
		Name:        req.Name,
		Amount:      req.Amount,
		Account:     req.Account,
		Category:    req.Category,
		Cycle:       req.Cycle,
		CustomCycle: req.CustomCycle,
		DueMonth:    req.DueMonth,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
}

func toEntryDTO(r planner.Record, today engine.Month) EntryDTO {
	dto := EntryDTO{
		ID:          r.ID,
		Name:        r.Name,
		Amount:      r.Amount,
		Account:     r.Account,
		Category:    r.Category,
		Cycle:       r.Cycle,
		CustomCycle: r.CustomCycle,
		DueMonth:    r.DueMonth,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
	}

	if p, err := planner.Progress(r, today); err == nil {
		dto.Percent, _ = p.Percent.Float64()
		dto.Saved, _ = p.Saved.Float64()
		dto.MonthlyRate, _ = p.Rate.Float64()
		if p.NotStarted != nil {
			dto.NotStarted = p.NotStarted.String()
		}
	}
	if due, ok, err := planner.NextDue(r, today); err == nil && ok {
		dto.NextDue = due.String()
	}
	return dto
}

// =============================================================================
// LEDGER
// =============================================================================

type LedgerPointDTO struct {
	Month   string  `json:"month"`
	Balance float64 `json:"balance"`
}

type LedgerResponse struct {
	Today  string           `json:"today"`
	Points []LedgerPointDTO `json:"points"`
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationDTO struct {
	ID             string `json:"id"`
	EntryID        string `json:"entry_id"`
	Type           string `json:"type"`
	EffectiveMonth string `json:"effective_month"`
	Text           string `json:"text"`
	Read           bool   `json:"read"`
	CreatedAt      string `json:"created_at"`
}

func toNotificationDTO(n planner.Notification) NotificationDTO {
	return NotificationDTO{
		ID:             n.ID,
		EntryID:        n.EntryID,
		Type:           string(n.Type),
		EffectiveMonth: n.EffectiveMonth,
		Text:           n.Text,
		Read:           n.Read,
		CreatedAt:      n.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// IMPORT / EXPORT
// =============================================================================

type ImportRequest struct {
	Entries []planner.Record `json:"entries"`
	Replace bool             `json:"replace"`
}

type ImportResponse struct {
	Count int `json:"count"`
}

type ExportResponse struct {
	Entries []planner.Record `json:"entries"`
}

// =============================================================================
// USERS (admin)
// =============================================================================

type UserDTO struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	LastLogin string `json:"last_login,omitempty"`
}

func toUserDTO(u planner.User) UserDTO {
	dto := UserDTO{
		Username:  u.Username,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	if u.LastLogin != nil {
		dto.LastLogin = u.LastLogin.Format(time.RFC3339)
	}
	return dto
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
