/*
notify.go - Notification generation for obligation changes and due dates

PURPOSE:
  Produces the notification records stored alongside a user's entries:
  diffs between an old and a new version of a record (rate, due date, amount,
  cycle), lifecycle events (added, deleted), a deduplicated monthly notice
  when an obligation's debit lands in the current month, and lead-time
  warnings for upcoming dues and contract ends.

DETERMINISM:
  Builders take the reference month and wall-clock timestamp as parameters;
  nothing here reads the clock, so tests and the API layer control time.

TEXT:
  Texts are plain English templates. Locale and currency formatting are the
  rendering layer's concern; amounts are embedded with two decimals and no
  currency symbol.
*/
package planner

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/reserve-engine/engine"
)

// =============================================================================
// NOTIFICATION RECORD
// =============================================================================

type NotificationType string

const (
	NoteNewEntry      NotificationType = "new_entry"
	NoteRateChanged   NotificationType = "rate_changed"
	NoteDueChanged    NotificationType = "due_changed"
	NoteAmountChanged NotificationType = "amount_changed"
	NoteCycleChanged  NotificationType = "cycle_changed"
	NoteEntryDeleted  NotificationType = "entry_deleted"
	NoteDue           NotificationType = "due"
	NoteDueUpcoming   NotificationType = "due_upcoming"
	NoteEndUpcoming   NotificationType = "end_upcoming"
)

type Notification struct {
	ID             string           `json:"id"`
	EntryID        string           `json:"entry_id"`
	Type           NotificationType `json:"type"`
	EffectiveMonth string           `json:"effective_month"`
	Text           string           `json:"text"`
	Read           bool             `json:"read"`
	CreatedAt      time.Time        `json:"created_at"`
}

func newNote(entryID string, typ NotificationType, month engine.Month, text string, now time.Time) Notification {
	return Notification{
		ID:             uuid.NewString(),
		EntryID:        entryID,
		Type:           typ,
		EffectiveMonth: month.String(),
		Text:           text,
		CreatedAt:      now,
	}
}

// NotifyPrefs toggles the per-event update notifications.
type NotifyPrefs struct {
	RateChanged   bool
	DueChanged    bool
	AmountChanged bool
	CycleChanged  bool
}

func DefaultNotifyPrefs() NotifyPrefs {
	return NotifyPrefs{RateChanged: true, DueChanged: true, AmountChanged: true, CycleChanged: true}
}

// =============================================================================
// LIFECYCLE AND DIFF BUILDERS
// =============================================================================

// NoteOnAdd announces a newly created entry with its steady rate and next due.
func NoteOnAdd(r Record, today engine.Month, now time.Time) Notification {
	text := fmt.Sprintf("New entry %s: set aside %s per month toward %s due %s.",
		r.Name, MonthlyRate(r).StringFixed(2), amountText(r.Amount), nextDueText(r, today))
	return newNote(r.ID, NoteNewEntry, today, text, now)
}

// NotesOnUpdate diffs two versions of a record and emits one notification per
// changed aspect the preferences allow.
func NotesOnUpdate(old, updated Record, prefs NotifyPrefs, today engine.Month, now time.Time) []Notification {
	var notes []Notification

	oldRate, newRate := MonthlyRate(old), MonthlyRate(updated)
	if prefs.RateChanged && !oldRate.Equal(newRate) {
		text := fmt.Sprintf("Monthly rate for %s changed from %s to %s.",
			updated.Name, oldRate.StringFixed(2), newRate.StringFixed(2))
		notes = append(notes, newNote(updated.ID, NoteRateChanged, today, text, now))
	}

	oldDue, newDue := nextDueText(old, today), nextDueText(updated, today)
	if prefs.DueChanged && oldDue != newDue {
		text := fmt.Sprintf("Next due date for %s moved from %s to %s.", updated.Name, oldDue, newDue)
		notes = append(notes, newNote(updated.ID, NoteDueChanged, today, text, now))
	}

	if prefs.AmountChanged && old.Amount != updated.Amount {
		text := fmt.Sprintf("Amount for %s changed from %s to %s.",
			updated.Name, amountText(old.Amount), amountText(updated.Amount))
		notes = append(notes, newNote(updated.ID, NoteAmountChanged, today, text, now))
	}

	if prefs.CycleChanged && (old.Cycle != updated.Cycle || old.CustomCycle != updated.CustomCycle) {
		text := fmt.Sprintf("Cycle for %s changed from every %d months to every %d months.",
			updated.Name, ParseCycle(old.Cycle, old.CustomCycle).Months(),
			ParseCycle(updated.Cycle, updated.CustomCycle).Months())
		notes = append(notes, newNote(updated.ID, NoteCycleChanged, today, text, now))
	}

	return notes
}

// NoteOnDelete records that an entry was removed.
func NoteOnDelete(r Record, today engine.Month, now time.Time) Notification {
	return newNote(r.ID, NoteEntryDeleted, today,
		fmt.Sprintf("Entry %s was deleted.", r.Name), now)
}

// =============================================================================
// MONTHLY DUE NOTICES
// =============================================================================

// MonthlyDueNotes returns a notice for every record whose debit lands in the
// current month, skipping any (entry, month, type) combination that already
// exists. Safe to re-run any number of times within a month.
func MonthlyDueNotes(records []Record, existing []Notification, today engine.Month, now time.Time) []Notification {
	seen := make(map[string]bool, len(existing))
	for _, n := range existing {
		seen[noteKey(n)] = true
	}

	var notes []Notification
	for _, r := range records {
		due, ok, err := NextDue(r, today)
		if err != nil || !ok || !due.Equal(today) {
			continue
		}
		if seen[r.ID+"|"+today.String()+"|"+string(NoteDue)] {
			continue
		}
		text := fmt.Sprintf("%s is due this month: %s will be debited in %s. The monthly rate was %s.",
			r.Name, amountText(r.Amount), monthText(due), MonthlyRate(r).StringFixed(2))
		notes = append(notes, newNote(r.ID, NoteDue, today, text, now))
	}
	return notes
}

// =============================================================================
// LEAD-TIME EVENT RULES
// =============================================================================

// Rule enables one class of upcoming-event notification with a lead time.
type Rule struct {
	ID       string
	Enabled  bool
	LeadDays int
}

const (
	RuleDueUpcoming = "due_upcoming"
	RuleEndUpcoming = "end_upcoming"
)

func DefaultRules() map[string]Rule {
	return map[string]Rule{
		RuleDueUpcoming: {ID: RuleDueUpcoming, Enabled: true, LeadDays: 14},
		RuleEndUpcoming: {ID: RuleEndUpcoming, Enabled: true, LeadDays: 30},
	}
}

// EvaluateEvents produces lead-time warnings for upcoming debits and contract
// ends. Distances are approximated at 30 days per month, matching the
// month-granularity model.
func EvaluateEvents(records []Record, rules map[string]Rule, today engine.Month, now time.Time) []Notification {
	var notes []Notification
	for _, r := range records {
		if rule, ok := rules[RuleDueUpcoming]; ok && rule.Enabled {
			if due, ok, err := NextDue(r, today); err == nil && ok {
				days := engine.MonthsBetween(today, due) * 30
				if days >= 0 && days <= rule.LeadDays {
					text := fmt.Sprintf("Upcoming debit for %s: %s due %s.",
						r.Name, amountText(r.Amount), monthText(due))
					notes = append(notes, newNote(r.ID, NoteDueUpcoming, today, text, now))
				}
			}
		}
		if rule, ok := rules[RuleEndUpcoming]; ok && rule.Enabled && r.EndDate != "" {
			if end, err := engine.ParseMonth(r.EndDate); err == nil {
				days := engine.MonthsBetween(today, end) * 30
				if days >= 0 && days <= rule.LeadDays {
					text := fmt.Sprintf("Contract %s ends %s; remaining reserve will be released.",
						r.Name, monthText(end))
					notes = append(notes, newNote(r.ID, NoteEndUpcoming, today, text, now))
				}
			}
		}
	}
	return notes
}

// DedupeNotes drops candidates whose (entry, month, type) combination already
// exists, so a periodic refresh stays idempotent.
func DedupeNotes(existing, candidates []Notification) []Notification {
	seen := make(map[string]bool, len(existing))
	for _, n := range existing {
		seen[noteKey(n)] = true
	}
	var out []Notification
	for _, n := range candidates {
		if seen[noteKey(n)] {
			continue
		}
		seen[noteKey(n)] = true
		out = append(out, n)
	}
	return out
}

func noteKey(n Notification) string {
	return n.EntryID + "|" + n.EffectiveMonth + "|" + string(n.Type)
}

// =============================================================================
// TEXT HELPERS
// =============================================================================

func amountText(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

func monthText(m engine.Month) string {
	return m.Time.Format("January 2006")
}

// nextDueText renders the next debit month, or "none" once no debit remains.
func nextDueText(r Record, today engine.Month) string {
	due, ok, err := NextDue(r, today)
	if err != nil || !ok {
		return "none"
	}
	return monthText(due)
}
