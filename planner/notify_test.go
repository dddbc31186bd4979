/*
notify_test.go - Notification builders and dedupe behavior
*/
package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noteNow = time.Date(2025, time.September, 14, 12, 0, 0, 0, time.UTC)

func TestNoteOnAdd(t *testing.T) {
	r := record("r1", 600, "annual", 12, "2025-01")
	n := NoteOnAdd(r, month(2025, 9), noteNow)

	assert.Equal(t, NoteNewEntry, n.Type)
	assert.Equal(t, "r1", n.EntryID)
	assert.Equal(t, "2025-09", n.EffectiveMonth)
	assert.Contains(t, n.Text, "50.00")
	assert.Contains(t, n.Text, "December 2025")
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Read)
}

func TestNotesOnUpdate_OneNotePerChangedAspect(t *testing.T) {
	// GIVEN an entry whose amount was raised, which also changes the rate
	old := record("r1", 600, "annual", 12, "2025-01")
	updated := old
	updated.Amount = 1200

	notes := NotesOnUpdate(old, updated, DefaultNotifyPrefs(), month(2025, 9), noteNow)

	require.Len(t, notes, 2)
	types := []NotificationType{notes[0].Type, notes[1].Type}
	assert.Contains(t, types, NoteRateChanged)
	assert.Contains(t, types, NoteAmountChanged)
}

func TestNotesOnUpdate_DueChange(t *testing.T) {
	old := record("r1", 600, "annual", 12, "2025-01")
	updated := old
	updated.DueMonth = 10

	notes := NotesOnUpdate(old, updated, DefaultNotifyPrefs(), month(2025, 9), noteNow)
	require.Len(t, notes, 1)
	assert.Equal(t, NoteDueChanged, notes[0].Type)
	assert.Contains(t, notes[0].Text, "December 2025")
	assert.Contains(t, notes[0].Text, "October 2025")
}

func TestNotesOnUpdate_CycleChange(t *testing.T) {
	old := record("r1", 600, "annual", 12, "2025-01")
	updated := old
	updated.Cycle = "semiannual"

	notes := NotesOnUpdate(old, updated, DefaultNotifyPrefs(), month(2025, 1), noteNow)

	// Cycle and rate change together; the due date in this setup does not.
	require.Len(t, notes, 2)
	types := []NotificationType{notes[0].Type, notes[1].Type}
	assert.Contains(t, types, NoteCycleChanged)
	assert.Contains(t, types, NoteRateChanged)
}

func TestNotesOnUpdate_PrefsSuppress(t *testing.T) {
	old := record("r1", 600, "annual", 12, "2025-01")
	updated := old
	updated.Amount = 1200

	notes := NotesOnUpdate(old, updated, NotifyPrefs{}, month(2025, 9), noteNow)
	assert.Empty(t, notes)
}

func TestNotesOnUpdate_NoChangesNoNotes(t *testing.T) {
	r := record("r1", 600, "annual", 12, "2025-01")
	assert.Empty(t, NotesOnUpdate(r, r, DefaultNotifyPrefs(), month(2025, 9), noteNow))
}

func TestNoteOnDelete(t *testing.T) {
	n := NoteOnDelete(record("r1", 600, "annual", 12, "2025-01"), month(2025, 9), noteNow)
	assert.Equal(t, NoteEntryDeleted, n.Type)
	assert.Contains(t, n.Text, "r1")
}

func TestMonthlyDueNotes_OnlyDueThisMonth(t *testing.T) {
	records := []Record{
		record("dueNow", 600, "annual", 9, "2025-01"),
		record("dueLater", 600, "annual", 11, "2025-01"),
		record("over", 600, "annual", 3, "2024-01"),
	}
	records[2].EndDate = "2025-03"

	notes := MonthlyDueNotes(records, nil, month(2025, 9), noteNow)

	require.Len(t, notes, 1)
	assert.Equal(t, "dueNow", notes[0].EntryID)
	assert.Equal(t, NoteDue, notes[0].Type)
	assert.Contains(t, notes[0].Text, "600.00")
}

func TestMonthlyDueNotes_DedupeWithinMonth(t *testing.T) {
	records := []Record{record("r1", 600, "annual", 9, "2025-01")}

	first := MonthlyDueNotes(records, nil, month(2025, 9), noteNow)
	require.Len(t, first, 1)

	// Re-running with the first batch already stored yields nothing new.
	again := MonthlyDueNotes(records, first, month(2025, 9), noteNow)
	assert.Empty(t, again)

	// A different month is a fresh dedupe scope.
	nextYear := MonthlyDueNotes(records, first, month(2026, 9), noteNow)
	assert.Len(t, nextYear, 1)
}

func TestEvaluateEvents_DueUpcomingLead(t *testing.T) {
	records := []Record{
		record("now", 600, "annual", 9, "2025-01"),
		record("later", 600, "annual", 12, "2025-01"),
	}

	// 14 lead days cover only the current month at 30 days per month.
	notes := EvaluateEvents(records, DefaultRules(), month(2025, 9), noteNow)
	require.Len(t, notes, 1)
	assert.Equal(t, "now", notes[0].EntryID)
	assert.Equal(t, NoteDueUpcoming, notes[0].Type)
}

func TestEvaluateEvents_EndUpcomingLead(t *testing.T) {
	ending := record("ending", 600, "annual", 12, "2024-01")
	ending.EndDate = "2025-10"
	open := record("open", 600, "annual", 12, "2024-01")

	// 30 lead days reach one month ahead, so an end next month fires.
	notes := EvaluateEvents([]Record{ending, open}, DefaultRules(), month(2025, 9), noteNow)

	var endNotes []Notification
	for _, n := range notes {
		if n.Type == NoteEndUpcoming {
			endNotes = append(endNotes, n)
		}
	}
	require.Len(t, endNotes, 1)
	assert.Equal(t, "ending", endNotes[0].EntryID)
}

func TestEvaluateEvents_DisabledRules(t *testing.T) {
	records := []Record{record("r1", 600, "annual", 9, "2025-01")}
	rules := DefaultRules()
	for id, rule := range rules {
		rule.Enabled = false
		rules[id] = rule
	}
	assert.Empty(t, EvaluateEvents(records, rules, month(2025, 9), noteNow))
}

func TestDedupeNotes_DropsRepeats(t *testing.T) {
	records := []Record{record("r1", 600, "annual", 9, "2025-01")}
	first := EvaluateEvents(records, DefaultRules(), month(2025, 9), noteNow)
	require.NotEmpty(t, first)

	// Re-evaluating against the stored set yields nothing new.
	again := EvaluateEvents(records, DefaultRules(), month(2025, 9), noteNow)
	assert.Empty(t, DedupeNotes(first, again))

	// A later month is a new combination and passes through.
	later := EvaluateEvents(records, DefaultRules(), month(2026, 9), noteNow)
	assert.Len(t, DedupeNotes(first, later), 1)
}
