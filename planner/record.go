/*
Package planner holds the domain layer around the reserve engine: the stored
record shape, parsing and validation, due-month ordering, notification
generation, demo data, and the storage interfaces.

PURPOSE:
  The engine works on fully typed Obligations; everything that arrives from
  storage or the API is a Record: string dates, a cycle label, a plain float
  amount. This package is the boundary where records become obligations and
  where malformed input turns into errors attributable to one specific record,
  so a single bad entry never corrupts a computation over the others.

SEE ALSO:
  - engine:          The pure accrual/ledger core
  - planner/store:   In-memory Store implementation
  - store/sqlite:    SQLite-backed Store implementation
*/
package planner

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/reserve-engine/engine"
)

// =============================================================================
// RECORD - Stored obligation shape
// =============================================================================

// Record is an obligation as persisted and exchanged over the API. Dates are
// "YYYY-MM" strings; Cycle is a label resolved by ParseCycle.
type Record struct {
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
}

// ParseCycle maps a record's cycle label to an engine cycle. Unknown labels
// pass through and hit the engine's 12-month fallback; this is the documented
// tolerance for half-edited entries, not an error.
func ParseCycle(label string, customMonths int) engine.Cycle {
	switch engine.CycleKind(label) {
	case engine.CycleQuarterly, engine.CycleSemiannual, engine.CycleAnnual:
		return engine.Cycle{Kind: engine.CycleKind(label)}
	case engine.CycleCustom:
		return engine.CustomCycle(customMonths)
	default:
		return engine.Cycle{Kind: engine.CycleKind(label)}
	}
}

// Obligation parses the record into its engine form. Malformed dates fail
// fast with an error naming this record.
func (r Record) Obligation() (engine.Obligation, error) {
	start, err := engine.ParseMonth(r.StartDate)
	if err != nil {
		return engine.Obligation{}, &RecordError{RecordID: r.ID, Field: "start_date", Err: err}
	}
	o := engine.Obligation{
		ID:       engine.ObligationID(r.ID),
		Amount:   decimal.NewFromFloat(r.Amount),
		Cycle:    ParseCycle(r.Cycle, r.CustomCycle),
		DueMonth: time.Month(r.DueMonth),
		Start:    start,
	}
	if r.EndDate != "" {
		end, err := engine.ParseMonth(r.EndDate)
		if err != nil {
			return engine.Obligation{}, &RecordError{RecordID: r.ID, Field: "end_date", Err: err}
		}
		o.End = &end
	}
	return o, nil
}

// Validate performs construction-time validation: the checks a caller must
// pass before a record may be stored. The engine itself stays tolerant of
// the degenerate states Validate rejects, because they occur transiently
// while a user edits an entry.
func (r Record) Validate() error {
	o, err := r.Obligation()
	if err != nil {
		return err
	}
	if r.Amount <= 0 {
		return &RecordError{RecordID: r.ID, Field: "amount", Err: ErrAmountNotPositive}
	}
	if r.DueMonth < 1 || r.DueMonth > 12 {
		return &RecordError{RecordID: r.ID, Field: "due_month", Err: ErrDueMonthOutOfRange}
	}
	if o.End != nil && o.End.Before(o.Start) {
		return &RecordError{RecordID: r.ID, Field: "end_date", Err: ErrEndBeforeStart}
	}
	return nil
}

// =============================================================================
// RECORD-LEVEL ENGINE OPERATIONS
// =============================================================================

// Progress computes the record's saving progress as of today.
func Progress(r Record, today engine.Month) (engine.Progress, error) {
	o, err := r.Obligation()
	if err != nil {
		return engine.Progress{}, err
	}
	return engine.ComputeProgress(o, today), nil
}

// NextDue resolves the record's next debit month on or after today. The
// boolean is false once the contract has run out.
func NextDue(r Record, today engine.Month) (engine.Month, bool, error) {
	o, err := r.Obligation()
	if err != nil {
		return engine.Month{}, false, err
	}
	due, ok := o.NextDue(today)
	return due, ok, nil
}

// MonthlyRate is the record's steady-state contribution: amount over the full
// cycle length. Used for notification texts; the first-cycle rate may differ.
func MonthlyRate(r Record) decimal.Decimal {
	cm := ParseCycle(r.Cycle, r.CustomCycle).Months()
	if cm <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(r.Amount).Div(decimal.NewFromInt(int64(cm)))
}

// Simulate parses all records and runs the ledger simulation. A single
// malformed record fails the whole call with an error naming it; the engine
// never sees partial input.
func Simulate(records []Record, today engine.Month, monthsBefore, monthsAfter int) ([]engine.LedgerPoint, error) {
	obligations := make([]engine.Obligation, 0, len(records))
	for _, r := range records {
		o, err := r.Obligation()
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, o)
	}
	return engine.Simulate(obligations, today, monthsBefore, monthsAfter), nil
}

// =============================================================================
// IMPORT / EXPORT
// =============================================================================

// EnsureIDs assigns a fresh id to every record that lacks one.
func EnsureIDs(records []Record) {
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
	}
}

// MergeRecords combines an import with the current entries. With replace the
// incoming set wins wholesale; otherwise incoming records are appended unless
// an entry with the same id already exists.
func MergeRecords(current, incoming []Record, replace bool) []Record {
	EnsureIDs(incoming)
	if replace {
		return incoming
	}
	have := make(map[string]bool, len(current))
	for _, r := range current {
		have[r.ID] = true
	}
	merged := append([]Record{}, current...)
	for _, r := range incoming {
		if !have[r.ID] {
			merged = append(merged, r)
		}
	}
	return merged
}
