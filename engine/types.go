/*
Package engine implements the accrual and balance-simulation core of the
reserve planner.

PURPOSE:
  A reserve obligation is a recurring lump-sum expense (insurance premium,
  maintenance cost) due in a fixed calendar month with a fixed cycle length.
  This package answers two questions about a set of obligations:
    1. How much must be set aside per month, and how far along is the saving
       for the current cycle? (Progress)
    2. How does the aggregate reserve account balance evolve month by month,
       across contributions, debits at due dates, and forfeitures at contract
       end? (Simulate)

KEY CONCEPTS IN THIS FILE (types.go):
  - Obligation: The static description of one recurring expense
  - Month:      Year-month granularity time point (see month.go)
  - Cycle:      Months between debits, with a fallback for broken values (see cycle.go)

DESIGN PRINCIPLES:
  1. Purity: No I/O, no clock reads. "Today" is always an explicit parameter,
     so every computation is deterministic and safely callable concurrently.
  2. Precision: Uses decimal.Decimal for all money math.
  3. Tolerance: Degenerate configuration (zero amount, broken cycle) degrades
     to documented fallbacks instead of failing; only malformed input from
     outside (unparseable dates) produces errors, and those are raised by the
     planner package before obligations reach this engine.

SEE ALSO:
  - duedate.go:  First/next due-date resolution
  - progress.go: Per-obligation saving progress
  - simulate.go: Multi-obligation ledger simulation
  - planner:     Record parsing, validation, notifications
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ObligationID string

// =============================================================================
// OBLIGATION - Recurring lump-sum expense
// =============================================================================

// Obligation describes one recurring expense. It is immutable for the
// duration of a calculation; the engine never retains it between calls.
type Obligation struct {
	ID ObligationID

	// Amount is the full lump sum debited each cycle.
	Amount decimal.Decimal

	// Cycle is the number of months between debits.
	Cycle Cycle

	// DueMonth is the calendar month (1-12) in which the amount is debited.
	// Out-of-range values fall back to the start month.
	DueMonth time.Month

	// Start marks the month accrual begins.
	Start Month

	// End, if set, is the last month of the contract. No debits occur after
	// it, and any unspent accrued balance is forfeited once it has passed.
	End *Month
}

// dueMonth returns the effective due month, falling back to the start month
// when the configured value is out of range.
func (o Obligation) dueMonth() time.Month {
	if o.DueMonth >= time.January && o.DueMonth <= time.December {
		return o.DueMonth
	}
	return o.Start.Month()
}

// Ended reports whether the obligation's contract window has closed as of the
// given month.
func (o Obligation) Ended(today Month) bool {
	return o.End != nil && today.After(*o.End)
}
