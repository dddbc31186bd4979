/*
progress.go - Per-obligation saving progress

PURPOSE:
  Answers, for one obligation and one reference month: what is the current
  monthly contribution rate, how much has been saved toward the next debit,
  and what fraction of the lump sum that represents.

CYCLE BOUNDARY CONVENTION:
  The month of a debit never credits the cycle that just ended; it carries the
  FIRST contribution of the new cycle instead. Concretely, months_saved counts
  the months from the current cycle's start through today inclusive, and when
  today lands exactly on a due date the cycle is rolled forward first, so the
  count is 1. This single convention is shared with simulate.go: the ledger
  simulation debits the full amount and adds the new cycle's first rate in the
  same month, which is exactly what an inclusive count reproduces.

END OF CONTRACT:
  Once today is past the end date the obligation shows no open accrual at all:
  rate, percent and saved are zero. If the final debit lands on the end month
  itself, the cycle that would begin there never accrues either.

SEE ALSO:
  - duedate.go:  FirstDue and the start==due special case
  - simulate.go: The ledger-side counterpart of these rules
*/
package engine

import "github.com/shopspring/decimal"

// Progress is the saving state of one obligation as of a reference month.
type Progress struct {
	// Rate is the monthly contribution for the current accrual cycle.
	Rate decimal.Decimal

	// Percent is Saved/Amount, clamped to [0, 1].
	Percent decimal.Decimal

	// Saved is the amount accumulated toward the next debit.
	Saved decimal.Decimal

	// NotStarted is the start month when accrual has not begun yet, nil
	// otherwise. Rate, Percent and Saved are zero when it is set.
	NotStarted *Month
}

// ComputeProgress derives the obligation's saving progress as of today.
func ComputeProgress(o Obligation, today Month) Progress {
	if today.Before(o.Start) {
		start := o.Start
		return Progress{NotStarted: &start}
	}
	if o.Ended(today) {
		return Progress{}
	}

	cm := o.Cycle.Months()
	nextDue, monthsTotal := FirstDue(o.Start, o.dueMonth(), cm)

	// Roll completed cycles forward. Today equal to a due date rolls too:
	// that month belongs to the new cycle, not the one just debited.
	cycleStart := o.Start
	for !today.Before(nextDue) {
		cycleStart = nextDue
		nextDue = nextDue.AddMonths(cm)
		monthsTotal = cm
	}

	// The final debit landed on the end month; no cycle accrues after it.
	if o.End != nil && !cycleStart.Before(*o.End) {
		return Progress{}
	}

	monthsSaved := MonthsBetween(cycleStart, today) + 1
	if monthsSaved < 0 {
		monthsSaved = 0
	}
	if monthsSaved > monthsTotal {
		monthsSaved = monthsTotal
	}

	rate := decimal.Zero
	if monthsTotal > 0 {
		rate = o.Amount.Div(decimal.NewFromInt(int64(monthsTotal)))
	}
	saved := rate.Mul(decimal.NewFromInt(int64(monthsSaved)))
	if saved.IsNegative() {
		saved = decimal.Zero
	}

	percent := decimal.Zero
	if o.Amount.IsPositive() {
		percent = saved.Div(o.Amount)
		if percent.GreaterThan(decimal.NewFromInt(1)) {
			percent = decimal.NewFromInt(1)
		}
	}

	return Progress{Rate: rate, Percent: percent, Saved: saved}
}
