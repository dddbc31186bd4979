/*
simulate.go - Aggregate ledger simulation across a month window

PURPOSE:
  Folds a set of obligations month by month into a single running reserve
  balance: contributions flow in at each obligation's current rate, the full
  amount flows out at each due date, and residual balances are forfeited once
  a contract ends.

STATE MACHINE:
  Each obligation is driven by a small tagged state machine with three phases:

    firstCycle --debit--> steady --end passed--> closed

  Transitions fire only on month events (month == next due, month > end). The
  transition function is pure: (state, month) -> (state, flows). The simulation
  is therefore deterministic for a given input, and per-month processing across
  obligations is commutative; only the month-to-month fold is ordered.

DEBIT MONTHS:
  A debit month subtracts the full amount AND adds the new cycle's first
  contribution in the same month (unless the contract ends there). This matches
  the inclusive months_saved convention in progress.go, so the sum of per-entry
  Saved values equals the ledger balance at any month without a pending
  forfeiture.

FORFEITURE:
  The first simulated month strictly after an obligation's end date removes its
  remaining balance from the ledger, exactly once. After that the obligation is
  closed and contributes nothing.

SEE ALSO:
  - progress.go: Single-obligation view with the same boundary rules
*/
package engine

import "github.com/shopspring/decimal"

// LedgerPoint is one month's aggregate running balance.
type LedgerPoint struct {
	Month   Month           `json:"month"`
	Balance decimal.Decimal `json:"balance"`
}

// =============================================================================
// PER-OBLIGATION ACCRUAL STATE
// =============================================================================

type cyclePhase int

const (
	phaseFirstCycle cyclePhase = iota
	phaseSteady
	phaseClosed
)

// accrualState is the transient per-obligation cycle state. It is rebuilt from
// the obligation's static fields at the start of every simulation and
// discarded at the end.
type accrualState struct {
	phase   cyclePhase
	nextDue Month
	rate    decimal.Decimal
	balance decimal.Decimal
}

// monthFlow is an obligation's contribution to one month's ledger movement.
type monthFlow struct {
	inflow  decimal.Decimal
	outflow decimal.Decimal
}

func newAccrualState(o Obligation) accrualState {
	cm := o.Cycle.Months()
	due, monthsFirst := FirstDue(o.Start, o.dueMonth(), cm)

	// Degenerate first cycle: fall back to saving the full amount at once.
	rate := o.Amount
	if monthsFirst > 0 {
		rate = o.Amount.Div(decimal.NewFromInt(int64(monthsFirst)))
	}
	return accrualState{phase: phaseFirstCycle, nextDue: due, rate: rate}
}

// cycleRate is the steady-state monthly rate, with the same degenerate-cycle
// fallback as the initial rate.
func cycleRate(amount decimal.Decimal, cycleMonths int) decimal.Decimal {
	if cycleMonths <= 0 {
		return amount
	}
	return amount.Div(decimal.NewFromInt(int64(cycleMonths)))
}

// stepAccrual advances one obligation's state by one month and reports the
// resulting ledger flows. It never mutates its input.
func stepAccrual(st accrualState, o Obligation, m Month) (accrualState, monthFlow) {
	flow := monthFlow{inflow: decimal.Zero, outflow: decimal.Zero}

	if st.phase == phaseClosed {
		return st, flow
	}

	// Contract end has just been passed: forfeit whatever is left, once.
	if o.Ended(m) {
		if !st.balance.IsZero() {
			flow.outflow = st.balance
			st.balance = decimal.Zero
		}
		st.phase = phaseClosed
		return st, flow
	}

	if m.Before(o.Start) {
		return st, flow
	}

	switch {
	case m.Before(st.nextDue):
		flow.inflow = st.rate
		st.balance = st.balance.Add(st.rate)

	case m.Equal(st.nextDue):
		flow.outflow = o.Amount
		st.balance = st.balance.Sub(o.Amount)
		cm := o.Cycle.Months()
		st.nextDue = st.nextDue.AddMonths(cm)
		st.phase = phaseSteady

		// The new cycle's first contribution lands in the debit month,
		// unless this debit was the contract's last.
		if o.End == nil || m.Before(*o.End) {
			st.rate = cycleRate(o.Amount, cm)
			flow.inflow = st.rate
			st.balance = st.balance.Add(st.rate)
		} else {
			st.rate = decimal.Zero
		}
	}
	return st, flow
}

// =============================================================================
// SIMULATION
// =============================================================================

// Simulate computes the aggregate running balance for a set of obligations
// across a bounded month window around today.
//
// The window opens at the earliest obligation start (clamped to be no later
// than today), optionally extended backward by monthsBefore but never before
// the earliest start, and closes at today+monthsAfter. The result is ordered
// by month and fully determined by its inputs.
func Simulate(obligations []Obligation, today Month, monthsBefore, monthsAfter int) []LedgerPoint {
	if len(obligations) == 0 {
		return nil
	}

	earliest := obligations[0].Start
	for _, o := range obligations[1:] {
		if o.Start.Before(earliest) {
			earliest = o.Start
		}
	}
	base := today
	if earliest.Before(base) {
		base = earliest
	}
	start := base.AddMonths(-monthsBefore)
	if start.Before(earliest) {
		start = earliest
	}
	end := today.AddMonths(monthsAfter)

	states := make([]accrualState, len(obligations))
	for i, o := range obligations {
		states[i] = newAccrualState(o)
	}

	var series []LedgerPoint
	balance := decimal.Zero
	for m := start; !m.After(end); m = m.AddMonths(1) {
		inflow := decimal.Zero
		outflow := decimal.Zero
		for i, o := range obligations {
			next, flow := stepAccrual(states[i], o, m)
			states[i] = next
			inflow = inflow.Add(flow.inflow)
			outflow = outflow.Add(flow.outflow)
		}
		balance = balance.Add(inflow).Sub(outflow)
		series = append(series, LedgerPoint{Month: m, Balance: balance})
	}
	return series
}
