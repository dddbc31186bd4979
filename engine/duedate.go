package engine

import "time"

// =============================================================================
// DUE DATE RESOLUTION
// =============================================================================

// FirstDue resolves the end of an obligation's first accrual cycle: the first
// month the full amount is debited, and the number of months available to save
// toward it.
//
// The first due month is the occurrence of dueMonth in the start year, or in
// the following year when that occurrence precedes the start.
//
// Special case: when the start month IS the due month, there is no time to
// accrue before the nominal due date. The entry was created in the month it is
// due, so the first real cycle ends one full cycle later and spans the full
// cycle length. No one-month grace cycle is granted.
func FirstDue(start Month, dueMonth time.Month, cycleMonths int) (due Month, monthsFirstCycle int) {
	due = NewMonth(start.Year(), dueMonth)
	if due.Before(start) {
		due = NewMonth(start.Year()+1, dueMonth)
	}
	if due.Equal(start) {
		return due.AddMonths(cycleMonths), cycleMonths
	}
	return due, MonthsBetween(start, due)
}

// AdvanceTo fast-forwards a due date by whole cycles until it is no longer
// before today. A due date equal to today is kept: the debit happens this
// month.
func AdvanceTo(firstDue Month, cycleMonths int, today Month) Month {
	if cycleMonths <= 0 {
		cycleMonths = fallbackCycleMonths
	}
	due := firstDue
	for due.Before(today) {
		due = due.AddMonths(cycleMonths)
	}
	return due
}

// NextDue returns the next month the obligation's amount is debited on or
// after today. The second return is false when no further debit occurs, i.e.
// the advanced due date falls past the contract end.
func (o Obligation) NextDue(today Month) (Month, bool) {
	cm := o.Cycle.Months()
	due, _ := FirstDue(o.Start, o.dueMonth(), cm)
	due = AdvanceTo(due, cm, today)
	if o.End != nil && due.After(*o.End) {
		return Month{}, false
	}
	return due, true
}
