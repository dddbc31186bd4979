package engine

// =============================================================================
// CYCLE - Months between consecutive debits
// =============================================================================

// CycleKind enumerates the supported recurrence cycles.
type CycleKind string

const (
	CycleQuarterly  CycleKind = "quarterly"  // every 3 months
	CycleSemiannual CycleKind = "semiannual" // every 6 months
	CycleAnnual     CycleKind = "annual"     // every 12 months
	CycleCustom     CycleKind = "custom"     // every CustomMonths months
)

// fallbackCycleMonths is the default applied to broken cycle
// configuration. Several downstream computations divide by the cycle length,
// so this must be the single non-zero fallback in every code path.
const fallbackCycleMonths = 12

// Cycle is the recurrence of an obligation. CustomMonths is only meaningful
// when Kind is CycleCustom.
type Cycle struct {
	Kind         CycleKind
	CustomMonths int
}

// CustomCycle builds a custom cycle of n months.
func CustomCycle(n int) Cycle {
	return Cycle{Kind: CycleCustom, CustomMonths: n}
}

// Months returns the effective number of months per accrual cycle.
//
// A custom cycle with a non-positive month count, and any unknown kind, fall
// back to 12 months. This is deliberate tolerance, not an error: a half-edited
// entry must still yield a usable (non-zero) divisor.
func (c Cycle) Months() int {
	switch c.Kind {
	case CycleQuarterly:
		return 3
	case CycleSemiannual:
		return 6
	case CycleAnnual:
		return 12
	case CycleCustom:
		if c.CustomMonths > 0 {
			return c.CustomMonths
		}
		return fallbackCycleMonths
	default:
		return fallbackCycleMonths
	}
}
