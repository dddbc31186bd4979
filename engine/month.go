package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - Year-month granularity time point
// =============================================================================

// Month is a calendar month. All engine arithmetic happens at month
// granularity; days, hours and time zones do not exist here.
type Month struct {
	Time time.Time
}

const monthLayout = "2006-01"

// Constructors
func NewMonth(year int, month time.Month) Month {
	return Month{Time: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)}
}

// MonthOf truncates an arbitrary time to its calendar month.
func MonthOf(t time.Time) Month {
	return NewMonth(t.Year(), t.Month())
}

// ParseMonth parses the canonical "YYYY-MM" form used by stored records.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// Comparison
func (m Month) Before(other Month) bool { return m.normalize().Before(other.normalize()) }
func (m Month) After(other Month) bool  { return m.normalize().After(other.normalize()) }
func (m Month) Equal(other Month) bool  { return m.normalize().Equal(other.normalize()) }

func (m Month) normalize() time.Time {
	return time.Date(m.Time.Year(), m.Time.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (m Month) AddMonths(n int) Month {
	t := m.normalize().AddDate(0, n, 0)
	return NewMonth(t.Year(), t.Month())
}

// MonthsBetween returns the signed number of whole months from one month to
// another. Adjacent months are 1 apart; the same month is 0.
func MonthsBetween(from, to Month) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// Properties
func (m Month) Year() int         { return m.Time.Year() }
func (m Month) Month() time.Month { return m.Time.Month() }
func (m Month) IsZero() bool      { return m.Time.IsZero() }

func (m Month) String() string {
	return m.normalize().Format(monthLayout)
}

// MarshalJSON/UnmarshalJSON keep the "YYYY-MM" form on the wire.
func (m Month) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Month) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("parse month %s: not a JSON string", s)
	}
	parsed, err := ParseMonth(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
