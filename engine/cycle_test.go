package engine_test

import (
	"testing"

	"github.com/warp/reserve-engine/engine"
)

func TestCycle_Months_Enumerated(t *testing.T) {
	cases := []struct {
		cycle engine.Cycle
		want  int
	}{
		{engine.Cycle{Kind: engine.CycleQuarterly}, 3},
		{engine.Cycle{Kind: engine.CycleSemiannual}, 6},
		{engine.Cycle{Kind: engine.CycleAnnual}, 12},
		{engine.CustomCycle(18), 18},
		{engine.CustomCycle(1), 1},
	}
	for _, c := range cases {
		if got := c.cycle.Months(); got != c.want {
			t.Errorf("%+v: got %d months, want %d", c.cycle, got, c.want)
		}
	}
}

func TestCycle_Months_FallsBackToTwelve(t *testing.T) {
	// Broken cycle configuration is a legitimate transient state during
	// editing; it must yield a usable non-zero divisor, not an error.
	cases := []engine.Cycle{
		engine.CustomCycle(0),
		engine.CustomCycle(-6),
		{Kind: engine.CycleCustom},
		{Kind: "weekly"},
		{},
	}
	for _, c := range cases {
		if got := c.Months(); got != 12 {
			t.Errorf("%+v: got %d months, want fallback 12", c, got)
		}
	}
}
