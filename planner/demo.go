/*
demo.go - Seed data for the demo account

PURPOSE:
  A small, varied set of obligations that exercises every cycle kind plus an
  ending contract, anchored to a caller-supplied year so the data always looks
  current.
*/
package planner

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/warp/reserve-engine/engine"
)

const (
	DemoUsername = "demo"
	DemoPassword = "demo"
)

// DemoRecords returns the seed entries for the demo account, anchored to the
// given year. IDs are fresh on every call.
func DemoRecords(year int) []Record {
	return []Record{
		{
			ID:        uuid.NewString(),
			Name:      "Car insurance",
			Amount:    600,
			Account:   "Joint account",
			Category:  "Insurance",
			Cycle:     string(engine.CycleAnnual),
			DueMonth:  12,
			StartDate: fmt.Sprintf("%04d-01", year),
		},
		{
			ID:        uuid.NewString(),
			Name:      "Household insurance",
			Amount:    240,
			Account:   "Joint account",
			Category:  "Insurance",
			Cycle:     string(engine.CycleAnnual),
			DueMonth:  6,
			StartDate: fmt.Sprintf("%04d-02", year),
		},
		{
			ID:        uuid.NewString(),
			Name:      "Heating maintenance",
			Amount:    300,
			Account:   "Checking",
			Category:  "Home",
			Cycle:     string(engine.CycleQuarterly),
			DueMonth:  3,
			StartDate: fmt.Sprintf("%04d-01", year),
		},
		{
			ID:          uuid.NewString(),
			Name:        "Vacation fund",
			Amount:      1800,
			Account:     "Savings",
			Category:    "Leisure",
			Cycle:       string(engine.CycleCustom),
			CustomCycle: 18,
			DueMonth:    8,
			StartDate:   fmt.Sprintf("%04d-01", year),
			EndDate:     fmt.Sprintf("%04d-08", year+1),
		},
		{
			ID:        uuid.NewString(),
			Name:      "Appliance reserve",
			Amount:    900,
			Account:   "Savings",
			Category:  "Home",
			Cycle:     string(engine.CycleSemiannual),
			DueMonth:  1,
			StartDate: fmt.Sprintf("%04d-01", year),
		},
	}
}
