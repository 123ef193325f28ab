// Package capacity computes per-day occupancy for a candidate reservation
// against the facility's two pools.  Evaluation is a pure function over its
// inputs: it never reads or writes storage, so it is safe to call
// repeatedly for previews.
package capacity

import (
	"time"

	"github.com/valetpark/valetpark/internal/model"
)

// Limits holds the configured daily pool sizes.  Regular spaces take any
// vehicle; overflow spaces take only vehicles whose keys were handed over,
// since staff can relocate those.
type Limits struct {
	Regular  int
	Overflow int
}

// Combined is the total number of spaces available on one day.
func (l Limits) Combined() int { return l.Regular + l.Overflow }

// Request describes the candidate whose admission is being evaluated.
type Request struct {
	Arrival           time.Time
	Departure         time.Time
	VehicleCount      int
	CarKeysHandedOver bool
}

// Evaluation is the admission verdict: one CapacityDay per calendar day the
// candidate occupies, in date order, and whether every one of them fits.
type Evaluation struct {
	Days       []model.CapacityDay `json:"days"`
	Admissible bool                `json:"admissible"`
}

// OverLimitDays returns the dates on which the candidate would not fit.
func (e Evaluation) OverLimitDays() []time.Time {
	var days []time.Time
	for _, d := range e.Days {
		if !d.WouldFit {
			days = append(days, d.Date)
		}
	}
	return days
}

// Evaluate simulates admitting the candidate on top of the reservations
// that already hold capacity and scores every day of the candidate's stay.
//
// A day is occupied from the arrival date through the departure date
// inclusive: the departure day counts until checkout.  Per day, vehicles
// are summed split by the keys flag, the candidate's own vehicles are added
// to its split, and two independent limits apply: vehicles without keys may
// never exceed the regular pool on their own, and the total may never
// exceed both pools together.  The candidate is admissible only when every
// day fits.
//
// Callers are expected to pass only reservations whose status holds
// capacity and to exclude the candidate itself from existing.
func Evaluate(req Request, existing []model.Reservation, limits Limits) Evaluation {
	eval := Evaluation{Admissible: true}

	for day := dateOf(req.Arrival); !day.After(dateOf(req.Departure)); day = day.AddDate(0, 0, 1) {
		var nonKeys, keys int
		for _, res := range existing {
			if !covers(res, day) {
				continue
			}
			if res.CarKeysHandedOver {
				keys += res.VehicleCount
			} else {
				nonKeys += res.VehicleCount
			}
		}
		if req.CarKeysHandedOver {
			keys += req.VehicleCount
		} else {
			nonKeys += req.VehicleCount
		}

		d := model.CapacityDay{
			Date:          day,
			NonKeysCount:  nonKeys,
			KeysCount:     keys,
			TotalCount:    nonKeys + keys,
			RegularLimit:  limits.Regular,
			OverflowLimit: limits.Overflow,
			CombinedLimit: limits.Combined(),
		}
		d.IsOverNonKeysLimit = d.NonKeysCount > limits.Regular
		d.IsOverTotalLimit = d.TotalCount > limits.Combined()
		d.WouldFit = !d.IsOverNonKeysLimit && !d.IsOverTotalLimit
		if !d.WouldFit {
			eval.Admissible = false
		}
		eval.Days = append(eval.Days, d)
	}
	return eval
}

// covers reports whether the reservation occupies the given day.  Both
// bounds are inclusive, matching the stay convention above.
func covers(res model.Reservation, day time.Time) bool {
	start := dateOf(res.Arrival)
	end := dateOf(res.Departure)
	return !day.Before(start) && !day.After(end)
}

// dateOf truncates a timestamp to its UTC calendar day.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
