package model

import "time"

// CapacityDay is the per-day occupancy picture produced by the capacity
// evaluator.  It is derived data and never persisted.
//
// The facility has two pools: the regular pool, usable by any vehicle, and
// the overflow pool, usable only by vehicles whose keys were handed to
// staff (staff can relocate those to free up regular spots).  Vehicles
// without keys therefore have a hard ceiling at the regular pool even when
// the combined limit still has slack.
type CapacityDay struct {
	Date time.Time `json:"date"`

	NonKeysCount int `json:"non_keys_count"`
	KeysCount    int `json:"keys_count"`
	TotalCount   int `json:"total_count"`

	RegularLimit  int `json:"regular_limit"`
	OverflowLimit int `json:"overflow_limit"`
	CombinedLimit int `json:"combined_limit"`

	IsOverNonKeysLimit bool `json:"is_over_non_keys_limit"`
	IsOverTotalLimit   bool `json:"is_over_total_limit"`
	WouldFit           bool `json:"would_fit"`
}
