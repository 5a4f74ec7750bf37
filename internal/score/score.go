// Package score holds the heuristic pre-filter, the emit decision gate, and
// momentum labeling. Everything here is pure and deterministic.
package score

import (
	"math"

	"pumpwatch/internal/features"
)

// Heuristic weights. The volume spike ratio dominates; buy pressure breaks
// ties between pairs with similar spikes.
const (
	vsrWeight = 25
	bpWeight  = 15
)

// Momentum buckets an AI probability into a human-readable label.
type Momentum string

const (
	MomentumExplosive Momentum = "EXPLOSIVE"
	MomentumStrong    Momentum = "STRONG"
	MomentumBuilding  Momentum = "BUILDING"
	MomentumWeak      Momentum = "WEAK"
)

// Heuristic computes the cheap pre-filter score from a feature vector.
// Rounding is half-away-from-zero (math.Round), so 72.5 scores 73.
func Heuristic(v features.Vector) int {
	return int(math.Round(v.VSR*vsrWeight + v.BP*bpWeight))
}

// Decide reports whether a signal should be emitted. Both gates are strict:
// a score of exactly scoreMin or a probability of exactly probMin suppresses.
func Decide(heuristic, probability, scoreMin, probMin int) bool {
	return heuristic > scoreMin && probability > probMin
}

// Label maps an AI probability to its momentum bucket. Thresholds are strict
// and checked in descending order; exactly 80 is STRONG, not EXPLOSIVE.
func Label(probability int) Momentum {
	switch {
	case probability > 80:
		return MomentumExplosive
	case probability > 65:
		return MomentumStrong
	case probability > 50:
		return MomentumBuilding
	default:
		return MomentumWeak
	}
}
