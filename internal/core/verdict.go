package core

import (
	"math"
)

const (
	// TrustAdjustment is subtracted from the probability of verified partners
	TrustAdjustment = 0.25

	// SuspiciousThreshold is checked first: anything above it is SUSPICIOUS
	SuspiciousThreshold = 0.7

	// MaliciousThreshold bounds the band between it and SuspiciousThreshold
	MaliciousThreshold = 0.5
)

// ClampProbability bounds p to [0,1]
func ClampProbability(p float64) float64 {
	return math.Min(math.Max(p, 0.0), 1.0)
}

// AdjustProbability applies the partner trust adjustment and clamps
func AdjustProbability(raw float64, trusted bool) float64 {
	if trusted {
		raw -= TrustAdjustment
	}
	return ClampProbability(raw)
}

// LevelFor maps an adjusted probability to a verdict level. The upper band
// is labelled SUSPICIOUS and the middle band MALICIOUS; see DESIGN.md.
func LevelFor(adjusted float64) ThreatLevel {
	switch {
	case adjusted > SuspiciousThreshold:
		return ThreatLevelSuspicious
	case adjusted > MaliciousThreshold:
		return ThreatLevelMalicious
	default:
		return ThreatLevelGood
	}
}
