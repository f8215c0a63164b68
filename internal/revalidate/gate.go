// Package revalidate decides when a mounted view should refetch its full
// collection.
package revalidate

import "time"

// DefaultThreshold is the minimum age of the last completed refetch before a
// focus or visibility signal triggers another one.
const DefaultThreshold = 30 * time.Second

// Signal names the external trigger that asked for revalidation.
type Signal string

const (
	SignalMount   Signal = "mount"
	SignalFocus   Signal = "focus"
	SignalVisible Signal = "visible"
	SignalTimer   Signal = "timer"
	SignalManual  Signal = "manual"
	SignalConfirm Signal = "confirm"
)

// ShouldRevalidate reports whether more than threshold has elapsed since
// lastFetch.
func ShouldRevalidate(now, lastFetch time.Time, threshold time.Duration) bool {
	return now.Sub(lastFetch) > threshold
}

// Gate funnels every revalidation signal through one check. At most one
// refetch is outstanding at a time, so duplicate signals within one turn
// collapse into a single fetch.
//
// Gate is not safe for concurrent use; it belongs to the view's event loop.
type Gate struct {
	threshold time.Duration
	inFlight  bool
}

// NewGate returns a gate using threshold, or DefaultThreshold when threshold
// is not positive.
func NewGate(threshold time.Duration) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{threshold: threshold}
}

// Threshold returns the configured staleness threshold.
func (g *Gate) Threshold() time.Duration {
	return g.threshold
}

// Allow decides whether signal should start a refetch given the time of the
// last completed one. Mount, manual and confirmation signals skip the
// staleness check but never overlap an outstanding refetch. On true the
// caller owns the refetch and must call Complete when it finishes.
func (g *Gate) Allow(signal Signal, now, lastFetch time.Time) bool {
	if g.inFlight {
		return false
	}
	switch signal {
	case SignalMount, SignalManual, SignalConfirm:
	default:
		if !ShouldRevalidate(now, lastFetch, g.threshold) {
			return false
		}
	}
	g.inFlight = true
	return true
}

// InFlight reports whether a refetch is outstanding.
func (g *Gate) InFlight() bool {
	return g.inFlight
}

// Complete marks the outstanding refetch as finished, successful or not.
func (g *Gate) Complete() {
	g.inFlight = false
}
