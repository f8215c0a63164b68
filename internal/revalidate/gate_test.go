package revalidate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRevalidate_Threshold(t *testing.T) {
	t0 := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, ShouldRevalidate(t0, t0, DefaultThreshold))
	assert.False(t, ShouldRevalidate(t0.Add(29999*time.Millisecond), t0, DefaultThreshold))
	assert.False(t, ShouldRevalidate(t0.Add(30000*time.Millisecond), t0, DefaultThreshold))
	assert.True(t, ShouldRevalidate(t0.Add(30001*time.Millisecond), t0, DefaultThreshold))
	assert.True(t, ShouldRevalidate(t0, time.Time{}, DefaultThreshold), "never fetched is always stale")
}

func TestGate_DuplicateSignalsCollapse(t *testing.T) {
	g := NewGate(0)
	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Minute)

	assert.True(t, g.Allow(SignalFocus, now, last))
	assert.False(t, g.Allow(SignalVisible, now, last), "visibility after focus in the same turn")
	assert.False(t, g.Allow(SignalFocus, now, last))
	assert.True(t, g.InFlight())

	g.Complete()
	assert.False(t, g.InFlight())
	assert.True(t, g.Allow(SignalVisible, now, last))
}

func TestGate_FreshDataSkipsFocus(t *testing.T) {
	g := NewGate(30 * time.Second)
	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, g.Allow(SignalFocus, now, now.Add(-10*time.Second)))
	assert.False(t, g.Allow(SignalTimer, now, now.Add(-10*time.Second)))
	assert.False(t, g.InFlight())
}

func TestGate_ForcedSignalsBypassThresholdOnly(t *testing.T) {
	g := NewGate(30 * time.Second)
	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, g.Allow(SignalMount, now, now))
	assert.False(t, g.Allow(SignalManual, now, now), "manual refresh must not overlap the mount fetch")

	g.Complete()
	assert.True(t, g.Allow(SignalManual, now, now))
}

func TestNewGate_DefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, NewGate(-1).Threshold())
	assert.Equal(t, time.Second, NewGate(time.Second).Threshold())
}
