// Package settings resolves the per-game tunables against their allowed ranges.
package settings

import (
	"math"

	"github.com/wfunc/hideseek/models"
)

// Bounds is the allowed range and fallback for one setting.
type Bounds[T int | float64] struct {
	Min     T
	Max     T
	Default T
}

var (
	HidingDuration       = Bounds[int]{Min: 30, Max: 86400, Default: 60}
	PowerupCasting       = Bounds[int]{Min: 10, Max: 300, Default: 60}
	ThermometerThreshold = Bounds[float64]{Min: 25, Max: 300, Default: 50}
)

// Contains reports whether v is a usable value for this setting.
func (b Bounds[T]) Contains(v T) bool {
	if isNaN(v) {
		return false
	}
	return v >= b.Min && v <= b.Max
}

// Resolve returns the stored value when it is present and within bounds, otherwise the default.
func Resolve[T int | float64](stored *T, b Bounds[T]) T {
	if stored == nil || !b.Contains(*stored) {
		return b.Default
	}
	return *stored
}

func isNaN[T int | float64](v T) bool {
	return math.IsNaN(float64(v))
}

// Resolved holds the effective settings of a game.
type Resolved struct {
	HidingDurationSeconds      int     `json:"hidingDurationSeconds"`
	PowerupCastingSeconds      int     `json:"powerupCastingSeconds"`
	ThermometerThresholdMeters float64 `json:"thermometerThresholdMeters"`
}

// ForGame resolves every setting of g.
func ForGame(g models.Game) Resolved {
	return Resolved{
		HidingDurationSeconds:      Resolve(g.HidingDurationSeconds, HidingDuration),
		PowerupCastingSeconds:      Resolve(g.PowerupCastingSeconds, PowerupCasting),
		ThermometerThresholdMeters: Resolve(g.ThermometerThresholdMeters, ThermometerThreshold),
	}
}

// CastingSeconds is how long a hint of type t casts. Thermometers have no wait; the walk is the cast.
func CastingSeconds(t models.HintType, r Resolved) int {
	if t == models.HintThermometer {
		return 0
	}
	return r.PowerupCastingSeconds
}
