package flight

import (
	"time"

	"github.com/flight-logger/backend/internal/storage/models"
)

// Window is a closed time interval between two absolute instants.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WindowOf returns the flight's window, preferring actual block times over
// scheduled ones.
func WindowOf(f *models.Flight) Window {
	return Window{Start: f.EffectiveOut(), End: f.EffectiveIn()}
}

// Overlaps reports whether candidate lies inside window once window is
// widened by tolerance on both sides. Boundaries are inclusive, so a
// candidate exactly equal to window always overlaps.
func Overlaps(window, candidate Window, tolerance time.Duration) bool {
	if tolerance < 0 {
		tolerance = 0
	}
	lower := window.Start.Add(-tolerance)
	upper := window.End.Add(tolerance)
	return !candidate.Start.Before(lower) && !candidate.End.After(upper)
}

// IsContained reports whether inner lies entirely within outer.
func IsContained(inner, outer Window) bool {
	return Overlaps(outer, inner, 0)
}

// Widen returns w extended by d on both sides.
func (w Window) Widen(d time.Duration) Window {
	return Window{Start: w.Start.Add(-d), End: w.End.Add(d)}
}

// Intersects reports whether the two windows share at least one instant.
func (w Window) Intersects(other Window) bool {
	return !w.Start.After(other.End) && !other.Start.After(w.End)
}
