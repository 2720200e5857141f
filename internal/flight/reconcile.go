package flight

import (
	"context"
	"fmt"
	"time"

	"github.com/flight-logger/backend/internal/logger"
	"github.com/flight-logger/backend/internal/storage/models"
)

// Default reconciliation windows.
const (
	DefaultReconcileTolerance    = time.Hour
	DefaultReconcileSearchWindow = 24 * time.Hour
)

// AirframeFlightStore is the slice of the flight log the reconciler needs.
type AirframeFlightStore interface {
	// ListByAirframeInRange returns user and tracked flights of the airframe
	// whose window intersects [from, to].
	ListByAirframeInRange(ctx context.Context, airframeID string, from, to time.Time) ([]models.Flight, error)
	Delete(ctx context.Context, id string) error
}

// Reconciler removes tracked flight rows that a user-entered flight of the
// same airframe already covers.
type Reconciler struct {
	flights      AirframeFlightStore
	tolerance    time.Duration
	searchWindow time.Duration
}

// NewReconciler creates a reconciler. Non-positive durations fall back to
// the defaults.
func NewReconciler(flights AirframeFlightStore, tolerance, searchWindow time.Duration) *Reconciler {
	if tolerance <= 0 {
		tolerance = DefaultReconcileTolerance
	}
	if searchWindow <= 0 {
		searchWindow = DefaultReconcileSearchWindow
	}
	return &Reconciler{
		flights:      flights,
		tolerance:    tolerance,
		searchWindow: searchWindow,
	}
}

// Reconcile deletes every tracked flight of the airframe, near window, that
// lies inside some user flight's window widened by the tolerance. It returns
// the number of rows removed.
func (r *Reconciler) Reconcile(ctx context.Context, airframeID string, window Window) (int, error) {
	search := window.Widen(r.searchWindow)

	rows, err := r.flights.ListByAirframeInRange(ctx, airframeID, search.Start, search.End)
	if err != nil {
		return 0, fmt.Errorf("listing airframe flights: %w", err)
	}

	var tracked, owned []models.Flight
	for _, f := range rows {
		if f.IsTracked() {
			tracked = append(tracked, f)
		} else {
			owned = append(owned, f)
		}
	}
	if len(tracked) == 0 || len(owned) == 0 {
		return 0, nil
	}

	removed := 0
	for i := range tracked {
		trackedWindow := WindowOf(&tracked[i])
		for j := range owned {
			if !Overlaps(WindowOf(&owned[j]), trackedWindow, r.tolerance) {
				continue
			}
			if err := r.flights.Delete(ctx, tracked[i].ID); err != nil {
				return removed, fmt.Errorf("deleting tracked flight %s: %w", tracked[i].ID, err)
			}
			logger.Debug("removed tracked flight covered by user flight",
				"airframe_id", airframeID,
				"tracked_id", tracked[i].ID,
				"user_flight_id", owned[j].ID)
			removed++
			break
		}
	}

	if removed > 0 {
		logger.Info("reconciled tracked flights", "airframe_id", airframeID, "removed", removed)
	}
	return removed, nil
}
