package flight

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/flight-logger/backend/internal/storage/models"
)

type memFlights struct {
	rows      map[string]models.Flight
	deleteErr error
}

func newMemFlights(rows ...models.Flight) *memFlights {
	m := &memFlights{rows: make(map[string]models.Flight)}
	for _, f := range rows {
		m.rows[f.ID] = f
	}
	return m
}

func (m *memFlights) ListByAirframeInRange(_ context.Context, airframeID string, from, to time.Time) ([]models.Flight, error) {
	var out []models.Flight
	query := Window{Start: from, End: to}
	for _, f := range m.rows {
		if f.AirframeID == nil || *f.AirframeID != airframeID {
			continue
		}
		if WindowOf(&f).Intersects(query) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memFlights) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.rows, id)
	return nil
}

func flightRow(id string, user bool, airframe string, out, in time.Duration) models.Flight {
	f := models.Flight{
		ID:         id,
		AirframeID: &airframe,
		OutTime:    base.Add(out),
		InTime:     base.Add(in),
	}
	if user {
		uid := "user-1"
		f.UserID = &uid
	}
	return f
}

func TestReconcileRemovesCoveredTrackedFlights(t *testing.T) {
	store := newMemFlights(
		flightRow("user", true, "N123", 0, 3*time.Hour),
		flightRow("tracked-equal", false, "N123", 0, 3*time.Hour),
		flightRow("tracked-late", false, "N123", 50*time.Minute, 3*time.Hour+50*time.Minute),
		flightRow("tracked-next-leg", false, "N123", 5*time.Hour, 8*time.Hour),
		flightRow("other-airframe", false, "N999", 0, 3*time.Hour),
	)

	r := NewReconciler(store, time.Hour, 24*time.Hour)
	removed, err := r.Reconcile(context.Background(), "N123", win(0, 3*time.Hour))
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Reconcile() removed = %d, want 2", removed)
	}

	for _, id := range []string{"tracked-equal", "tracked-late"} {
		if _, ok := store.rows[id]; ok {
			t.Errorf("tracked flight %s still present", id)
		}
	}
	for _, id := range []string{"user", "tracked-next-leg", "other-airframe"} {
		if _, ok := store.rows[id]; !ok {
			t.Errorf("flight %s was removed, want kept", id)
		}
	}
}

func TestReconcileToleranceBoundary(t *testing.T) {
	tests := []struct {
		name    string
		shift   time.Duration
		removed int
	}{
		{"exactly one hour late", time.Hour, 1},
		{"one hour and one minute late", time.Hour + time.Minute, 0},
		{"exactly one hour early", -time.Hour, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemFlights(
				flightRow("user", true, "N1", 0, 2*time.Hour),
				flightRow("tracked", false, "N1", tt.shift, 2*time.Hour+tt.shift),
			)
			r := NewReconciler(store, time.Hour, 24*time.Hour)
			got, err := r.Reconcile(context.Background(), "N1", win(0, 2*time.Hour))
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if got != tt.removed {
				t.Errorf("Reconcile() removed = %d, want %d", got, tt.removed)
			}
		})
	}
}

func TestReconcileNoUserFlights(t *testing.T) {
	store := newMemFlights(flightRow("tracked", false, "N1", 0, time.Hour))
	r := NewReconciler(store, 0, 0)

	got, err := r.Reconcile(context.Background(), "N1", win(0, time.Hour))
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got != 0 {
		t.Errorf("Reconcile() removed = %d, want 0", got)
	}
	if len(store.rows) != 1 {
		t.Errorf("store has %d rows, want 1", len(store.rows))
	}
}

func TestReconcileDeleteError(t *testing.T) {
	store := newMemFlights(
		flightRow("user", true, "N1", 0, time.Hour),
		flightRow("tracked", false, "N1", 0, time.Hour),
	)
	store.deleteErr = errors.New("disk full")

	r := NewReconciler(store, time.Hour, 24*time.Hour)
	if _, err := r.Reconcile(context.Background(), "N1", win(0, time.Hour)); err == nil {
		t.Fatal("Reconcile() error = nil, want error")
	}
}
