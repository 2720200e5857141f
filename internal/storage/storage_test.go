package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/storage/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	ctx      context.Context
	sources  *CalendarSourceRepository
	pending  *PendingFlightRepository
	flights  *FlightRepository
	refs     *ReferenceRepository
	source   *models.CalendarSource
	jfk, lax *models.Airport
	airline  *models.Airline
	airframe *models.Airframe
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	f := &fixture{
		ctx:     context.Background(),
		sources: NewCalendarSourceRepository(db),
		pending: NewPendingFlightRepository(db),
		flights: NewFlightRepository(db),
		refs:    NewReferenceRepository(db),
	}

	f.source = &models.CalendarSource{UserID: "user-1", Name: "Work", URL: "https://example.com/cal.ics", Enabled: true, SyncIntervalMin: 15}
	if err := f.sources.Create(f.ctx, f.source); err != nil {
		t.Fatalf("Create(source) error = %v", err)
	}

	f.jfk = &models.Airport{IATA: "JFK", ICAO: ptr("KJFK"), Name: "John F. Kennedy", Timezone: "America/New_York"}
	f.lax = &models.Airport{IATA: "LAX", ICAO: ptr("KLAX"), Name: "Los Angeles", Timezone: "America/Los_Angeles"}
	for _, a := range []*models.Airport{f.jfk, f.lax} {
		if err := f.refs.UpsertAirport(f.ctx, a); err != nil {
			t.Fatalf("UpsertAirport() error = %v", err)
		}
	}
	f.airline = &models.Airline{IATA: ptr("AA"), ICAO: ptr("AAL"), Name: "American Airlines"}
	if err := f.refs.UpsertAirline(f.ctx, f.airline); err != nil {
		t.Fatalf("UpsertAirline() error = %v", err)
	}
	f.airframe = &models.Airframe{Registration: "N123AA"}
	if err := f.refs.UpsertAirframe(f.ctx, f.airframe); err != nil {
		t.Fatalf("UpsertAirframe() error = %v", err)
	}
	return f
}

func (f *fixture) flight(user *string, out time.Time, dur time.Duration) *models.Flight {
	return &models.Flight{
		UserID:             user,
		AirlineID:          &f.airline.ID,
		FlightNumber:       ptr(100),
		DepartureAirportID: f.jfk.ID,
		ArrivalAirportID:   f.lax.ID,
		AirframeID:         &f.airframe.ID,
		OutTime:            out,
		InTime:             out.Add(dur),
	}
}

func (f *fixture) pendingFlight(fingerprint string, out time.Time) *models.PendingFlight {
	return &models.PendingFlight{
		CalendarSourceID: f.source.ID,
		Fingerprint:      fingerprint,
		ParsedData: models.ParsedFlightCandidate{
			AirlineCode:  ptr("AA"),
			FlightNumber: ptr(100),
			OutTime:      &out,
			RawSummary:   "AA 100",
		},
	}
}

func TestCalendarSourceSyncStatus(t *testing.T) {
	f := newFixture(t)

	if err := f.sources.UpdateSyncStatus(f.ctx, f.source.ID, models.SyncStatusSuccess, nil); err != nil {
		t.Fatalf("UpdateSyncStatus(success) error = %v", err)
	}
	got, err := f.sources.GetByID(f.ctx, f.source.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID() = %v, %v", got, err)
	}
	if got.LastSyncAt == nil {
		t.Fatal("LastSyncAt = nil after success, want set")
	}
	synced := *got.LastSyncAt

	msg := "connection refused"
	if err := f.sources.UpdateSyncStatus(f.ctx, f.source.ID, models.SyncStatusError, &msg); err != nil {
		t.Fatalf("UpdateSyncStatus(error) error = %v", err)
	}
	got, _ = f.sources.GetByID(f.ctx, f.source.ID)
	if got.SyncStatus != models.SyncStatusError {
		t.Errorf("SyncStatus = %s, want error", got.SyncStatus)
	}
	if got.SyncError == nil || *got.SyncError != msg {
		t.Errorf("SyncError = %v, want %q", got.SyncError, msg)
	}
	if got.LastSyncAt == nil || !got.LastSyncAt.Equal(synced) {
		t.Errorf("LastSyncAt = %v, want unchanged %v", got.LastSyncAt, synced)
	}
}

func TestCalendarSourceListAndDelete(t *testing.T) {
	f := newFixture(t)

	other := &models.CalendarSource{UserID: "user-2", Name: "Other", URL: "https://example.com/o.ics", SyncIntervalMin: 15}
	if err := f.sources.Create(f.ctx, other); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mine, err := f.sources.ListByUser(f.ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(mine) != 1 || mine[0].ID != f.source.ID {
		t.Errorf("ListByUser() = %+v, want only %s", mine, f.source.ID)
	}

	enabled, err := f.sources.ListEnabled(f.ctx)
	if err != nil {
		t.Fatalf("ListEnabled() error = %v", err)
	}
	if len(enabled) != 1 {
		t.Errorf("ListEnabled() returned %d sources, want 1", len(enabled))
	}

	if err := f.sources.Delete(f.ctx, other.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := f.sources.Delete(f.ctx, other.ID); !errors.Is(err, flight.ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}
}

func TestPendingFlightLifecycle(t *testing.T) {
	f := newFixture(t)
	out := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)

	p := f.pendingFlight("fp-1", out)
	if err := f.pending.Create(f.ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := f.pending.GetByFingerprint(f.ctx, f.source.ID, "fp-1")
	if err != nil || got == nil {
		t.Fatalf("GetByFingerprint() = %v, %v", got, err)
	}
	if got.ID != p.ID || got.Status != models.PendingStatusPending {
		t.Errorf("GetByFingerprint() = %s/%s, want %s/pending", got.ID, got.Status, p.ID)
	}
	if got.ParsedData.FlightNumber == nil || *got.ParsedData.FlightNumber != 100 {
		t.Errorf("ParsedData.FlightNumber = %v, want 100", got.ParsedData.FlightNumber)
	}

	rejectedAt := time.Date(2029, 12, 1, 0, 0, 0, 0, time.UTC)
	if err := f.pending.Reject(f.ctx, p.ID, rejectedAt); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	got, _ = f.pending.GetByID(f.ctx, p.ID)
	if got.Status != models.PendingStatusRejected || got.RejectedAt == nil || !got.RejectedAt.Equal(rejectedAt) {
		t.Errorf("after Reject() status = %s rejected_at = %v", got.Status, got.RejectedAt)
	}

	if err := f.pending.Restore(f.ctx, p.ID); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	got, _ = f.pending.GetByID(f.ctx, p.ID)
	if got.Status != models.PendingStatusPending || got.RejectedAt != nil {
		t.Errorf("after Restore() status = %s rejected_at = %v, want pending/nil", got.Status, got.RejectedAt)
	}

	if err := f.pending.Delete(f.ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := f.pending.Reject(f.ctx, p.ID, rejectedAt); !errors.Is(err, flight.ErrNotFound) {
		t.Errorf("Reject() on deleted error = %v, want ErrNotFound", err)
	}
}

func TestPendingFlightCreateReusesRejectedRow(t *testing.T) {
	f := newFixture(t)
	out := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)

	first := f.pendingFlight("fp-1", out)
	if err := f.pending.Create(f.ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := f.pending.Reject(f.ctx, first.ID, time.Now()); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	again := f.pendingFlight("fp-1", out)
	if err := f.pending.Create(f.ctx, again); err != nil {
		t.Fatalf("Create() second error = %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("Create() ID = %s, want reused %s", again.ID, first.ID)
	}

	got, _ := f.pending.GetByID(f.ctx, first.ID)
	if got.Status != models.PendingStatusPending || got.RejectedAt != nil {
		t.Errorf("reused row status = %s rejected_at = %v, want pending/nil", got.Status, got.RejectedAt)
	}
}

func TestPendingFlightCreateKeepsLiveRow(t *testing.T) {
	f := newFixture(t)
	out := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)

	first := f.pendingFlight("fp-1", out)
	if err := f.pending.Create(f.ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	fl := f.flight(ptr("user-1"), out, 6*time.Hour)
	if err := f.flights.Create(f.ctx, fl); err != nil {
		t.Fatalf("flights.Create() error = %v", err)
	}
	if err := f.pending.UpdateStatus(f.ctx, first.ID, models.PendingStatusAutoImported, nil, &fl.ID); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	again := f.pendingFlight("fp-1", out)
	if err := f.pending.Create(f.ctx, again); !errors.Is(err, flight.ErrAlreadyPending) {
		t.Fatalf("Create() over imported row error = %v, want ErrAlreadyPending", err)
	}

	got, err := f.pending.GetByID(f.ctx, first.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID() = %v, %v", got, err)
	}
	if got.Status != models.PendingStatusAutoImported {
		t.Errorf("status = %s, want %s", got.Status, models.PendingStatusAutoImported)
	}
	if got.FlightID == nil || *got.FlightID != fl.ID {
		t.Errorf("flight_id = %v, want %s", got.FlightID, fl.ID)
	}
}

func TestPendingFlightListByUserPaging(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 5; i++ {
		p := f.pendingFlight(string(rune('a'+i)), start.Add(time.Duration(i)*time.Hour))
		if err := f.pending.Create(f.ctx, p); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids = append(ids, p.ID)
	}
	if err := f.pending.Reject(f.ctx, ids[4], time.Now()); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	page, err := f.pending.ListByUser(f.ctx, "user-1", PendingFilterReviewable, 2, 0)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if page.Total != 4 || len(page.Flights) != 2 || !page.HasMore {
		t.Errorf("page = total %d len %d more %v, want 4/2/true", page.Total, len(page.Flights), page.HasMore)
	}
	if page.Flights[0].ID != ids[0] {
		t.Errorf("first flight = %s, want earliest %s", page.Flights[0].ID, ids[0])
	}

	page, _ = f.pending.ListByUser(f.ctx, "user-1", PendingFilterReviewable, 2, 2)
	if len(page.Flights) != 2 || page.HasMore {
		t.Errorf("last page len %d more %v, want 2/false", len(page.Flights), page.HasMore)
	}

	page, _ = f.pending.ListByUser(f.ctx, "user-1", PendingFilterRejected, 10, 0)
	if page.Total != 1 || page.Flights[0].ID != ids[4] {
		t.Errorf("rejected page = %+v, want only %s", page, ids[4])
	}

	page, _ = f.pending.ListByUser(f.ctx, "user-2", PendingFilterAll, 10, 0)
	if page.Total != 0 {
		t.Errorf("other user total = %d, want 0", page.Total)
	}
}

func TestPendingFlightPurgeRejected(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

	past := f.pendingFlight("past", now.Add(-48*time.Hour))
	future := f.pendingFlight("future", now.Add(48*time.Hour))
	for _, p := range []*models.PendingFlight{past, future} {
		if err := f.pending.Create(f.ctx, p); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := f.pending.Reject(f.ctx, p.ID, now.Add(-72*time.Hour)); err != nil {
			t.Fatalf("Reject() error = %v", err)
		}
	}

	n, err := f.pending.PurgeRejected(f.ctx, now, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeRejected() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeRejected() = %d, want 1", n)
	}
	if got, _ := f.pending.GetByID(f.ctx, future.ID); got == nil {
		t.Error("future rejected row was purged")
	}
}

func TestFlightCreateFromPending(t *testing.T) {
	f := newFixture(t)
	out := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)

	p := f.pendingFlight("fp-1", out)
	if err := f.pending.Create(f.ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	fl := f.flight(ptr("user-1"), out, 6*time.Hour)
	if err := f.flights.CreateFromPending(f.ctx, fl, p.ID); err != nil {
		t.Fatalf("CreateFromPending() error = %v", err)
	}
	if got, _ := f.pending.GetByID(f.ctx, p.ID); got != nil {
		t.Error("pending flight still present after approve")
	}

	stored, err := f.flights.GetByID(f.ctx, fl.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID() = %v, %v", stored, err)
	}
	if stored.AirlineCode == nil || *stored.AirlineCode != "AA" || stored.DepartureAirport != "JFK" {
		t.Errorf("joined codes = %v/%s, want AA/JFK", stored.AirlineCode, stored.DepartureAirport)
	}
	if !stored.HasAirlineCode("aal") || !stored.HasAirlineCode("AA") || stored.HasAirlineCode("UA") {
		t.Errorf("HasAirlineCode() mismatch for airline %v/%v", stored.AirlineCode, stored.AirlineICAO)
	}

	dup := f.flight(ptr("user-1"), out, 6*time.Hour)
	if err := f.flights.CreateFromPending(f.ctx, dup, p.ID); !errors.Is(err, flight.ErrNotFound) {
		t.Fatalf("CreateFromPending() twice error = %v, want ErrNotFound", err)
	}
	all, _ := f.flights.ListByUser(f.ctx, "user-1", 10, 0)
	if len(all) != 1 {
		t.Errorf("ListByUser() returned %d flights, want 1", len(all))
	}
}

func TestFlightRangeQueries(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2030, 3, 1, 10, 0, 0, 0, time.UTC)

	user := f.flight(ptr("user-1"), day, 3*time.Hour)
	tracked := f.flight(nil, day.Add(10*time.Minute), 3*time.Hour)
	later := f.flight(ptr("user-1"), day.Add(72*time.Hour), 3*time.Hour)
	for _, fl := range []*models.Flight{user, tracked, later} {
		if err := f.flights.Create(f.ctx, fl); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := f.flights.ListByUserInRange(f.ctx, "user-1", day.Add(-time.Hour), day.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListByUserInRange() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != user.ID {
		t.Errorf("ListByUserInRange() = %d flights, want only %s", len(got), user.ID)
	}

	got, err = f.flights.ListByAirframeInRange(f.ctx, f.airframe.ID, day.Add(-24*time.Hour), day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListByAirframeInRange() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByAirframeInRange() = %d flights, want 2", len(got))
	}

	r := flight.NewReconciler(f.flights, time.Hour, 24*time.Hour)
	removed, err := r.Reconcile(f.ctx, f.airframe.ID, flight.WindowOf(user))
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Reconcile() removed = %d, want 1", removed)
	}
	if gone, _ := f.flights.GetByID(f.ctx, tracked.ID); gone != nil {
		t.Error("tracked flight still present after reconcile")
	}
}

func TestReferenceResolution(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		fn   func() (bool, error)
	}{
		{"airline by iata", func() (bool, error) { a, err := f.refs.ResolveAirline(f.ctx, "aa"); return a != nil, err }},
		{"airline by icao", func() (bool, error) { a, err := f.refs.ResolveAirline(f.ctx, "AAL"); return a != nil, err }},
		{"airport by iata", func() (bool, error) { a, err := f.refs.ResolveAirport(f.ctx, "JFK"); return a != nil, err }},
		{"airport by icao", func() (bool, error) { a, err := f.refs.ResolveAirport(f.ctx, "KLAX"); return a != nil, err }},
		{"airframe with dash", func() (bool, error) { a, err := f.refs.ResolveAirframe(f.ctx, "n-123aa"); return a != nil, err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := tt.fn()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if !found {
				t.Error("not found, want match")
			}
		})
	}

	if a, err := f.refs.ResolveAirport(f.ctx, "ZZZ"); err != nil || a != nil {
		t.Errorf("ResolveAirport(ZZZ) = %v, %v, want nil, nil", a, err)
	}
}
