package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/storage/models"
)

type memSources struct {
	mu      sync.Mutex
	sources map[string]*models.CalendarSource
}

func newMemSources(srcs ...models.CalendarSource) *memSources {
	m := &memSources{sources: make(map[string]*models.CalendarSource)}
	for i := range srcs {
		s := srcs[i]
		m.sources[s.ID] = &s
	}
	return m
}

func (m *memSources) GetByID(_ context.Context, id string) (*models.CalendarSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSources) ListEnabled(_ context.Context) ([]models.CalendarSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CalendarSource
	for _, s := range m.sources {
		if s.Enabled {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSources) UpdateSyncStatus(_ context.Context, id, status string, syncError *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return fmt.Errorf("no source %s", id)
	}
	s.SyncStatus = status
	s.SyncError = syncError
	if status == models.SyncStatusSuccess {
		now := time.Now().UTC()
		s.LastSyncAt = &now
	}
	return nil
}

func (m *memSources) get(id string) models.CalendarSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.sources[id]
}

type memPending struct {
	mu     sync.Mutex
	rows   map[string]*models.PendingFlight
	nextID int
}

func newMemPending(rows ...models.PendingFlight) *memPending {
	m := &memPending{rows: make(map[string]*models.PendingFlight)}
	for i := range rows {
		p := rows[i]
		m.rows[p.ID] = &p
	}
	return m
}

func (m *memPending) ListBySource(_ context.Context, sourceID string) ([]models.PendingFlight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PendingFlight
	for _, p := range m.rows {
		if p.CalendarSourceID == sourceID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memPending) Create(_ context.Context, p *models.PendingFlight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.CalendarSourceID == p.CalendarSourceID && existing.Fingerprint == p.Fingerprint {
			if existing.Status != models.PendingStatusRejected {
				return fmt.Errorf("pending flight %s: %w", p.Fingerprint, flight.ErrAlreadyPending)
			}
			p.ID = existing.ID
		}
	}
	if p.ID == "" {
		m.nextID++
		p.ID = fmt.Sprintf("pending-%d", m.nextID)
	}
	p.RejectedAt = nil
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memPending) UpdateStatus(_ context.Context, id, status string, errorMessage, flightID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("no pending %s", id)
	}
	p.Status = status
	p.ErrorMessage = errorMessage
	p.FlightID = flightID
	return nil
}

func (m *memPending) PurgeRejected(_ context.Context, departedBefore, rejectedBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, p := range m.rows {
		if p.Status == models.PendingStatusRejected && p.ParsedData.OutTime != nil &&
			p.ParsedData.OutTime.Before(departedBefore) && p.RejectedAt != nil && p.RejectedAt.Before(rejectedBefore) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memPending) all() []models.PendingFlight {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PendingFlight
	for _, p := range m.rows {
		out = append(out, *p)
	}
	return out
}

type memFlights struct {
	mu     sync.Mutex
	rows   []models.Flight
	nextID int
}

func (m *memFlights) ListByUserInRange(_ context.Context, userID string, from, to time.Time) ([]models.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Flight
	for _, f := range m.rows {
		if f.UserID != nil && *f.UserID == userID && !f.OutTime.Before(from) && !f.OutTime.After(to) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memFlights) Create(_ context.Context, f *models.Flight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	f.ID = fmt.Sprintf("flight-%d", m.nextID)
	m.rows = append(m.rows, *f)
	return nil
}

func (m *memFlights) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memRefs struct{}

func (memRefs) ResolveAirline(_ context.Context, code string) (*models.Airline, error) {
	if code == "AA" || code == "UA" {
		c := code
		return &models.Airline{ID: "airline-" + code, IATA: &c, Name: code}, nil
	}
	return nil, nil
}

func (memRefs) ResolveAirport(_ context.Context, code string) (*models.Airport, error) {
	switch code {
	case "JFK", "LAX", "SFO", "EWR":
		return &models.Airport{ID: "apt-" + code, IATA: code, Name: code}, nil
	}
	return nil, nil
}

func (memRefs) ResolveAircraftType(context.Context, string) (*models.AircraftType, error) {
	return nil, nil
}

func (memRefs) ResolveAirframe(context.Context, string) (*models.Airframe, error) {
	return nil, nil
}

type fakeFetcher struct {
	events []models.CalendarEvent
	err    error
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]models.CalendarEvent, error) {
	return f.events, f.err
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []models.SyncResult
	failed    []string
}

func (n *recordingNotifier) BroadcastCalendarSyncCompleted(result models.SyncResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, result)
}

func (n *recordingNotifier) BroadcastCalendarSyncError(calendarID, _ string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, calendarID)
}
