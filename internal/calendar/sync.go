package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/logger"
	"github.com/flight-logger/backend/internal/storage/models"
)

// SyncMode says who asked for a sync.
type SyncMode int

const (
	// SyncModeManual runs synchronously and returns the full result.
	SyncModeManual SyncMode = iota
	// SyncModeBackground returns immediately for auto-import sources and
	// finishes the run in its own goroutine.
	SyncModeBackground
	// SyncModeScheduled is a cron-driven run.
	SyncModeScheduled
)

func (m SyncMode) String() string {
	switch m {
	case SyncModeBackground:
		return "background"
	case SyncModeScheduled:
		return "scheduled"
	default:
		return "manual"
	}
}

// Fetcher retrieves the events of a calendar feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]models.CalendarEvent, error)
}

// SourceStore is the calendar source persistence used by sync.
type SourceStore interface {
	GetByID(ctx context.Context, id string) (*models.CalendarSource, error)
	ListEnabled(ctx context.Context) ([]models.CalendarSource, error)
	UpdateSyncStatus(ctx context.Context, id string, status string, syncError *string) error
}

// PendingStore is the pending flight persistence used by sync.
type PendingStore interface {
	ListBySource(ctx context.Context, calendarSourceID string) ([]models.PendingFlight, error)
	Create(ctx context.Context, p *models.PendingFlight) error
	UpdateStatus(ctx context.Context, id, status string, errorMessage, flightID *string) error
	PurgeRejected(ctx context.Context, departedBefore, rejectedBefore time.Time) (int, error)
}

// FlightLog is the flight log persistence used by sync.
type FlightLog interface {
	ListByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]models.Flight, error)
	Create(ctx context.Context, f *models.Flight) error
}

// FlightBuilder materializes a candidate into a flight record.
type FlightBuilder interface {
	Build(ctx context.Context, userID string, candidate models.ParsedFlightCandidate, overrides *models.FlightOverrides) (*models.Flight, error)
}

// Reconciler drops tracked flights covered by a user flight.
type Reconciler interface {
	Reconcile(ctx context.Context, airframeID string, window flight.Window) (int, error)
}

// Notifier receives sync outcomes. Calls must not block.
type Notifier interface {
	BroadcastCalendarSyncCompleted(result models.SyncResult)
	BroadcastCalendarSyncError(calendarID, calendarName string, err error)
}

// SyncService drives one calendar source end to end: fetch, parse,
// classify, persist, and optionally auto-import.
type SyncService struct {
	sources    SourceStore
	pending    PendingStore
	flights    FlightLog
	fetcher    Fetcher
	builder    FlightBuilder
	reconciler Reconciler
	notifier   Notifier
	classifier *Classifier
	now        func() time.Time

	background sync.WaitGroup
}

// SyncOption customizes a SyncService.
type SyncOption func(*SyncService)

// WithNotifier sets the sink for sync outcome events.
func WithNotifier(n Notifier) SyncOption {
	return func(s *SyncService) { s.notifier = n }
}

// WithReconciler sets the tracked-flight reconciler run after auto-import.
func WithReconciler(r Reconciler) SyncOption {
	return func(s *SyncService) { s.reconciler = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncService) { s.now = now }
}

// NewSyncService creates a new calendar sync service.
func NewSyncService(
	sources SourceStore,
	pending PendingStore,
	flights FlightLog,
	fetcher Fetcher,
	builder FlightBuilder,
	classifier *Classifier,
	opts ...SyncOption,
) *SyncService {
	if classifier == nil {
		classifier = NewClassifier(0, 0)
	}
	s := &SyncService{
		sources:    sources,
		pending:    pending,
		flights:    flights,
		fetcher:    fetcher,
		builder:    builder,
		classifier: classifier,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger starts a sync of the calendar. In background mode an auto-import
// source is synced in a new goroutine and only an acknowledgement is
// returned; every other combination runs to completion first.
func (s *SyncService) Trigger(ctx context.Context, calendarID string, mode SyncMode) (*models.SyncOutcome, error) {
	source, err := s.loadSource(ctx, calendarID)
	if err != nil {
		return nil, err
	}

	if mode == SyncModeBackground && source.AutoImport {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			if _, err := s.run(context.Background(), source, mode); err != nil {
				logger.Error("background calendar sync failed", "calendar_id", source.ID, "error", err)
			}
		}()
		return &models.SyncOutcome{
			BackgroundSync: true,
			Message:        fmt.Sprintf("Syncing %s in the background", source.Name),
		}, nil
	}

	result, err := s.run(ctx, source, mode)
	if err != nil {
		return nil, err
	}
	return &models.SyncOutcome{Result: result}, nil
}

// SyncCalendar synchronizes a single calendar and returns the result.
// A feed that cannot be fetched is reported through the result's
// FetchFailed flag; only store failures are returned as errors.
func (s *SyncService) SyncCalendar(ctx context.Context, calendarID string) (*models.SyncResult, error) {
	source, err := s.loadSource(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, source, SyncModeManual)
}

// SyncAllEnabled synchronizes all enabled calendars, one after another.
func (s *SyncService) SyncAllEnabled(ctx context.Context) ([]models.SyncResult, error) {
	sources, err := s.sources.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing enabled calendars: %w", err)
	}

	results := make([]models.SyncResult, 0, len(sources))
	for i := range sources {
		result, err := s.run(ctx, &sources[i], SyncModeScheduled)
		if err != nil {
			logger.Error("calendar sync failed", "calendar_id", sources[i].ID, "error", err)
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// PurgeExpiredRejections deletes rejected records of flights that have
// already departed and whose cooldown is over. They can never be
// re-detected since only future events are candidates.
func (s *SyncService) PurgeExpiredRejections(ctx context.Context) (int, error) {
	now := s.now()
	n, err := s.pending.PurgeRejected(ctx, now, now.Add(-s.classifier.Cooldown()))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Info("purged expired rejections", "count", n)
	}
	return n, nil
}

// Wait blocks until in-flight background syncs have finished.
func (s *SyncService) Wait() {
	s.background.Wait()
}

func (s *SyncService) loadSource(ctx context.Context, calendarID string) (*models.CalendarSource, error) {
	source, err := s.sources.GetByID(ctx, calendarID)
	if err != nil {
		return nil, fmt.Errorf("getting calendar: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("calendar %s: %w", calendarID, flight.ErrNotFound)
	}
	return source, nil
}

// run performs one sync of source.
func (s *SyncService) run(ctx context.Context, source *models.CalendarSource, mode SyncMode) (*models.SyncResult, error) {
	now := s.now()
	result := &models.SyncResult{
		CalendarID:      source.ID,
		CalendarName:    source.Name,
		Errors:          []string{},
		DetectedFlights: []models.DetectedFlight{},
		SyncedAt:        now,
	}

	logger.Debug("syncing calendar", "calendar_id", source.ID, "mode", mode)

	if err := s.sources.UpdateSyncStatus(ctx, source.ID, models.SyncStatusSyncing, nil); err != nil {
		logger.Warn("failed to update sync status", "calendar_id", source.ID, "error", err)
	}

	events, err := s.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		msg := err.Error()
		result.FetchFailed = true
		result.Errors = append(result.Errors, msg)
		if uerr := s.sources.UpdateSyncStatus(ctx, source.ID, models.SyncStatusError, &msg); uerr != nil {
			logger.Warn("failed to update sync status", "calendar_id", source.ID, "error", uerr)
		}
		logger.Warn("calendar fetch failed", "calendar_id", source.ID, "error", err)
		if s.notifier != nil {
			s.notifier.BroadcastCalendarSyncError(source.ID, source.Name, err)
		}
		return result, nil
	}

	result.TotalEventsFound = len(events)

	candidates := s.candidates(source.ID, events, now, result)
	if len(candidates) > 0 {
		if err := s.process(ctx, source, candidates, now, result); err != nil {
			msg := err.Error()
			if uerr := s.sources.UpdateSyncStatus(ctx, source.ID, models.SyncStatusError, &msg); uerr != nil {
				logger.Warn("failed to update sync status", "calendar_id", source.ID, "error", uerr)
			}
			if s.notifier != nil {
				s.notifier.BroadcastCalendarSyncError(source.ID, source.Name, err)
			}
			return nil, err
		}
	}

	if err := s.sources.UpdateSyncStatus(ctx, source.ID, models.SyncStatusSuccess, nil); err != nil {
		return nil, fmt.Errorf("updating sync status: %w", err)
	}

	logger.Info("calendar sync completed",
		"calendar_id", source.ID,
		"mode", mode,
		"events", result.TotalEventsFound,
		"future_flights", result.TotalFutureFlights,
		"new_pending", result.NewPendingFlights,
		"auto_imported", result.AutoImportedFlights,
		"auto_import_failures", result.AutoImportFailures)

	if s.notifier != nil {
		s.notifier.BroadcastCalendarSyncCompleted(*result)
	}
	return result, nil
}

// candidates parses the future events into flight candidates. Times the
// summary does not carry are taken from the event itself.
func (s *SyncService) candidates(sourceID string, events []models.CalendarEvent, now time.Time, result *models.SyncResult) []Candidate {
	var cands []Candidate
	for _, ev := range events {
		if !ev.Start.After(now) {
			continue
		}
		result.TotalFutureEvents++

		parsed := flight.Parse(ev.Summary)
		if parsed == nil {
			continue
		}
		result.TotalFutureFlights++

		if parsed.OutTime == nil && !ev.AllDay {
			start := ev.Start.UTC()
			parsed.OutTime = &start
			if parsed.InTime == nil && ev.End.After(ev.Start) {
				in := ev.End.UTC()
				parsed.InTime = &in
			}
		}

		date := ev.Start
		if parsed.OutTime != nil {
			date = *parsed.OutTime
		}

		cands = append(cands, Candidate{SourceID: sourceID, Parsed: *parsed, Date: date})
	}
	return cands
}

// process classifies every candidate, persists the new ones, and
// auto-imports them when the source asks for it. Per-item failures are
// recorded in the result; the returned error is for store failures that
// make the whole run meaningless.
func (s *SyncService) process(ctx context.Context, source *models.CalendarSource, candidates []Candidate, now time.Time, result *models.SyncResult) error {
	minDate, maxDate := candidates[0].Date, candidates[0].Date
	for _, c := range candidates[1:] {
		if c.Date.Before(minDate) {
			minDate = c.Date
		}
		if c.Date.After(maxDate) {
			maxDate = c.Date
		}
	}

	existingFlights, err := s.flights.ListByUserInRange(ctx, source.UserID, minDate.Add(-24*time.Hour), maxDate.Add(48*time.Hour))
	if err != nil {
		return fmt.Errorf("loading existing flights: %w", err)
	}
	existingPending, err := s.pending.ListBySource(ctx, source.ID)
	if err != nil {
		return fmt.Errorf("loading pending flights: %w", err)
	}

	for _, cand := range candidates {
		class := s.classifier.Classify(cand, existingPending, existingFlights, now)
		detected := models.DetectedFlight{
			Candidate: cand.Parsed,
			Status:    class.Status,
			MatchedID: class.MatchedID,
		}

		switch class.Status {
		case StatusAlreadyImported:
			result.SkippedAlreadyImported++
		case StatusAlreadyPending:
			result.SkippedAlreadyPending++
		case StatusRecentlyRejected:
			result.SkippedRecentlyRejected++
		case StatusCreated:
			p := &models.PendingFlight{
				CalendarSourceID: source.ID,
				ParsedData:       cand.Parsed,
				DetectedAt:       now,
				Fingerprint:      cand.Fingerprint(),
				Status:           models.PendingStatusPending,
			}
			if class.Existing != nil {
				p.ID = class.Existing.ID
			}
			err := s.pending.Create(ctx, p)
			if errors.Is(err, flight.ErrAlreadyPending) {
				result.SkippedAlreadyPending++
				detected.Status = StatusAlreadyPending
				result.DetectedFlights = append(result.DetectedFlights, detected)
				continue
			}
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", cand.Parsed.RawSummary, err))
				logger.Warn("failed to store pending flight", "calendar_id", source.ID, "summary", cand.Parsed.RawSummary, "error", err)
				result.DetectedFlights = append(result.DetectedFlights, detected)
				continue
			}
			result.NewPendingFlights++
			detected.PendingFlightID = &p.ID
			existingPending = upsertPending(existingPending, *p)

			if source.AutoImport {
				if f := s.autoImport(ctx, source, p, result); f != nil {
					detected.Status = models.PendingStatusAutoImported
					detected.MatchedID = &f.ID
					existingFlights = append(existingFlights, *f)
				} else {
					detected.Status = models.PendingStatusAutoImportFailed
				}
			}
		}

		result.DetectedFlights = append(result.DetectedFlights, detected)
	}

	return nil
}

// autoImport materializes a pending flight into the flight log and records
// the outcome on the pending record. It returns nil when the import failed.
func (s *SyncService) autoImport(ctx context.Context, source *models.CalendarSource, p *models.PendingFlight, result *models.SyncResult) *models.Flight {
	fail := func(err error) *models.Flight {
		msg := err.Error()
		result.AutoImportFailures++
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", p.ParsedData.RawSummary, msg))
		if uerr := s.pending.UpdateStatus(ctx, p.ID, models.PendingStatusAutoImportFailed, &msg, nil); uerr != nil {
			logger.Warn("failed to mark auto-import failure", "pending_id", p.ID, "error", uerr)
		}
		p.Status = models.PendingStatusAutoImportFailed
		p.ErrorMessage = &msg
		return nil
	}

	f, err := s.builder.Build(ctx, source.UserID, p.ParsedData, nil)
	if err != nil {
		return fail(err)
	}
	f.CalendarSourceID = &source.ID

	if err := s.flights.Create(ctx, f); err != nil {
		return fail(fmt.Errorf("creating flight: %w", err))
	}

	if err := s.pending.UpdateStatus(ctx, p.ID, models.PendingStatusAutoImported, nil, &f.ID); err != nil {
		logger.Warn("failed to mark auto-import", "pending_id", p.ID, "error", err)
	}
	p.Status = models.PendingStatusAutoImported
	p.FlightID = &f.ID
	result.AutoImportedFlights++

	if f.AirframeID != nil && s.reconciler != nil {
		if _, err := s.reconciler.Reconcile(ctx, *f.AirframeID, flight.WindowOf(f)); err != nil {
			logger.Warn("tracked flight reconciliation failed", "flight_id", f.ID, "error", err)
		}
	}

	return f
}

func upsertPending(list []models.PendingFlight, p models.PendingFlight) []models.PendingFlight {
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = p
			return list
		}
	}
	return append(list, p)
}
