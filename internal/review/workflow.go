// Package review implements the human-in-the-loop decisions on pending
// flights: approve into the flight log, reject with a cooldown, or restore.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/logger"
	"github.com/flight-logger/backend/internal/storage/models"
)

// Pending change actions reported to the notifier.
const (
	ActionApproved = "approved"
	ActionRejected = "rejected"
	ActionRestored = "restored"
)

// PendingStore is the pending flight persistence used by review.
type PendingStore interface {
	GetByID(ctx context.Context, id string) (*models.PendingFlight, error)
	Reject(ctx context.Context, id string, at time.Time) error
	Restore(ctx context.Context, id string) error
}

// SourceStore looks up the calendar a pending flight came from.
type SourceStore interface {
	GetByID(ctx context.Context, id string) (*models.CalendarSource, error)
}

// FlightStore writes approved flights. CreateFromPending must insert the
// flight and delete the pending record atomically, reporting
// flight.ErrNotFound when the record is already gone.
type FlightStore interface {
	CreateFromPending(ctx context.Context, f *models.Flight, pendingID string) error
}

// FlightBuilder materializes a candidate into a flight record.
type FlightBuilder interface {
	Build(ctx context.Context, userID string, candidate models.ParsedFlightCandidate, overrides *models.FlightOverrides) (*models.Flight, error)
}

// Reconciler drops tracked flights covered by a user flight.
type Reconciler interface {
	Reconcile(ctx context.Context, airframeID string, window flight.Window) (int, error)
}

// Notifier is told about review mutations. Calls must not block.
type Notifier interface {
	BroadcastPendingChanged(action string, ids []string)
}

// Service applies review decisions.
type Service struct {
	pending    PendingStore
	sources    SourceStore
	flights    FlightStore
	builder    FlightBuilder
	reconciler Reconciler
	notifier   Notifier
	now        func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithReconciler sets the reconciler run after an approval with an airframe.
func WithReconciler(r Reconciler) Option {
	return func(s *Service) { s.reconciler = r }
}

// WithNotifier sets the sink for pending.changed events.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a review service.
func NewService(pending PendingStore, sources SourceStore, flights FlightStore, builder FlightBuilder, opts ...Option) *Service {
	s := &Service{
		pending: pending,
		sources: sources,
		flights: flights,
		builder: builder,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Approve turns the pending flight into a flight in userID's log, applying
// the reviewer's overrides first. The pending record is deleted in the same
// store transaction.
func (s *Service) Approve(ctx context.Context, userID, id string, overrides *models.FlightOverrides) (*models.Flight, error) {
	f, err := s.approve(ctx, userID, id, overrides)
	if err != nil {
		return nil, err
	}
	s.notify(ActionApproved, id)
	return f, nil
}

func (s *Service) approve(ctx context.Context, userID, id string, overrides *models.FlightOverrides) (*models.Flight, error) {
	p, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if p.Status == models.PendingStatusRejected {
		return nil, fmt.Errorf("%w: pending flight %s is rejected, restore it first", flight.ErrValidationFailed, id)
	}
	if !p.IsReviewable() {
		return nil, fmt.Errorf("%w: pending flight %s is %s", flight.ErrValidationFailed, id, p.Status)
	}

	f, err := s.builder.Build(ctx, userID, p.ParsedData, overrides)
	if err != nil {
		return nil, err
	}
	f.CalendarSourceID = &p.CalendarSourceID

	if err := s.flights.CreateFromPending(ctx, f, id); err != nil {
		return nil, err
	}

	logger.Info("pending flight approved", "pending_id", id, "flight_id", f.ID)

	if f.AirframeID != nil && s.reconciler != nil {
		if _, err := s.reconciler.Reconcile(ctx, *f.AirframeID, flight.WindowOf(f)); err != nil {
			logger.Warn("tracked flight reconciliation failed", "flight_id", f.ID, "error", err)
		}
	}
	return f, nil
}

// Reject marks the pending flight rejected now. The record is kept so the
// cooldown can suppress re-detection and the reviewer can restore it.
func (s *Service) Reject(ctx context.Context, userID, id string) error {
	if err := s.reject(ctx, userID, id); err != nil {
		return err
	}
	s.notify(ActionRejected, id)
	return nil
}

func (s *Service) reject(ctx context.Context, userID, id string) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}
	if err := s.pending.Reject(ctx, id, s.now()); err != nil {
		return err
	}
	logger.Info("pending flight rejected", "pending_id", id)
	return nil
}

// Restore returns a rejected pending flight to review and clears its
// rejection time.
func (s *Service) Restore(ctx context.Context, userID, id string) (*models.PendingFlight, error) {
	p, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PendingStatusRejected {
		return nil, fmt.Errorf("%w: pending flight %s is %s, not rejected", flight.ErrValidationFailed, id, p.Status)
	}

	if err := s.pending.Restore(ctx, id); err != nil {
		return nil, err
	}
	p.Status = models.PendingStatusPending
	p.RejectedAt = nil

	logger.Info("pending flight restored", "pending_id", id)
	s.notify(ActionRestored, id)
	return p, nil
}

// BulkApprove approves each id in order. A failing item is reported in its
// result and does not stop the rest.
func (s *Service) BulkApprove(ctx context.Context, userID string, ids []string) []models.BulkResult {
	results := make([]models.BulkResult, 0, len(ids))
	var done []string
	for _, id := range ids {
		res := models.BulkResult{ID: id}
		if _, err := s.approve(ctx, userID, id, nil); err != nil {
			res.Message = err.Error()
			if !IsUserError(err) {
				logger.Error("bulk approve item failed", "pending_id", id, "error", err)
			}
		} else {
			res.Success = true
			done = append(done, id)
		}
		results = append(results, res)
	}
	s.notify(ActionApproved, done...)
	return results
}

// BulkReject rejects each id in order with the same per-item isolation as
// BulkApprove.
func (s *Service) BulkReject(ctx context.Context, userID string, ids []string) []models.BulkResult {
	results := make([]models.BulkResult, 0, len(ids))
	var done []string
	for _, id := range ids {
		res := models.BulkResult{ID: id}
		if err := s.reject(ctx, userID, id); err != nil {
			res.Message = err.Error()
			if !IsUserError(err) {
				logger.Error("bulk reject item failed", "pending_id", id, "error", err)
			}
		} else {
			res.Success = true
			done = append(done, id)
		}
		results = append(results, res)
	}
	s.notify(ActionRejected, done...)
	return results
}

// load fetches the pending flight and checks that userID owns its calendar.
// Records of other users are reported as not found.
func (s *Service) load(ctx context.Context, userID, id string) (*models.PendingFlight, error) {
	p, err := s.pending.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting pending flight: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("pending flight %s: %w", id, flight.ErrNotFound)
	}

	src, err := s.sources.GetByID(ctx, p.CalendarSourceID)
	if err != nil {
		return nil, fmt.Errorf("getting calendar: %w", err)
	}
	if src == nil || src.UserID != userID {
		return nil, fmt.Errorf("pending flight %s: %w", id, flight.ErrNotFound)
	}
	return p, nil
}

func (s *Service) notify(action string, ids ...string) {
	if s.notifier == nil || len(ids) == 0 {
		return
	}
	s.notifier.BroadcastPendingChanged(action, ids)
}

// IsUserError reports whether err is one a reviewer can act on, as opposed
// to a store failure.
func IsUserError(err error) bool {
	return errors.Is(err, flight.ErrNotFound) ||
		errors.Is(err, flight.ErrValidationFailed) ||
		errors.Is(err, flight.ErrResolutionFailed)
}
