package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/storage/models"
)

// Status filters accepted by ListByUser.
const (
	PendingFilterReviewable = ""
	PendingFilterRejected   = "rejected"
	PendingFilterImported   = "auto_imported"
	PendingFilterAll        = "all"
)

// PendingFlightRepository provides data access for pending flights.
type PendingFlightRepository struct {
	BaseRepository
}

// NewPendingFlightRepository creates a new pending flight repository.
func NewPendingFlightRepository(db *DB) *PendingFlightRepository {
	return &PendingFlightRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const pendingFlightColumns = `
	p.id, p.calendar_source_id, p.parsed_data, p.detected_at, p.fingerprint, p.status,
	p.rejected_at, p.error_message, p.flight_id, p.created_at, p.updated_at`

func scanPendingFlight(row rowScanner, p *models.PendingFlight) error {
	var parsed string
	if err := row.Scan(
		&p.ID, &p.CalendarSourceID, &parsed, &p.DetectedAt, &p.Fingerprint, &p.Status,
		&p.RejectedAt, &p.ErrorMessage, &p.FlightID, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(parsed), &p.ParsedData); err != nil {
		return fmt.Errorf("decoding parsed data: %w", err)
	}
	if p.Status == models.PendingStatusRestored {
		p.Status = models.PendingStatusPending
	}
	return nil
}

// Create inserts a pending flight. A rejected row with the same source and
// fingerprint is reset in place and keeps its ID; any other existing row is
// left untouched and flight.ErrAlreadyPending is returned.
func (r *PendingFlightRepository) Create(ctx context.Context, p *models.PendingFlight) error {
	parsed, err := json.Marshal(p.ParsedData)
	if err != nil {
		return fmt.Errorf("encoding parsed data: %w", err)
	}

	now := r.Now()
	if p.ID == "" {
		p.ID = GenerateID()
	}
	if p.Status == "" {
		p.Status = models.PendingStatusPending
	}
	if p.DetectedAt.IsZero() {
		p.DetectedAt = now
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	p.RejectedAt = nil

	err = r.DB().QueryRowContext(ctx, `
		INSERT INTO pending_flights (
			id, calendar_source_id, parsed_data, out_time, detected_at, fingerprint,
			status, error_message, flight_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (calendar_source_id, fingerprint) DO UPDATE SET
			parsed_data = excluded.parsed_data,
			out_time = excluded.out_time,
			detected_at = excluded.detected_at,
			status = excluded.status,
			rejected_at = NULL,
			error_message = excluded.error_message,
			flight_id = excluded.flight_id,
			updated_at = excluded.updated_at
		WHERE pending_flights.status = 'rejected'
		RETURNING id
	`,
		p.ID, p.CalendarSourceID, string(parsed), dbTimePtr(p.ParsedData.OutTime), dbTime(p.DetectedAt),
		p.Fingerprint, p.Status, p.ErrorMessage, p.FlightID, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("pending flight %s: %w", p.Fingerprint, flight.ErrAlreadyPending)
	}
	if err != nil {
		return fmt.Errorf("inserting pending flight: %w", err)
	}

	return nil
}

// GetByID retrieves a pending flight by its ID.
func (r *PendingFlightRepository) GetByID(ctx context.Context, id string) (*models.PendingFlight, error) {
	p := &models.PendingFlight{}

	err := scanPendingFlight(r.DB().QueryRowContext(ctx,
		`SELECT`+pendingFlightColumns+` FROM pending_flights p WHERE p.id = ?`, id), p)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying pending flight: %w", err)
	}

	return p, nil
}

// GetByFingerprint retrieves the pending flight of a source with the given
// fingerprint, whatever its status.
func (r *PendingFlightRepository) GetByFingerprint(ctx context.Context, calendarSourceID, fingerprint string) (*models.PendingFlight, error) {
	p := &models.PendingFlight{}

	err := scanPendingFlight(r.DB().QueryRowContext(ctx, `SELECT`+pendingFlightColumns+`
		FROM pending_flights p WHERE p.calendar_source_id = ? AND p.fingerprint = ?`,
		calendarSourceID, fingerprint), p)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying pending flight by fingerprint: %w", err)
	}

	return p, nil
}

// ListBySource retrieves every pending flight of a calendar source.
func (r *PendingFlightRepository) ListBySource(ctx context.Context, calendarSourceID string) ([]models.PendingFlight, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT`+pendingFlightColumns+`
		FROM pending_flights p WHERE p.calendar_source_id = ?
		ORDER BY p.out_time ASC`, calendarSourceID)
	if err != nil {
		return nil, fmt.Errorf("querying pending flights: %w", err)
	}
	defer rows.Close()

	var flights []models.PendingFlight
	for rows.Next() {
		var p models.PendingFlight
		if err := scanPendingFlight(rows, &p); err != nil {
			return nil, fmt.Errorf("scanning pending flight: %w", err)
		}
		flights = append(flights, p)
	}

	return flights, rows.Err()
}

// ListByUser returns one page of the user's pending flights, soonest first.
func (r *PendingFlightRepository) ListByUser(ctx context.Context, userID, status string, limit, offset int) (*models.PendingFlightPage, error) {
	where := []string{"c.user_id = ?"}
	args := []any{userID}

	switch status {
	case PendingFilterReviewable:
		where = append(where, "p.status IN (?, ?, ?)")
		args = append(args, models.PendingStatusPending, models.PendingStatusRestored, models.PendingStatusAutoImportFailed)
	case PendingFilterAll:
	default:
		where = append(where, "p.status = ?")
		args = append(args, status)
	}

	from := ` FROM pending_flights p
		JOIN calendar_sources c ON c.id = p.calendar_source_id
		WHERE ` + strings.Join(where, " AND ")

	page := &models.PendingFlightPage{Flights: []models.PendingFlight{}}

	if err := r.DB().QueryRowContext(ctx, "SELECT COUNT(*)"+from, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("counting pending flights: %w", err)
	}

	rows, err := r.DB().QueryContext(ctx, `SELECT`+pendingFlightColumns+from+`
		ORDER BY p.out_time IS NULL, p.out_time ASC, p.detected_at ASC
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying pending flights: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.PendingFlight
		if err := scanPendingFlight(rows, &p); err != nil {
			return nil, fmt.Errorf("scanning pending flight: %w", err)
		}
		page.Flights = append(page.Flights, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page.HasMore = offset+len(page.Flights) < page.Total
	return page, nil
}

// UpdateStatus records an auto-import outcome.
func (r *PendingFlightRepository) UpdateStatus(ctx context.Context, id, status string, errorMessage, flightID *string) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE pending_flights SET status = ?, error_message = ?, flight_id = ?, updated_at = ?
		WHERE id = ?
	`, status, errorMessage, flightID, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating pending flight status: %w", err)
	}
	return requireRow(result, "pending flight", id)
}

// Reject marks a pending flight rejected at the given time.
func (r *PendingFlightRepository) Reject(ctx context.Context, id string, at time.Time) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE pending_flights SET status = ?, rejected_at = ?, updated_at = ?
		WHERE id = ?
	`, models.PendingStatusRejected, dbTime(at), r.Now(), id)
	if err != nil {
		return fmt.Errorf("rejecting pending flight: %w", err)
	}
	return requireRow(result, "pending flight", id)
}

// Restore moves a rejected pending flight back to pending and clears its
// rejection time.
func (r *PendingFlightRepository) Restore(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE pending_flights SET status = ?, rejected_at = NULL, updated_at = ?
		WHERE id = ?
	`, models.PendingStatusPending, r.Now(), id)
	if err != nil {
		return fmt.Errorf("restoring pending flight: %w", err)
	}
	return requireRow(result, "pending flight", id)
}

// Delete removes a pending flight.
func (r *PendingFlightRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM pending_flights WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting pending flight: %w", err)
	}
	return requireRow(result, "pending flight", id)
}

// PurgeRejected deletes rejected rows whose flight departed before
// departedBefore and whose rejection happened before rejectedBefore.
func (r *PendingFlightRepository) PurgeRejected(ctx context.Context, departedBefore, rejectedBefore time.Time) (int, error) {
	result, err := r.DB().ExecContext(ctx, `
		DELETE FROM pending_flights
		WHERE status = ? AND out_time IS NOT NULL AND out_time < ? AND rejected_at < ?
	`, models.PendingStatusRejected, dbTime(departedBefore), dbTime(rejectedBefore))
	if err != nil {
		return 0, fmt.Errorf("purging rejected pending flights: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func requireRow(result sql.Result, what, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, flight.ErrNotFound)
	}
	return nil
}
