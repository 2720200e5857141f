package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/storage/models"
)

// FlightRepository provides data access for the flight log.
type FlightRepository struct {
	BaseRepository
}

// NewFlightRepository creates a new flight repository.
func NewFlightRepository(db *DB) *FlightRepository {
	return &FlightRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const flightSelect = `
	SELECT f.id, f.user_id, f.airline_id, COALESCE(al.iata, al.icao), al.icao, f.flight_number,
	       f.departure_airport_id, dep.iata, f.arrival_airport_id, arr.iata,
	       f.aircraft_type_id, f.airframe_id, f.out_time, f.in_time,
	       f.out_time_actual, f.in_time_actual, f.calendar_source_id, f.created_at, f.updated_at
	FROM flights f
	LEFT JOIN airlines al ON al.id = f.airline_id
	JOIN airports dep ON dep.id = f.departure_airport_id
	JOIN airports arr ON arr.id = f.arrival_airport_id`

func scanFlight(row rowScanner, f *models.Flight) error {
	var flightNumber sql.NullInt64
	if err := row.Scan(
		&f.ID, &f.UserID, &f.AirlineID, &f.AirlineCode, &f.AirlineICAO, &flightNumber,
		&f.DepartureAirportID, &f.DepartureAirport, &f.ArrivalAirportID, &f.ArrivalAirport,
		&f.AircraftTypeID, &f.AirframeID, &f.OutTime, &f.InTime,
		&f.OutTimeActual, &f.InTimeActual, &f.CalendarSourceID, &f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return err
	}
	if flightNumber.Valid {
		n := int(flightNumber.Int64)
		f.FlightNumber = &n
	}
	return nil
}

func (r *FlightRepository) query(ctx context.Context, query string, args ...any) ([]models.Flight, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying flights: %w", err)
	}
	defer rows.Close()

	var flights []models.Flight
	for rows.Next() {
		var f models.Flight
		if err := scanFlight(rows, &f); err != nil {
			return nil, fmt.Errorf("scanning flight: %w", err)
		}
		flights = append(flights, f)
	}

	return flights, rows.Err()
}

// Create inserts a flight.
func (r *FlightRepository) Create(ctx context.Context, f *models.Flight) error {
	return r.insert(ctx, r.DB(), f)
}

// CreateFromPending inserts the flight and deletes the pending record in one
// transaction. A pending record that is already gone yields flight.ErrNotFound
// and nothing is written.
func (r *FlightRepository) CreateFromPending(ctx context.Context, f *models.Flight, pendingID string) error {
	return r.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM pending_flights WHERE id = ?", pendingID)
		if err != nil {
			return fmt.Errorf("deleting pending flight: %w", err)
		}
		if err := requireRow(result, "pending flight", pendingID); err != nil {
			return err
		}
		return r.insert(ctx, tx, f)
	})
}

func (r *FlightRepository) insert(ctx context.Context, q Queryable, f *models.Flight) error {
	f.ID = GenerateID()
	f.CreatedAt = r.Now()
	f.UpdatedAt = f.CreatedAt
	f.OutTime = dbTime(f.OutTime)
	f.InTime = dbTime(f.InTime)
	f.OutTimeActual = dbTimePtr(f.OutTimeActual)
	f.InTimeActual = dbTimePtr(f.InTimeActual)

	_, err := q.ExecContext(ctx, `
		INSERT INTO flights (
			id, user_id, airline_id, flight_number, departure_airport_id, arrival_airport_id,
			aircraft_type_id, airframe_id, out_time, in_time, out_time_actual, in_time_actual,
			calendar_source_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.ID, f.UserID, f.AirlineID, f.FlightNumber, f.DepartureAirportID, f.ArrivalAirportID,
		f.AircraftTypeID, f.AirframeID, f.OutTime, f.InTime, f.OutTimeActual, f.InTimeActual,
		f.CalendarSourceID, f.CreatedAt, f.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("inserting flight: %w", err)
	}

	return nil
}

// GetByID retrieves a flight by its ID.
func (r *FlightRepository) GetByID(ctx context.Context, id string) (*models.Flight, error) {
	f := &models.Flight{}

	err := scanFlight(r.DB().QueryRowContext(ctx, flightSelect+` WHERE f.id = ?`, id), f)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying flight: %w", err)
	}

	return f, nil
}

// ListByUser returns the user's flights, most recent first.
func (r *FlightRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Flight, error) {
	return r.query(ctx, flightSelect+`
		WHERE f.user_id = ?
		ORDER BY f.out_time DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
}

// ListByUserInRange returns the user's flights with a scheduled out time in
// [from, to].
func (r *FlightRepository) ListByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]models.Flight, error) {
	return r.query(ctx, flightSelect+`
		WHERE f.user_id = ? AND f.out_time >= ? AND f.out_time <= ?
		ORDER BY f.out_time`, userID, dbTime(from), dbTime(to))
}

// ListByAirframeInRange returns user and tracked flights of the airframe
// whose effective window intersects [from, to].
func (r *FlightRepository) ListByAirframeInRange(ctx context.Context, airframeID string, from, to time.Time) ([]models.Flight, error) {
	return r.query(ctx, flightSelect+`
		WHERE f.airframe_id = ?
		  AND COALESCE(f.out_time_actual, f.out_time) <= ?
		  AND COALESCE(f.in_time_actual, f.in_time) >= ?
		ORDER BY f.out_time`, airframeID, dbTime(to), dbTime(from))
}

// Delete removes a flight.
func (r *FlightRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM flights WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting flight: %w", err)
	}
	return requireRow(result, "flight", id)
}

var _ flight.AirframeFlightStore = (*FlightRepository)(nil)
