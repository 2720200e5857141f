package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/storage/models"
)

// ReferenceRepository resolves airline, airport, aircraft type, and airframe
// codes. Lookups return (nil, nil) when nothing matches.
type ReferenceRepository struct {
	BaseRepository
}

// NewReferenceRepository creates a new reference data repository.
func NewReferenceRepository(db *DB) *ReferenceRepository {
	return &ReferenceRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

var _ flight.ReferenceResolver = (*ReferenceRepository)(nil)

// ResolveAirline matches a 2-character IATA or 3-character ICAO code.
func (r *ReferenceRepository) ResolveAirline(ctx context.Context, code string) (*models.Airline, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	column := "iata"
	if len(code) == 3 {
		column = "icao"
	}

	a := &models.Airline{}
	err := r.DB().QueryRowContext(ctx,
		`SELECT id, iata, icao, name FROM airlines WHERE `+column+` = ? ORDER BY name LIMIT 1`, code,
	).Scan(&a.ID, &a.IATA, &a.ICAO, &a.Name)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying airline: %w", err)
	}

	return a, nil
}

// ResolveAirport matches a 3-character IATA or 4-character ICAO code.
func (r *ReferenceRepository) ResolveAirport(ctx context.Context, code string) (*models.Airport, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	column := "iata"
	if len(code) == 4 {
		column = "icao"
	}

	a := &models.Airport{}
	err := r.DB().QueryRowContext(ctx,
		`SELECT id, iata, icao, name, timezone FROM airports WHERE `+column+` = ? LIMIT 1`, code,
	).Scan(&a.ID, &a.IATA, &a.ICAO, &a.Name, &a.Timezone)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying airport: %w", err)
	}

	return a, nil
}

// ResolveAircraftType matches an ICAO type designator.
func (r *ReferenceRepository) ResolveAircraftType(ctx context.Context, code string) (*models.AircraftType, error) {
	t := &models.AircraftType{}
	err := r.DB().QueryRowContext(ctx,
		`SELECT id, icao, name FROM aircraft_types WHERE icao = ?`, strings.ToUpper(strings.TrimSpace(code)),
	).Scan(&t.ID, &t.ICAO, &t.Name)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying aircraft type: %w", err)
	}

	return t, nil
}

// ResolveAirframe matches a registration, ignoring case and dashes.
func (r *ReferenceRepository) ResolveAirframe(ctx context.Context, registration string) (*models.Airframe, error) {
	reg := normalizeRegistration(registration)

	a := &models.Airframe{}
	err := r.DB().QueryRowContext(ctx,
		`SELECT id, registration, aircraft_type_id FROM airframes WHERE REPLACE(registration, '-', '') = ?`, reg,
	).Scan(&a.ID, &a.Registration, &a.AircraftTypeID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying airframe: %w", err)
	}

	return a, nil
}

// GetAirframe retrieves an airframe by its ID.
func (r *ReferenceRepository) GetAirframe(ctx context.Context, id string) (*models.Airframe, error) {
	a := &models.Airframe{}
	err := r.DB().QueryRowContext(ctx,
		`SELECT id, registration, aircraft_type_id FROM airframes WHERE id = ?`, id,
	).Scan(&a.ID, &a.Registration, &a.AircraftTypeID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying airframe: %w", err)
	}

	return a, nil
}

// UpsertAirline inserts or replaces an airline, generating an ID if empty.
func (r *ReferenceRepository) UpsertAirline(ctx context.Context, a *models.Airline) error {
	if a.ID == "" {
		a.ID = GenerateID()
	}
	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO airlines (id, iata, icao, name) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET iata = excluded.iata, icao = excluded.icao, name = excluded.name
	`, a.ID, a.IATA, a.ICAO, a.Name)
	if err != nil {
		return fmt.Errorf("upserting airline: %w", err)
	}
	return nil
}

// UpsertAirport inserts or updates an airport keyed by IATA code.
func (r *ReferenceRepository) UpsertAirport(ctx context.Context, a *models.Airport) error {
	if a.ID == "" {
		a.ID = GenerateID()
	}
	if a.Timezone == "" {
		a.Timezone = "UTC"
	}
	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO airports (id, iata, icao, name, timezone) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (iata) DO UPDATE SET icao = excluded.icao, name = excluded.name, timezone = excluded.timezone
		RETURNING id
	`, a.ID, strings.ToUpper(a.IATA), a.ICAO, a.Name, a.Timezone).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("upserting airport: %w", err)
	}
	return nil
}

// UpsertAircraftType inserts or updates an aircraft type keyed by ICAO code.
func (r *ReferenceRepository) UpsertAircraftType(ctx context.Context, t *models.AircraftType) error {
	if t.ID == "" {
		t.ID = GenerateID()
	}
	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO aircraft_types (id, icao, name) VALUES (?, ?, ?)
		ON CONFLICT (icao) DO UPDATE SET name = excluded.name
		RETURNING id
	`, t.ID, strings.ToUpper(t.ICAO), t.Name).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("upserting aircraft type: %w", err)
	}
	return nil
}

// UpsertAirframe inserts or updates an airframe keyed by registration.
func (r *ReferenceRepository) UpsertAirframe(ctx context.Context, a *models.Airframe) error {
	if a.ID == "" {
		a.ID = GenerateID()
	}
	err := r.DB().QueryRowContext(ctx, `
		INSERT INTO airframes (id, registration, aircraft_type_id) VALUES (?, ?, ?)
		ON CONFLICT (registration) DO UPDATE SET aircraft_type_id = excluded.aircraft_type_id
		RETURNING id
	`, a.ID, strings.ToUpper(a.Registration), a.AircraftTypeID).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("upserting airframe: %w", err)
	}
	return nil
}

func normalizeRegistration(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "")
}
