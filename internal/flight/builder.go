package flight

import (
	"context"
	"fmt"
	"strings"

	"github.com/flight-logger/backend/internal/storage/models"
)

// ReferenceResolver maps text codes to reference records. Lookups return
// (nil, nil) when nothing matches.
type ReferenceResolver interface {
	ResolveAirline(ctx context.Context, code string) (*models.Airline, error)
	ResolveAirport(ctx context.Context, code string) (*models.Airport, error)
	ResolveAircraftType(ctx context.Context, code string) (*models.AircraftType, error)
	ResolveAirframe(ctx context.Context, registration string) (*models.Airframe, error)
}

// Builder turns a parsed candidate, plus optional reviewer overrides, into a
// flight log record with resolved foreign keys.
type Builder struct {
	refs ReferenceResolver
}

// NewBuilder creates a builder backed by the given resolver.
func NewBuilder(refs ReferenceResolver) *Builder {
	return &Builder{refs: refs}
}

// Build validates and resolves the candidate. The returned flight has no ID;
// the store assigns one on insert. Missing required fields yield
// ErrValidationFailed, unknown codes ErrResolutionFailed.
func (b *Builder) Build(ctx context.Context, userID string, candidate models.ParsedFlightCandidate, overrides *models.FlightOverrides) (*models.Flight, error) {
	c := applyOverrides(candidate, overrides)

	var missing []string
	if isBlank(c.DepartureAirport) {
		missing = append(missing, "departure airport")
	}
	if isBlank(c.ArrivalAirport) {
		missing = append(missing, "arrival airport")
	}
	if c.OutTime == nil {
		missing = append(missing, "out time")
	}
	if c.InTime == nil {
		missing = append(missing, "in time")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrValidationFailed, strings.Join(missing, ", "))
	}
	if c.InTime.Before(*c.OutTime) {
		return nil, fmt.Errorf("%w: in time before out time", ErrValidationFailed)
	}

	uid := userID
	f := &models.Flight{
		UserID:       &uid,
		FlightNumber: c.FlightNumber,
		OutTime:      c.OutTime.UTC(),
		InTime:       c.InTime.UTC(),
	}

	if !isBlank(c.AirlineCode) {
		airline, err := b.refs.ResolveAirline(ctx, upper(c.AirlineCode))
		if err != nil {
			return nil, fmt.Errorf("resolving airline: %w", err)
		}
		if airline == nil {
			return nil, fmt.Errorf("%w: unknown airline %q", ErrResolutionFailed, *c.AirlineCode)
		}
		code := airline.Code()
		f.AirlineID = &airline.ID
		f.AirlineCode = &code
		f.AirlineICAO = airline.ICAO
	}

	dep, err := b.resolveAirport(ctx, upper(c.DepartureAirport))
	if err != nil {
		return nil, err
	}
	arr, err := b.resolveAirport(ctx, upper(c.ArrivalAirport))
	if err != nil {
		return nil, err
	}
	f.DepartureAirportID, f.DepartureAirport = dep.ID, dep.IATA
	f.ArrivalAirportID, f.ArrivalAirport = arr.ID, arr.IATA

	if overrides != nil && !isBlank(overrides.TailNumber) {
		airframe, err := b.refs.ResolveAirframe(ctx, upper(overrides.TailNumber))
		if err != nil {
			return nil, fmt.Errorf("resolving airframe: %w", err)
		}
		if airframe == nil {
			return nil, fmt.Errorf("%w: unknown tail number %q", ErrResolutionFailed, *overrides.TailNumber)
		}
		f.AirframeID = &airframe.ID
		f.AircraftTypeID = airframe.AircraftTypeID
	}

	if overrides != nil && !isBlank(overrides.AircraftType) {
		aircraft, err := b.refs.ResolveAircraftType(ctx, upper(overrides.AircraftType))
		if err != nil {
			return nil, fmt.Errorf("resolving aircraft type: %w", err)
		}
		if aircraft == nil {
			return nil, fmt.Errorf("%w: unknown aircraft type %q", ErrResolutionFailed, *overrides.AircraftType)
		}
		f.AircraftTypeID = &aircraft.ID
	}

	return f, nil
}

func (b *Builder) resolveAirport(ctx context.Context, code string) (*models.Airport, error) {
	airport, err := b.refs.ResolveAirport(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("resolving airport: %w", err)
	}
	if airport == nil {
		return nil, fmt.Errorf("%w: unknown airport %q", ErrResolutionFailed, code)
	}
	return airport, nil
}

// applyOverrides returns a copy of candidate with every non-nil override
// field applied.
func applyOverrides(candidate models.ParsedFlightCandidate, o *models.FlightOverrides) models.ParsedFlightCandidate {
	if o == nil {
		return candidate
	}
	if o.AirlineCode != nil {
		candidate.AirlineCode = o.AirlineCode
	}
	if o.FlightNumber != nil {
		candidate.FlightNumber = o.FlightNumber
	}
	if o.DepartureAirport != nil {
		candidate.DepartureAirport = o.DepartureAirport
	}
	if o.ArrivalAirport != nil {
		candidate.ArrivalAirport = o.ArrivalAirport
	}
	if o.OutTime != nil {
		candidate.OutTime = o.OutTime
	}
	if o.InTime != nil {
		candidate.InTime = o.InTime
	}
	return candidate
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func upper(s *string) string {
	return strings.ToUpper(strings.TrimSpace(*s))
}
