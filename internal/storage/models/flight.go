package models

import (
	"strings"
	"time"
)

// Flight is an entry in the flight log. Rows with a nil UserID are
// externally tracked flights of an airframe, not owned by any user.
type Flight struct {
	ID                 string     `json:"id"`
	UserID             *string    `json:"user_id,omitempty"`
	AirlineID          *string    `json:"airline_id,omitempty"`
	AirlineCode        *string    `json:"airline_code,omitempty"`
	AirlineICAO        *string    `json:"airline_icao,omitempty"`
	FlightNumber       *int       `json:"flight_number,omitempty"`
	DepartureAirportID string     `json:"departure_airport_id"`
	DepartureAirport   string     `json:"departure_airport"`
	ArrivalAirportID   string     `json:"arrival_airport_id"`
	ArrivalAirport     string     `json:"arrival_airport"`
	AircraftTypeID     *string    `json:"aircraft_type_id,omitempty"`
	AirframeID         *string    `json:"airframe_id,omitempty"`
	OutTime            time.Time  `json:"out_time"`
	InTime             time.Time  `json:"in_time"`
	OutTimeActual      *time.Time `json:"out_time_actual,omitempty"`
	InTimeActual       *time.Time `json:"in_time_actual,omitempty"`
	CalendarSourceID   *string    `json:"calendar_source_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsTracked returns true for externally tracked (non user-owned) flights.
func (f *Flight) IsTracked() bool {
	return f.UserID == nil
}

// EffectiveOut returns the actual out time, falling back to scheduled.
func (f *Flight) EffectiveOut() time.Time {
	if f.OutTimeActual != nil {
		return *f.OutTimeActual
	}
	return f.OutTime
}

// EffectiveIn returns the actual in time, falling back to scheduled.
func (f *Flight) EffectiveIn() time.Time {
	if f.InTimeActual != nil {
		return *f.InTimeActual
	}
	return f.InTime
}

// HasAirlineCode reports whether code names the flight's airline by either
// its IATA or its ICAO designator.
func (f *Flight) HasAirlineCode(code string) bool {
	for _, c := range []*string{f.AirlineCode, f.AirlineICAO} {
		if c != nil && strings.EqualFold(*c, code) {
			return true
		}
	}
	return false
}
