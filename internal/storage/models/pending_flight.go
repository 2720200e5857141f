package models

import (
	"time"
)

// ParsedFlightCandidate is the best-effort structure extracted from a
// calendar event. Absent fields are nil, never empty strings.
type ParsedFlightCandidate struct {
	AirlineCode      *string    `json:"airline_code,omitempty"`
	FlightNumber     *int       `json:"flight_number,omitempty"`
	DepartureAirport *string    `json:"departure_airport,omitempty"`
	ArrivalAirport   *string    `json:"arrival_airport,omitempty"`
	OutTime          *time.Time `json:"out_time,omitempty"`
	InTime           *time.Time `json:"in_time,omitempty"`
	RawSummary       string     `json:"raw_summary"`
}

// PendingFlight is a detected but unconfirmed flight awaiting review.
type PendingFlight struct {
	ID               string                `json:"id"`
	CalendarSourceID string                `json:"calendar_source_id"`
	ParsedData       ParsedFlightCandidate `json:"parsed_data"`
	DetectedAt       time.Time             `json:"detected_at"`
	Fingerprint      string                `json:"fingerprint"`
	Status           string                `json:"status"`
	RejectedAt       *time.Time            `json:"rejected_at,omitempty"`
	ErrorMessage     *string               `json:"error_message,omitempty"`
	FlightID         *string               `json:"flight_id,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// Pending flight status constants
const (
	PendingStatusPending          = "pending"
	PendingStatusAutoImported     = "auto_imported"
	PendingStatusAutoImportFailed = "auto_import_failed"
	PendingStatusRejected         = "rejected"
	PendingStatusRestored         = "restored" // read as pending; Restore itself writes pending
)

// IsReviewable returns true if the record still needs a human decision.
func (p *PendingFlight) IsReviewable() bool {
	switch p.Status {
	case PendingStatusPending, PendingStatusAutoImportFailed, PendingStatusRestored:
		return true
	}
	return false
}

// InCooldown returns true if the record was rejected less than cooldown ago.
func (p *PendingFlight) InCooldown(now time.Time, cooldown time.Duration) bool {
	if p.Status != PendingStatusRejected || p.RejectedAt == nil {
		return false
	}
	return !now.After(p.RejectedAt.Add(cooldown))
}

// PendingFlightPage is one page of pending flights.
type PendingFlightPage struct {
	Flights []PendingFlight `json:"flights"`
	Total   int             `json:"total"`
	HasMore bool            `json:"has_more"`
}

// FlightOverrides carries reviewer corrections applied on approval.
type FlightOverrides struct {
	AirlineCode      *string    `json:"airline_code,omitempty"`
	FlightNumber     *int       `json:"flight_number,omitempty"`
	DepartureAirport *string    `json:"departure_airport,omitempty"`
	ArrivalAirport   *string    `json:"arrival_airport,omitempty"`
	OutTime          *time.Time `json:"out_time,omitempty"`
	InTime           *time.Time `json:"in_time,omitempty"`
	AircraftType     *string    `json:"aircraft_type,omitempty"`
	TailNumber       *string    `json:"tail_number,omitempty"`
}

// BulkResult is the per-id outcome of a bulk review operation.
type BulkResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
