package models

// Airline is reference data for an operating carrier.
type Airline struct {
	ID   string  `json:"id"`
	IATA *string `json:"iata,omitempty"`
	ICAO *string `json:"icao,omitempty"`
	Name string  `json:"name"`
}

// Code returns the preferred display code (IATA, else ICAO).
func (a *Airline) Code() string {
	if a.IATA != nil && *a.IATA != "" {
		return *a.IATA
	}
	if a.ICAO != nil {
		return *a.ICAO
	}
	return ""
}

// Airport is reference data for an airport.
type Airport struct {
	ID       string  `json:"id"`
	IATA     string  `json:"iata"`
	ICAO     *string `json:"icao,omitempty"`
	Name     string  `json:"name"`
	Timezone string  `json:"timezone"`
}

// AircraftType is reference data for an aircraft type designator.
type AircraftType struct {
	ID   string `json:"id"`
	ICAO string `json:"icao"`
	Name string `json:"name"`
}

// Airframe is a specific aircraft identified by its registration.
type Airframe struct {
	ID             string  `json:"id"`
	Registration   string  `json:"registration"`
	AircraftTypeID *string `json:"aircraft_type_id,omitempty"`
}
