// Package flight holds the flight-domain logic shared by calendar sync and
// review: summary parsing, window matching, reconciliation of tracked
// flights, and building flight log records from candidates.
package flight

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/flight-logger/backend/internal/storage/models"
)

var (
	// Airline designator (IATA 2-char with at least one letter, or ICAO
	// 3-letter) followed by a 1-4 digit flight number and an optional
	// operational suffix.
	designatorPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]|[0-9][A-Z]|[A-Z]{3})\s?(\d{1,4})[A-Z]?\b`)

	// Flight number without an airline: "Flight 123", "Flt. 12", "#123".
	bareNumberPattern = regexp.MustCompile(`(?i)\b(?:flight|flt)\.?\s*#?\s*(\d{1,4})\b|#(\d{1,4})\b`)

	routePattern   = regexp.MustCompile(`\b([A-Z]{3})\s*(?:→|⇒|->|=>|>|–|—|-|/|\s(?:to|TO)\s)\s*([A-Z]{3})\b`)
	airportPattern = regexp.MustCompile(`\b[A-Z]{3}\b`)

	datePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	dateTail    = regexp.MustCompile(`^-\d{2}-\d{2}`)
	timePattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?:\s*([AaPp][Mm]))?\b`)
)

// Parse extracts a flight candidate from a calendar event summary. It
// returns nil when the text contains neither an airline designator nor a
// flight-number-like token. Fields that cannot be found are left nil.
func Parse(summary string) *models.ParsedFlightCandidate {
	if strings.TrimSpace(summary) == "" {
		return nil
	}

	// Fold full-width and compatibility characters to their ASCII forms.
	text := norm.NFKC.String(summary)

	candidate := &models.ParsedFlightCandidate{RawSummary: summary}
	designatorSpan := []int{-1, -1}

	if m := pickDesignator(text); m != nil {
		code := text[m[2]:m[3]]
		if number, err := strconv.Atoi(text[m[4]:m[5]]); err == nil {
			candidate.AirlineCode = &code
			candidate.FlightNumber = &number
			designatorSpan = []int{m[0], m[1]}
		}
	}

	if candidate.FlightNumber == nil {
		if m := bareNumberPattern.FindStringSubmatch(text); m != nil {
			digits := m[1]
			if digits == "" {
				digits = m[2]
			}
			if number, err := strconv.Atoi(digits); err == nil {
				candidate.FlightNumber = &number
			}
		}
	}

	if candidate.AirlineCode == nil && candidate.FlightNumber == nil {
		return nil
	}

	parseAirports(text, designatorSpan, candidate)
	parseTimes(text, candidate)

	return candidate
}

// pickDesignator returns the submatch indexes of the airline designator.
// Clock times ("CEO 10:00") and date years ("LAX 2026-05-01") are not
// designators. A match whose code is an airport of the route is used only
// when nothing else qualifies.
func pickDesignator(text string) []int {
	var route []int
	if m := routePattern.FindStringSubmatchIndex(text); m != nil {
		route = m
	}

	var fallback []int
	for _, m := range designatorPattern.FindAllStringSubmatchIndex(text, -1) {
		if m[5] < len(text) && text[m[5]] == ':' {
			continue
		}
		if dateTail.MatchString(text[m[5]:]) {
			continue
		}
		if route != nil && (m[2] == route[2] || m[2] == route[4]) {
			if fallback == nil {
				fallback = m
			}
			continue
		}
		return m
	}
	return fallback
}

// parseAirports fills departure/arrival from an explicit route, or from
// the first two standalone 3-letter codes outside the designator.
func parseAirports(text string, designatorSpan []int, candidate *models.ParsedFlightCandidate) {
	if m := routePattern.FindStringSubmatch(text); m != nil {
		dep, arr := m[1], m[2]
		if dep != arr {
			candidate.DepartureAirport = &dep
			candidate.ArrivalAirport = &arr
			return
		}
	}

	var codes []string
	for _, loc := range airportPattern.FindAllStringIndex(text, -1) {
		if loc[0] >= designatorSpan[0] && loc[1] <= designatorSpan[1] {
			continue
		}
		code := text[loc[0]:loc[1]]
		if candidate.AirlineCode != nil && code == *candidate.AirlineCode {
			continue
		}
		codes = append(codes, code)
		if len(codes) == 2 {
			break
		}
	}

	if len(codes) == 2 && codes[0] != codes[1] {
		candidate.DepartureAirport = &codes[0]
		candidate.ArrivalAirport = &codes[1]
	}
}

// parseTimes sets out/in instants (UTC) when the text carries an explicit
// date. Clock times without a date cannot be anchored and are ignored.
func parseTimes(text string, candidate *models.ParsedFlightCandidate) {
	dm := datePattern.FindStringSubmatch(text)
	if dm == nil {
		return
	}
	day, err := time.Parse("2006-01-02", dm[1])
	if err != nil {
		return
	}

	var clocks []time.Duration
	for _, m := range timePattern.FindAllStringSubmatch(text, 2) {
		if offset, ok := clockOffset(m[1], m[2], m[3]); ok {
			clocks = append(clocks, offset)
		}
	}

	if len(clocks) == 0 {
		return
	}

	out := day.Add(clocks[0])
	candidate.OutTime = &out

	if len(clocks) > 1 {
		in := day.Add(clocks[1])
		if in.Before(out) {
			in = in.Add(24 * time.Hour)
		}
		candidate.InTime = &in
	}
}

// clockOffset converts "HH", "MM", and an optional am/pm marker into an
// offset from midnight.
func clockOffset(hh, mm, meridiem string) (time.Duration, bool) {
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute > 59 {
		return 0, false
	}

	switch strings.ToLower(meridiem) {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, false
		}
	}

	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, true
}
