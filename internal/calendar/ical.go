// Package calendar fetches external iCal feeds and turns their events into
// pending flights for review.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/logger"
	"github.com/flight-logger/backend/internal/storage/models"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultHorizon      = 365 * 24 * time.Hour

	maxFeedBytes             = 10 << 20
	maxOccurrencesPerEvent   = 1000
	recurrencePastLookbehind = 30 * 24 * time.Hour
)

// ICSFetcher downloads and parses iCal feeds. Recurring events are expanded
// into individual occurrences up to the horizon.
type ICSFetcher struct {
	httpClient *http.Client
	horizon    time.Duration
	now        func() time.Time
}

// NewICSFetcher creates a fetcher. Non-positive values use the defaults.
func NewICSFetcher(timeout time.Duration, horizonDays int) *ICSFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	horizon := defaultHorizon
	if horizonDays > 0 {
		horizon = time.Duration(horizonDays) * 24 * time.Hour
	}
	return &ICSFetcher{
		httpClient: &http.Client{Timeout: timeout},
		horizon:    horizon,
		now:        time.Now,
	}
}

// Fetch downloads and parses the feed at url. Every failure wraps
// flight.ErrFetch.
func (f *ICSFetcher) Fetch(ctx context.Context, url string) ([]models.CalendarEvent, error) {
	if strings.HasPrefix(url, "webcal://") {
		url = "https://" + strings.TrimPrefix(url, "webcal://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", flight.ErrFetch, err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flight.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: calendar returned status %d", flight.ErrFetch, resp.StatusCode)
	}

	events, err := f.Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flight.ErrFetch, err)
	}
	return events, nil
}

// Parse reads iCal data and returns its events with recurrences expanded.
func (f *ICSFetcher) Parse(r io.Reader) ([]models.CalendarEvent, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	vevents := cal.Events()

	// RECURRENCE-ID instances replace the matching occurrence of their series.
	overridden := make(map[string][]time.Time)
	for _, ve := range vevents {
		if rid := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); rid != nil {
			fallback := time.Local
			if start, err := ve.GetStartAt(); err == nil {
				fallback = start.Location()
			}
			if t, err := parseICSTime(rid.Value, propertyLocation(rid, fallback)); err == nil {
				uid := propertyValue(ve, ical.ComponentPropertyUniqueId)
				overridden[uid] = append(overridden[uid], t)
			}
		}
	}

	now := f.now()
	rangeStart := now.Add(-recurrencePastLookbehind)
	rangeEnd := now.Add(f.horizon)

	var events []models.CalendarEvent
	for _, ve := range vevents {
		base, err := eventFromVEvent(ve)
		if err != nil {
			logger.Debug("skipping calendar event", "uid", propertyValue(ve, ical.ComponentPropertyUniqueId), "error", err)
			continue
		}

		rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
		if rruleProp == nil || rruleProp.Value == "" {
			events = append(events, base)
			continue
		}

		occurrences, err := expandRecurring(ve, base, rruleProp.Value, overridden[base.UID], rangeStart, rangeEnd)
		if err != nil {
			logger.Warn("failed to expand recurring event", "uid", base.UID, "rrule", rruleProp.Value, "error", err)
			events = append(events, base)
			continue
		}
		events = append(events, occurrences...)
	}

	return events, nil
}

func eventFromVEvent(ve *ical.VEvent) (models.CalendarEvent, error) {
	ev := models.CalendarEvent{
		UID:         propertyValue(ve, ical.ComponentPropertyUniqueId),
		Summary:     unescapeText(propertyValue(ve, ical.ComponentPropertySummary)),
		Description: unescapeText(propertyValue(ve, ical.ComponentPropertyDescription)),
		Location:    unescapeText(propertyValue(ve, ical.ComponentPropertyLocation)),
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, fmt.Errorf("reading DTSTART: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil || end.Before(start) {
		end = start
	}
	ev.Start = start
	ev.End = end

	if dtStart := ve.GetProperty(ical.ComponentPropertyDtStart); dtStart != nil {
		if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			ev.AllDay = true
		}
		if !strings.Contains(dtStart.Value, "T") {
			ev.AllDay = true
		}
	}

	return ev, nil
}

// expandRecurring turns a series into its occurrences within
// [rangeStart, rangeEnd], dropping EXDATEs and overridden instances.
func expandRecurring(ve *ical.VEvent, base models.CalendarEvent, rule string, overridden []time.Time, rangeStart, rangeEnd time.Time) ([]models.CalendarEvent, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, err
	}
	r.DTStart(base.Start)

	var set rrule.Set
	set.RRule(r)

	loc := base.Start.Location()
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		exLoc := propertyLocation(p, loc)
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, exLoc); err == nil {
				set.ExDate(t.In(loc))
			}
		}
	}
	for _, t := range overridden {
		set.ExDate(t.In(loc))
	}

	starts := set.Between(rangeStart.In(loc), rangeEnd.In(loc), true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}

	duration := base.End.Sub(base.Start)
	occurrences := make([]models.CalendarEvent, 0, len(starts))
	for _, start := range starts {
		occ := base
		occ.Start = start
		occ.End = start.Add(duration)
		occurrences = append(occurrences, occ)
	}
	return occurrences, nil
}

func propertyValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

// unescapeText reverses iCal TEXT escaping.
func unescapeText(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}
	replacer := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return replacer.Replace(value)
}

// propertyLocation resolves the TZID parameter of p, or fallback when it is
// absent or unknown.
func propertyLocation(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	if tz, ok := p.ICalParameters["TZID"]; ok && len(tz) > 0 {
		if loc, err := time.LoadLocation(strings.Trim(tz[0], `"`)); err == nil {
			return loc
		}
		logger.Debug("unknown TZID, using fallback zone", "tzid", tz[0], "fallback", fallback.String())
	}
	return fallback
}

// parseICSTime parses the basic DATE / DATE-TIME forms used by EXDATE and
// RECURRENCE-ID. Values without a UTC marker are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
