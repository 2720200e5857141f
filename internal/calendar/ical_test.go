package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flight-logger/backend/internal/flight"
)

const sampleFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Flights//EN
BEGIN:VEVENT
UID:single@test
DTSTAMP:20291201T000000Z
DTSTART:20300110T090000Z
DTEND:20300110T150000Z
SUMMARY:AA 100 JFK-LAX
LOCATION:Terminal 8\, JFK
END:VEVENT
BEGIN:VEVENT
UID:allday@test
DTSTAMP:20291201T000000Z
DTSTART;VALUE=DATE:20300112
DTEND;VALUE=DATE:20300113
SUMMARY:Vacation
END:VEVENT
BEGIN:VEVENT
UID:weekly@test
DTSTAMP:20291201T000000Z
DTSTART:20300107T070000Z
DTEND:20300107T100000Z
RRULE:FREQ=WEEKLY;COUNT=3
EXDATE:20300114T070000Z
SUMMARY:UA 57 SFO-EWR
END:VEVENT
END:VCALENDAR
`

func testFetcher() *ICSFetcher {
	f := NewICSFetcher(5*time.Second, 365)
	f.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestParseFeed(t *testing.T) {
	events, err := testFetcher().Parse(strings.NewReader(crlf(sampleFeed)))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	byUID := map[string]int{}
	for _, ev := range events {
		byUID[ev.UID]++
	}
	if byUID["single@test"] != 1 || byUID["allday@test"] != 1 {
		t.Errorf("single/all-day counts = %v", byUID)
	}
	if byUID["weekly@test"] != 2 {
		t.Errorf("weekly occurrences = %d, want 2", byUID["weekly@test"])
	}

	for _, ev := range events {
		switch ev.UID {
		case "single@test":
			if ev.Summary != "AA 100 JFK-LAX" {
				t.Errorf("Summary = %q", ev.Summary)
			}
			if ev.Location != "Terminal 8, JFK" {
				t.Errorf("Location = %q, want unescaped", ev.Location)
			}
			if want := time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC); !ev.Start.Equal(want) {
				t.Errorf("Start = %v, want %v", ev.Start, want)
			}
			if ev.AllDay {
				t.Error("timed event marked all-day")
			}
		case "allday@test":
			if !ev.AllDay {
				t.Error("date-only event not marked all-day")
			}
		case "weekly@test":
			if ev.End.Sub(ev.Start) != 3*time.Hour {
				t.Errorf("occurrence length = %v, want 3h", ev.End.Sub(ev.Start))
			}
			if ev.Start.Day() == 14 {
				t.Error("EXDATE occurrence was not removed")
			}
		}
	}
}

func TestParseFeedRecurrenceOverride(t *testing.T) {
	feed := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Flights//EN
BEGIN:VEVENT
UID:series@test
DTSTAMP:20291201T000000Z
DTSTART:20300107T070000Z
DTEND:20300107T100000Z
RRULE:FREQ=DAILY;COUNT=3
SUMMARY:DL 12 ATL-SEA
END:VEVENT
BEGIN:VEVENT
UID:series@test
DTSTAMP:20291201T000000Z
RECURRENCE-ID:20300108T070000Z
DTSTART:20300108T120000Z
DTEND:20300108T150000Z
SUMMARY:DL 14 ATL-SEA
END:VEVENT
END:VCALENDAR
`
	events, err := testFetcher().Parse(strings.NewReader(crlf(feed)))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Parse() returned %d events, want 3", len(events))
	}

	var moved int
	for _, ev := range events {
		if ev.Summary == "DL 14 ATL-SEA" {
			moved++
			if ev.Start.Hour() != 12 {
				t.Errorf("override Start = %v, want 12:00", ev.Start)
			}
		}
		if ev.Summary == "DL 12 ATL-SEA" && ev.Start.Day() == 8 {
			t.Error("overridden occurrence still present")
		}
	}
	if moved != 1 {
		t.Errorf("override events = %d, want 1", moved)
	}
}

func TestParseFeedZonedExceptions(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	feed := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Flights//EN
BEGIN:VEVENT
UID:zoned@test
DTSTAMP:20291201T000000Z
DTSTART;TZID=America/New_York:20300107T070000
DTEND;TZID=America/New_York:20300107T100000
RRULE:FREQ=WEEKLY;COUNT=3
EXDATE;TZID=America/New_York:20300114T070000
SUMMARY:B6 415 JFK-SFO
END:VEVENT
BEGIN:VEVENT
UID:zoned@test
DTSTAMP:20291201T000000Z
RECURRENCE-ID;TZID=America/New_York:20300121T070000
DTSTART;TZID=America/New_York:20300121T090000
DTEND;TZID=America/New_York:20300121T120000
SUMMARY:B6 417 JFK-SFO
END:VEVENT
END:VCALENDAR
`
	events, err := testFetcher().Parse(strings.NewReader(crlf(feed)))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Parse() returned %d events, want 2: %+v", len(events), events)
	}
	for _, ev := range events {
		day := ev.Start.In(ny).Day()
		switch ev.Summary {
		case "B6 415 JFK-SFO":
			if day != 7 {
				t.Errorf("series occurrence on day %d, want only day 7", day)
			}
		case "B6 417 JFK-SFO":
			if day != 21 || ev.Start.In(ny).Hour() != 9 {
				t.Errorf("override Start = %v, want Jan 21 09:00 New York", ev.Start)
			}
		default:
			t.Errorf("unexpected event %q", ev.Summary)
		}
	}
}

func TestParseFeedInvalid(t *testing.T) {
	if _, err := testFetcher().Parse(strings.NewReader("not a calendar")); err == nil {
		t.Error("Parse() error = nil, want error")
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.ics":
			w.Header().Set("Content-Type", "text/calendar")
			_, _ = w.Write([]byte(crlf(sampleFeed)))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	f := testFetcher()

	events, err := f.Fetch(context.Background(), srv.URL+"/ok.ics")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(events) != 4 {
		t.Errorf("Fetch() returned %d events, want 4", len(events))
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/broken.ics"); !errors.Is(err, flight.ErrFetch) {
		t.Errorf("Fetch() error = %v, want ErrFetch", err)
	}

	if _, err := f.Fetch(context.Background(), "http://127.0.0.1:0/unreachable.ics"); !errors.Is(err, flight.ErrFetch) {
		t.Errorf("Fetch() unreachable error = %v, want ErrFetch", err)
	}
}
