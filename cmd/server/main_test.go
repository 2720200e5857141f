package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flight-logger/backend/internal/storage"
	"github.com/flight-logger/backend/internal/storage/models"
)

const referenceYAML = `
airlines:
  - iata: aa
    icao: AAL
    name: American Airlines
airports:
  - iata: JFK
    icao: KJFK
    name: John F Kennedy
    timezone: America/New_York
aircraft_types:
  - icao: A321
    name: Airbus A321
airframes:
  - registration: N123AA
    aircraft_type: A321
`

func TestImportReferences(t *testing.T) {
	db, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	defer db.Close()
	refs := storage.NewReferenceRepository(db)
	ctx := context.Background()

	var file referenceFile
	if err := yaml.Unmarshal([]byte(referenceYAML), &file); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}

	// Importing twice updates in place.
	for i := 0; i < 2; i++ {
		counts, err := importReferences(ctx, refs, &file)
		if err != nil {
			t.Fatalf("importReferences() error = %v", err)
		}
		if counts != (importCounts{1, 1, 1, 1}) {
			t.Errorf("counts = %+v", counts)
		}
	}

	airline, err := refs.ResolveAirline(ctx, "AAL")
	if err != nil || airline == nil || airline.Code() != "AA" {
		t.Fatalf("ResolveAirline(AAL) = %+v, %v", airline, err)
	}
	var airlines int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM airlines`).Scan(&airlines); err != nil || airlines != 1 {
		t.Errorf("airline rows = %d, %v; want 1", airlines, err)
	}

	frame, err := refs.ResolveAirframe(ctx, "n123aa")
	if err != nil || frame == nil || frame.AircraftTypeID == nil {
		t.Errorf("ResolveAirframe() = %+v, %v; want typed airframe", frame, err)
	}

	file.Airframes[0].AircraftType = "B748"
	if _, err := importReferences(ctx, refs, &file); err == nil || !strings.Contains(err.Error(), "B748") {
		t.Errorf("importReferences() with unknown type error = %v", err)
	}
}

func TestRenderSyncResults(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	out := renderSyncResults([]models.SyncResult{
		{CalendarName: "Travel", TotalEventsFound: 1200, TotalFutureFlights: 3, NewPendingFlights: 2, SkippedAlreadyPending: 1, SyncedAt: now.Add(-time.Minute)},
		{CalendarName: "Broken", FetchFailed: true, SyncedAt: now},
	}, now)

	for _, want := range []string{"Travel", "1,200", "1 minute ago", "Broken", "fetch failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestOptionsLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	opts := &options{
		configPath: filepath.Join(dir, "config.yaml"),
		addr:       ":9000",
		dataDir:    filepath.Join(dir, "data"),
	}

	cfg, err := opts.load()
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Listen != ":9000" || cfg.DataDir != opts.dataDir {
		t.Errorf("cfg = %+v, want overrides applied", cfg)
	}
	if _, err := os.Stat(opts.configPath); err != nil {
		t.Errorf("default config not written: %v", err)
	}
}
