package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flight-logger/backend/internal/storage"
	"github.com/flight-logger/backend/internal/storage/models"
)

// referenceFile is the YAML layout accepted by "reference import".
type referenceFile struct {
	Airlines []struct {
		IATA string `yaml:"iata"`
		ICAO string `yaml:"icao"`
		Name string `yaml:"name"`
	} `yaml:"airlines"`
	Airports []struct {
		IATA     string `yaml:"iata"`
		ICAO     string `yaml:"icao"`
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"airports"`
	AircraftTypes []struct {
		ICAO string `yaml:"icao"`
		Name string `yaml:"name"`
	} `yaml:"aircraft_types"`
	Airframes []struct {
		Registration string `yaml:"registration"`
		AircraftType string `yaml:"aircraft_type"`
	} `yaml:"airframes"`
}

type importCounts struct {
	airlines, airports, aircraftTypes, airframes int
}

func newReferenceCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Manage airline, airport, and aircraft reference data",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Insert or update reference data from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var file referenceFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := importReferences(cmd.Context(), a.refs, &file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d airlines, %d airports, %d aircraft types, %d airframes\n",
				counts.airlines, counts.airports, counts.aircraftTypes, counts.airframes)
			return nil
		},
	})

	return cmd
}

func importReferences(ctx context.Context, refs *storage.ReferenceRepository, file *referenceFile) (importCounts, error) {
	var counts importCounts

	for _, in := range file.Airlines {
		a := &models.Airline{Name: in.Name, IATA: optional(in.IATA), ICAO: optional(in.ICAO)}
		// Airlines have no natural key; update the row an existing code resolves to.
		existing, err := refs.ResolveAirline(ctx, a.Code())
		if err != nil {
			return counts, err
		}
		if existing != nil {
			a.ID = existing.ID
		}
		if err := refs.UpsertAirline(ctx, a); err != nil {
			return counts, err
		}
		counts.airlines++
	}

	for _, in := range file.Airports {
		a := &models.Airport{IATA: in.IATA, ICAO: optional(in.ICAO), Name: in.Name, Timezone: in.Timezone}
		if err := refs.UpsertAirport(ctx, a); err != nil {
			return counts, err
		}
		counts.airports++
	}

	for _, in := range file.AircraftTypes {
		if err := refs.UpsertAircraftType(ctx, &models.AircraftType{ICAO: in.ICAO, Name: in.Name}); err != nil {
			return counts, err
		}
		counts.aircraftTypes++
	}

	for _, in := range file.Airframes {
		frame := &models.Airframe{Registration: in.Registration}
		if in.AircraftType != "" {
			t, err := refs.ResolveAircraftType(ctx, in.AircraftType)
			if err != nil {
				return counts, err
			}
			if t == nil {
				return counts, fmt.Errorf("airframe %s: unknown aircraft type %s", in.Registration, in.AircraftType)
			}
			frame.AircraftTypeID = &t.ID
		}
		if err := refs.UpsertAirframe(ctx, frame); err != nil {
			return counts, err
		}
		counts.airframes++
	}

	return counts, nil
}

func optional(s string) *string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return &s
}
