package main

import (
	"fmt"

	"github.com/flight-logger/backend/internal/calendar"
	"github.com/flight-logger/backend/internal/config"
	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/storage"
)

// app holds the storage layer and the domain services built on it.
type app struct {
	cfg *config.Config
	db  *storage.DB

	sources *storage.CalendarSourceRepository
	pending *storage.PendingFlightRepository
	flights *storage.FlightRepository
	refs    *storage.ReferenceRepository

	builder    *flight.Builder
	reconciler *flight.Reconciler
	classifier *calendar.Classifier
	fetcher    *calendar.ICSFetcher
}

func openApp(cfg *config.Config) (*app, error) {
	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{
		cfg:     cfg,
		db:      db,
		sources: storage.NewCalendarSourceRepository(db),
		pending: storage.NewPendingFlightRepository(db),
		flights: storage.NewFlightRepository(db),
		refs:    storage.NewReferenceRepository(db),
	}
	a.builder = flight.NewBuilder(a.refs)
	a.reconciler = flight.NewReconciler(a.flights, cfg.ReconcileTolerance(), cfg.ReconcileSearchWindow())
	a.classifier = calendar.NewClassifier(cfg.RejectionCooldown(), cfg.MatchTolerance())
	a.fetcher = calendar.NewICSFetcher(cfg.FetchTimeout(), cfg.Sync.HorizonDays)
	return a, nil
}

func (a *app) syncService(opts ...calendar.SyncOption) *calendar.SyncService {
	opts = append([]calendar.SyncOption{calendar.WithReconciler(a.reconciler)}, opts...)
	return calendar.NewSyncService(a.sources, a.pending, a.flights, a.fetcher, a.builder, a.classifier, opts...)
}

func (a *app) Close() error {
	return a.db.Close()
}
