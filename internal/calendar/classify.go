package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/flight-logger/backend/internal/flight"
	"github.com/flight-logger/backend/internal/storage/models"
)

// Classification statuses, in precedence order.
const (
	StatusAlreadyImported  = "already_imported"
	StatusAlreadyPending   = "already_pending"
	StatusRecentlyRejected = "recently_rejected"
	StatusCreated          = "created"
)

// Defaults for the classifier.
const (
	DefaultRejectionCooldown = 24 * time.Hour
	DefaultMatchTolerance    = 6 * time.Hour
)

// Candidate is a parsed flight tied to its calendar source and the date it
// is anchored to.
type Candidate struct {
	SourceID string
	Parsed   models.ParsedFlightCandidate
	Date     time.Time
}

// Fingerprint returns the stable dedup key of the candidate: source,
// airline, flight number, and UTC calendar date.
func (c Candidate) Fingerprint() string {
	var airline, number string
	if c.Parsed.AirlineCode != nil {
		airline = strings.ToUpper(*c.Parsed.AirlineCode)
	}
	if c.Parsed.FlightNumber != nil {
		number = strconv.Itoa(*c.Parsed.FlightNumber)
	}
	key := strings.Join([]string{c.SourceID, airline, number, c.Date.UTC().Format("2006-01-02")}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Classification is the outcome of classifying one candidate.
type Classification struct {
	Status    string
	MatchedID *string
	// Existing is the pending record sharing the fingerprint, if any. For a
	// created candidate it is an expired rejection to be reused.
	Existing *models.PendingFlight
}

// Classifier decides whether a candidate is new or already known.
type Classifier struct {
	cooldown       time.Duration
	matchTolerance time.Duration
}

// NewClassifier creates a classifier. Non-positive durations use the defaults.
func NewClassifier(cooldown, matchTolerance time.Duration) *Classifier {
	if cooldown <= 0 {
		cooldown = DefaultRejectionCooldown
	}
	if matchTolerance <= 0 {
		matchTolerance = DefaultMatchTolerance
	}
	return &Classifier{cooldown: cooldown, matchTolerance: matchTolerance}
}

// Cooldown returns the rejection cooldown in effect.
func (c *Classifier) Cooldown() time.Duration {
	return c.cooldown
}

// Classify assigns one status to the candidate. The first matching rule
// wins: an existing flight, then a live pending record with the same
// fingerprint, then a rejection still in cooldown.
func (c *Classifier) Classify(cand Candidate, pending []models.PendingFlight, flights []models.Flight, now time.Time) Classification {
	for i := range flights {
		if c.matchesFlight(cand, &flights[i]) {
			return Classification{Status: StatusAlreadyImported, MatchedID: &flights[i].ID}
		}
	}

	fingerprint := cand.Fingerprint()
	for i := range pending {
		p := &pending[i]
		if p.Fingerprint != fingerprint {
			continue
		}
		if p.Status != models.PendingStatusRejected {
			return Classification{Status: StatusAlreadyPending, MatchedID: &p.ID, Existing: p}
		}
		if p.InCooldown(now, c.cooldown) {
			return Classification{Status: StatusRecentlyRejected, MatchedID: &p.ID, Existing: p}
		}
		return Classification{Status: StatusCreated, Existing: p}
	}

	return Classification{Status: StatusCreated}
}

// matchesFlight reports whether f is the same flight as the candidate: same
// flight number and airline, on the same UTC date or within the match
// tolerance of the candidate's window.
func (c *Classifier) matchesFlight(cand Candidate, f *models.Flight) bool {
	if cand.Parsed.FlightNumber == nil || f.FlightNumber == nil || *cand.Parsed.FlightNumber != *f.FlightNumber {
		return false
	}
	if cand.Parsed.AirlineCode != nil {
		if !f.HasAirlineCode(*cand.Parsed.AirlineCode) {
			return false
		}
	}

	if sameDay(cand.Date, f.OutTime) || sameDay(cand.Date, f.EffectiveOut()) {
		return true
	}

	if cand.Parsed.OutTime != nil && cand.Parsed.InTime != nil {
		window := flight.Window{Start: *cand.Parsed.OutTime, End: *cand.Parsed.InTime}
		return flight.Overlaps(flight.WindowOf(f), window, c.matchTolerance)
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
