package flight

import "errors"

// Error kinds shared by the sync and review pipelines. Callers wrap these
// with context and classify with errors.Is.
var (
	// ErrFetch means the upstream calendar was unreachable or malformed.
	ErrFetch = errors.New("calendar fetch failed")

	// ErrValidationFailed means required flight fields are still missing.
	ErrValidationFailed = errors.New("validation failed")

	// ErrNotFound means the record no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrResolutionFailed means a code could not be mapped to reference data.
	ErrResolutionFailed = errors.New("reference resolution failed")

	// ErrAlreadyPending means a live pending record already holds the
	// fingerprint; only rejected records are reused.
	ErrAlreadyPending = errors.New("already pending")
)

// Error kind codes, used in API error bodies.
const (
	KindFetch            = "fetch_error"
	KindValidation       = "validation_error"
	KindNotFound         = "not_found"
	KindResolutionFailed = "resolution_failed"
	KindInternal         = "internal_error"
)

// Kind maps an error to its kind code.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidationFailed), errors.Is(err, ErrAlreadyPending):
		return KindValidation
	case errors.Is(err, ErrResolutionFailed):
		return KindResolutionFailed
	case errors.Is(err, ErrFetch):
		return KindFetch
	default:
		return KindInternal
	}
}
