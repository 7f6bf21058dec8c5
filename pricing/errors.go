package pricing

import "errors"

// Error kinds a tracking operation can fail with. Each one aborts only the
// product being tracked.
var (
	// ErrInvalidPrice is returned when a candidate price is zero or negative.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrSourceUnavailable is returned when a Source cannot produce a price.
	ErrSourceUnavailable = errors.New("price source unavailable")
	// ErrPersistence is returned when the history store fails to write or read.
	ErrPersistence = errors.New("price history persistence failure")
)

// Kind names the error kind of err for logs and API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	default:
		return "unknown"
	}
}
