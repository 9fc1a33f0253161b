package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyContent     = fmt.Errorf("message content is empty")
	ErrContentTooLong   = fmt.Errorf("message content exceeds the limit")
	ErrMissingTarget    = fmt.Errorf("operator send requires a target member")
	ErrUnknownSender    = fmt.Errorf("sender is not a known participant")
	ErrStoreUnavailable = fmt.Errorf("message store unavailable")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
)

// MapToStatus translates relay errors into HTTP status codes.
// Validation failures are the caller's to fix and are never retried;
// storage failures are retryable, so they map to 503.
func MapToStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrContentTooLong),
		errors.Is(err, ErrMissingTarget),
		errors.Is(err, ErrUnknownSender):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
