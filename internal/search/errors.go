package search

import (
	"errors"
	"fmt"
)

// Pipeline outcomes shown to the user.
var (
	// ErrHotelNotFound means the city had no hotels within the radius.
	ErrHotelNotFound = errors.New("no hotels found in the city within the radius")
	// ErrOffersNotFound means hotels exist but none has an available offer.
	ErrOffersNotFound = errors.New("no hotel has an available offer for these dates and prices")
)

// ServiceUnavailableError wraps a provider failure with the stage that hit it.
type ServiceUnavailableError struct {
	Err   error
	Stage Stage
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("external service unavailable at %s: %v", e.Stage, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error {
	return e.Err
}

// IsServiceUnavailable reports whether err is a wrapped provider failure.
func IsServiceUnavailable(err error) bool {
	var sue *ServiceUnavailableError
	return errors.As(err, &sue)
}
