// Package storage provides the data persistence layer for hotel-scout.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/hotel-scout/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrInvalidRequest  = errors.New("invalid search request")
	ErrEmptyResultSet  = errors.New("result set has no hotels")
	ErrUnknownHotel    = errors.New("hotel is not part of the stored search")
	ErrInvalidCriteria = errors.New("invalid search criteria")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateUser ensures a user can own history records.
func validateUser(user model.User) error {
	if user.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidUserID, user.ID)
	}
	return nil
}

// validateResultSet ensures a result set can be written as one history record.
func validateResultSet(results *model.ResultSet) error {
	if results == nil {
		return fmt.Errorf("%w: results", ErrNilParameter)
	}
	if results.Len() == 0 {
		return ErrEmptyResultSet
	}
	if err := results.Criteria.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCriteria, err)
	}
	for i, id := range results.Order {
		h := results.Hotels[id]
		if h == nil {
			return fmt.Errorf("%w: hotel %q at position %d missing from map", ErrNilParameter, id, i)
		}
		if h.Offer == nil {
			return fmt.Errorf("%w: hotel %q has no offer", ErrInvalidRequest, id)
		}
	}
	return nil
}
