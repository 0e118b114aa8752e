package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the provider's calendar date format.
const DateLayout = "2006-01-02"

// Radius bounds in kilometers.
const (
	MinRadius = 1
	MaxRadius = 300
)

// Criteria validation errors.
var (
	ErrInvalidRadius    = errors.New("radius must be an integer between 1 and 300")
	ErrInvalidDateRange = errors.New("check-out must be after check-in")
	ErrDateInPast       = errors.New("date is in the past")
	ErrUnknownSort      = errors.New("unknown sort command")
	ErrIncomplete       = errors.New("search criteria incomplete")
)

// SortCommand selects the ranking strategy for a result set.
type SortCommand string

// Sort commands, named after the chat commands that select them.
const (
	SortLowPrice    SortCommand = "lowprice"
	SortBestDeal    SortCommand = "bestdeal"
	SortGuestRating SortCommand = "guest_rating"
)

// SortCommands lists every supported command in display order.
var SortCommands = []SortCommand{SortLowPrice, SortBestDeal, SortGuestRating}

// ParseSortCommand accepts a command name with or without a leading slash.
func ParseSortCommand(s string) (SortCommand, error) {
	cmd := SortCommand(strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "/"))
	switch cmd {
	case SortLowPrice, SortBestDeal, SortGuestRating:
		return cmd, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSort, s)
}

// Description returns the human-readable ranking description.
func (c SortCommand) Description() string {
	switch c {
	case SortLowPrice:
		return "Lowest price first"
	case SortBestDeal:
		return "Closest to the city center first"
	case SortGuestRating:
		return "Highest guest rating first"
	default:
		return string(c)
	}
}

// City is a destination resolved by the provider's city lookup.
type City struct {
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	CountryCode string  `json:"country_code"`
	CountryName string  `json:"country_name"`
	StateCode   string  `json:"state_code,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Label renders the city the way selection buttons show it.
func (c City) Label() string {
	parts := []string{c.Name}
	if c.StateCode != "" {
		parts = append(parts, c.StateCode)
	}
	country := c.CountryName
	if country == "" {
		country = c.CountryCode
	}
	if country != "" {
		parts = append(parts, country)
	}
	return strings.Join(parts, ", ")
}

// Currency is the ISO currency used for price filtering.
type Currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DateRange is a stay between two calendar dates.
type DateRange struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

// Nights returns the number of nights between check-in and check-out.
func (d DateRange) Nights() int {
	return Nights(d.CheckIn, d.CheckOut)
}

// Validate checks ordering and that check-in is not before today.
func (d DateRange) Validate(today time.Time) error {
	if Day(d.CheckIn).Before(Day(today)) {
		return ErrDateInPast
	}
	if !Day(d.CheckOut).After(Day(d.CheckIn)) {
		return ErrInvalidDateRange
	}
	return nil
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Nights counts calendar days between two dates.
func Nights(checkIn, checkOut time.Time) int {
	in := time.Date(checkIn.Year(), checkIn.Month(), checkIn.Day(), 0, 0, 0, 0, time.UTC)
	out := time.Date(checkOut.Year(), checkOut.Month(), checkOut.Day(), 0, 0, 0, 0, time.UTC)
	return int(out.Sub(in).Hours() / 24)
}

// ParseRadius validates a radius typed by the user.
func ParseRadius(s string) (int, error) {
	r, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRadius, s)
	}
	if r < MinRadius || r > MaxRadius {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRadius, r)
	}
	return r, nil
}

// Criteria is a finalized set of search parameters.
type Criteria struct {
	City       City        `json:"city"`
	Currency   Currency    `json:"currency"`
	Dates      DateRange   `json:"dates"`
	PriceRange PriceRange  `json:"price_range"`
	Radius     int         `json:"radius"`
	Sort       SortCommand `json:"sort"`
}

// Validate reports the first missing or invalid field.
func (c Criteria) Validate() error {
	switch {
	case c.City.Code == "":
		return fmt.Errorf("%w: city", ErrIncomplete)
	case c.Dates.CheckIn.IsZero() || c.Dates.CheckOut.IsZero():
		return fmt.Errorf("%w: dates", ErrIncomplete)
	case !Day(c.Dates.CheckOut).After(Day(c.Dates.CheckIn)):
		return ErrInvalidDateRange
	case c.Radius < MinRadius || c.Radius > MaxRadius:
		return ErrInvalidRadius
	}
	if _, err := ParseSortCommand(string(c.Sort)); err != nil {
		return err
	}
	if c.PriceRange != "" {
		if _, err := ParsePriceRange(string(c.PriceRange)); err != nil {
			return err
		}
	}
	return nil
}
