package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidPriceRange is returned for text that is not min-max, -max, min- or a single value.
var ErrInvalidPriceRange = errors.New("invalid price range")

// PriceRange is a validated nightly price filter in the provider's format.
type PriceRange string

// ParsePriceRange validates user input and returns it in normalized form.
// Commas are accepted as decimal separators and whitespace around the dash is dropped.
func ParsePriceRange(s string) (PriceRange, error) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "_", " ")
	raw = strings.ReplaceAll(raw, ",", ".")

	parts := strings.Split(raw, "-")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 1:
		if _, err := parsePrice(parts[0]); err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidPriceRange, s)
		}
		return PriceRange(parts[0]), nil
	case 2:
		lo, hi := parts[0], parts[1]
		if lo == "" && hi == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidPriceRange, s)
		}
		var minV, maxV float64
		var err error
		if lo != "" {
			if minV, err = parsePrice(lo); err != nil {
				return "", fmt.Errorf("%w: %q", ErrInvalidPriceRange, s)
			}
		}
		if hi != "" {
			if maxV, err = parsePrice(hi); err != nil {
				return "", fmt.Errorf("%w: %q", ErrInvalidPriceRange, s)
			}
		}
		if lo != "" && hi != "" && minV > maxV {
			return "", fmt.Errorf("%w: minimum above maximum in %q", ErrInvalidPriceRange, s)
		}
		return PriceRange(lo + "-" + hi), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPriceRange, s)
	}
}

func parsePrice(s string) (float64, error) {
	if s == "" {
		return 0, ErrInvalidPriceRange
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidPriceRange
	}
	return v, nil
}

// Bounds returns the lower and upper bound text; either may be empty.
// A single value is reported as an upper bound, matching the provider's reading.
func (p PriceRange) Bounds() (lower, upper string) {
	s := string(p)
	if i := strings.Index(s, "-"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

func (p PriceRange) String() string {
	return string(p)
}
