package amadeus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Provider error codes that mean "no data" rather than failure.
const (
	codeNothingFound     = 895
	codeNoRoomsAvailable = 3664
	codeOfferNotFound    = 11
)

var transientStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// ProviderError is a failed provider call. Transient errors may be retried;
// all others are permanent and propagate immediately.
type ProviderError struct {
	Err        error
	Endpoint   string
	Title      string
	Detail     string
	Status     int
	Code       int
	RetryAfter time.Duration
	Transient  bool
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "amadeus %s: %s error", e.Endpoint, kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d", e.Status)
		if e.Code != 0 {
			fmt.Fprintf(&b, ", code %d", e.Code)
		}
		b.WriteString(")")
	}
	if e.Title != "" {
		b.WriteString(": " + e.Title)
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the retry policy may repeat the call.
func (e *ProviderError) Retryable() bool {
	return e.Transient
}

// RetryDelay returns the server's Retry-After hint.
func (e *ProviderError) RetryDelay() time.Duration {
	return e.RetryAfter
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

// IsPermanent reports whether err is a non-retryable provider failure.
func IsPermanent(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && !pe.Transient
}

// IsProviderError reports whether err came from the provider client.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

func hasCode(err error, code int) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == code
}

// apiErrors is the provider's error envelope.
type apiErrors struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status int    `json:"status"`
		Code   int    `json:"code"`
	} `json:"errors"`
}

func statusError(endpoint string, status int, header http.Header, body *apiErrors) *ProviderError {
	pe := &ProviderError{
		Endpoint:   endpoint,
		Status:     status,
		Transient:  transientStatuses[status],
		RetryAfter: parseRetryAfter(header.Get("Retry-After")),
	}
	if body != nil && len(body.Errors) > 0 {
		first := body.Errors[0]
		pe.Code = first.Code
		pe.Title = first.Title
		pe.Detail = first.Detail
	}
	return pe
}

// transportError classifies a failure that produced no HTTP response.
func transportError(endpoint string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &ProviderError{
		Endpoint:  endpoint,
		Err:       err,
		Transient: isTransientNetworkError(err),
	}
}

func isTransientNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
