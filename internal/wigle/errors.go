package wigle

import (
	"context"
	"errors"
	"fmt"
)

// ErrTooManyRedirects is returned by a Searcher when the redirect limit is hit.
var ErrTooManyRedirects = errors.New("too many redirects")

// ErrorKind classifies a failed search request.
type ErrorKind int

// Request failure kinds.
const (
	KindOther ErrorKind = iota
	KindUnauthorized
	KindRateLimited
	KindHTTPStatus
	KindTimeout
	KindConnection
	KindTooManyRedirects
	KindMalformed
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindHTTPStatus:
		return "http_status"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindTooManyRedirects:
		return "too_many_redirects"
	case KindMalformed:
		return "malformed"
	case KindCanceled:
		return "canceled"
	default:
		return "other"
	}
}

// Transient reports whether a request of this kind may be retried.
func (k ErrorKind) Transient() bool {
	return k == KindTimeout || k == KindConnection
}

// RequestError is the tagged failure returned by a Searcher.
type RequestError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("search request %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("search request %s (status %d)", e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("search request %s: %v", e.Kind, e.Err)
	}
	return "search request " + e.Kind.String()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err. Errors that are not a
// RequestError are classified as canceled when the context ended and as
// KindOther otherwise.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindOther
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrTooManyRedirects):
		return KindTooManyRedirects
	}
	return KindOther
}

// StatusCodeOf returns the HTTP status carried by err, or zero.
func StatusCodeOf(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}
