// Package apierror classifies failures that cross the dispatch boundary.
//
// Both sides of the wire share this taxonomy: the server uses it to pick a
// response status, the client uses it to decide whether a response is worth
// one retry and what to show the user.
package apierror

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Kind is the failure class of an Error.
type Kind int

const (
	// KindUpstream is any failure without a more specific class. It is also
	// the zero-value fallback for plain errors.
	KindUpstream Kind = iota

	// KindInput means the caller sent missing, oversized or unsupported audio.
	KindInput

	// KindBusy means the upstream provider rate-limited the request (429).
	KindBusy

	// KindUnavailable means a gateway or cold-start failure (502, 503, 504).
	KindUnavailable

	// KindDecode means a response body could not be decoded.
	KindDecode

	// KindAuth means the feedback token did not match.
	KindAuth
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "invalid_input"
	case KindBusy:
		return "rate_limited"
	case KindUnavailable:
		return "upstream_unavailable"
	case KindDecode:
		return "decode_error"
	case KindAuth:
		return "unauthorized"
	default:
		return "upstream_error"
	}
}

// BusyMessage is the user-facing text for a rate-limited dispatch.
const BusyMessage = "Dispatch is busy. Try again in a moment."

// Error is a classified failure.
type Error struct {
	Kind Kind

	// Status is the HTTP status associated with the failure, if any.
	Status int

	// Message is safe to show to the caller.
	Message string

	// Err is the underlying cause. It is never rendered to remote callers.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error without an underlying cause.
func New(kind Kind, status int, msg string) *Error {
	return &Error{Kind: kind, Status: status, Message: msg}
}

// Wrap classifies err.
func Wrap(kind Kind, status int, msg string, err error) *Error {
	return &Error{Kind: kind, Status: status, Message: msg, Err: err}
}

// Input reports a request the caller must correct before retrying.
func Input(status int, msg string) *Error {
	return New(KindInput, status, msg)
}

// FromStatus classifies a non-2xx upstream response. The body is kept in the
// message for logs; HTTPStatus never forwards it to a remote caller for
// opaque kinds.
func FromStatus(status int, body string) *Error {
	msg := fmt.Sprintf("HTTP %d: %s", status, body)
	switch status {
	case http.StatusTooManyRequests:
		return New(KindBusy, status, msg)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return New(KindUnavailable, status, msg)
	default:
		return New(KindUpstream, status, msg)
	}
}

// KindOf returns the kind of err, or KindUpstream for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsRetryableStatus reports whether a response status is a gateway or
// cold-start failure that deserves the single automatic retry.
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// HTTPStatus picks the response status for err.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInput:
		if e.Status >= 400 && e.Status < 500 {
			return e.Status
		}
		return http.StatusBadRequest
	case KindBusy:
		return http.StatusTooManyRequests
	case KindUnavailable:
		if IsRetryableStatus(e.Status) {
			return e.Status
		}
		return http.StatusBadGateway
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text a remote caller may see. Upstream and
// decode failures are opaque.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Kind {
	case KindInput, KindAuth:
		return e.Message
	case KindBusy:
		return BusyMessage
	case KindUnavailable:
		return "upstream temporarily unavailable"
	default:
		return "internal error"
	}
}

// FromResponse classifies a non-2xx upstream response, reading at most 2 KiB
// of its body.
func FromResponse(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return FromStatus(resp.StatusCode, strings.TrimSpace(string(body)))
}
