// Package apperr defines the error taxonomy shared by the store, the messaging
// service and the gateway. Callers wrap the sentinels with fmt.Errorf("...: %w")
// and classify with Code or HTTPStatus.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound: referenced entity absent, or the caller is not a participant.
	ErrNotFound = errors.New("not found")
	// ErrConflict: duplicate reaction, duplicate connection, status regression.
	ErrConflict = errors.New("conflict")
	// ErrForbidden: blocking relationship, or mutation of a resource the caller does not own.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized: missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalid: malformed or incomplete input.
	ErrInvalid = errors.New("invalid input")
	// ErrRateLimited: the socket exceeded its event budget.
	ErrRateLimited = errors.New("rate limited")
)

// Ack codes.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeForbidden    = "FORBIDDEN"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInvalid      = "INVALID"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL"
)

var codes = []struct {
	err    error
	code   string
	status int
}{
	{ErrNotFound, CodeNotFound, http.StatusNotFound},
	{ErrConflict, CodeConflict, http.StatusConflict},
	{ErrForbidden, CodeForbidden, http.StatusForbidden},
	{ErrUnauthorized, CodeUnauthorized, http.StatusUnauthorized},
	{ErrInvalid, CodeInvalid, http.StatusBadRequest},
	{ErrRateLimited, CodeRateLimited, http.StatusTooManyRequests},
}

// Code classifies err. Errors outside the taxonomy are INTERNAL.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// HTTPStatus maps err to a status code for the REST endpoints.
func HTTPStatus(err error) int {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}

// Public returns the text that may be shown to a client. Internal errors are
// replaced by a generic message. Forbidden and not-found errors carry only
// their sentinel text, so ids and user names of other people stay hidden.
func Public(err error) string {
	switch Code(err) {
	case CodeInternal:
		return "internal error"
	case CodeForbidden:
		return ErrForbidden.Error()
	case CodeNotFound:
		return ErrNotFound.Error()
	}
	return err.Error()
}
