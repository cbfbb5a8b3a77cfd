package connector

import (
	"errors"
	"fmt"
)

// StatusCode is the small failure taxonomy attached to every
// adapter-level error. It survives serialization across the command
// boundary and drives the scheduler's retry decision.
type StatusCode int

const (
	StatusUnknown StatusCode = iota
	// StatusUnsupportedAPI: the backend does not support the operation.
	// Detected before any network call.
	StatusUnsupportedAPI
	// StatusBadRequest: locally detectable invalid input (empty id,
	// empty username) that would certainly be rejected remotely.
	StatusBadRequest
	// StatusNoCredentialsForHost: client registration could not produce
	// usable keys for the target host.
	StatusNoCredentialsForHost
	// StatusIOError: transport failure during the network exchange,
	// generally retryable.
	StatusIOError
	// StatusParseError: response received but did not match the
	// expected schema.
	StatusParseError
)

func (c StatusCode) String() string {
	switch c {
	case StatusUnsupportedAPI:
		return "UNSUPPORTED_API"
	case StatusBadRequest:
		return "BAD_REQUEST"
	case StatusNoCredentialsForHost:
		return "NO_CREDENTIALS_FOR_HOST"
	case StatusIOError:
		return "IO_ERROR"
	case StatusParseError:
		return "PARSE_ERROR"
	default:
		return "UNKNOWN"
	}
}

// StatusCodeFromString is the inverse of StatusCode.String, used when
// a command result crosses the serialization boundary.
func StatusCodeFromString(s string) StatusCode {
	for _, c := range []StatusCode{StatusUnsupportedAPI, StatusBadRequest,
		StatusNoCredentialsForHost, StatusIOError, StatusParseError} {
		if c.String() == s {
			return c
		}
	}
	return StatusUnknown
}

// ConnError is a structured adapter failure. Payload carries the
// offending response body for parse failures.
type ConnError struct {
	Code    StatusCode
	Host    string
	Message string
	Payload string
	Err     error
}

func (e *ConnError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Host != "" {
		msg += " (host: " + e.Host + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// ErrUnsupported builds the capability error reported before any
// network call is attempted.
func ErrUnsupported(routine ApiRoutine) *ConnError {
	return &ConnError{Code: StatusUnsupportedAPI, Message: "the API routine is not supported: " + routine.String()}
}

func ErrBadRequest(format string, args ...interface{}) *ConnError {
	return &ConnError{Code: StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func ErrNoCredentials(host string) *ConnError {
	return &ConnError{Code: StatusNoCredentialsForHost, Host: host, Message: "no credentials"}
}

func ErrHard(message string, err error) *ConnError {
	return &ConnError{Code: StatusIOError, Message: message, Err: err}
}

// ErrParse carries the offending payload for diagnostics.
func ErrParse(message string, payload []byte, err error) *ConnError {
	return &ConnError{Code: StatusParseError, Message: message, Payload: string(payload), Err: err}
}

// StatusOf extracts the status code from an error chain,
// StatusUnknown when the failure carries no taxonomy.
func StatusOf(err error) StatusCode {
	var connErr *ConnError
	if errors.As(err, &connErr) {
		return connErr.Code
	}
	return StatusUnknown
}
