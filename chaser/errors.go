package chaser

import (
	"errors"
	"fmt"
)

// Sentinel errors for response decoding.
var (
	ErrLicensesMissing  = errors.New(`response has no "licenses" key`)
	ErrResponseTooLarge = errors.New("response exceeds 4 MB")
)

// Sentinel errors for engine configuration and lifecycle.
var (
	ErrMissingServerURL = errors.New("license server URL is empty")
	ErrInvalidServerURL = errors.New("invalid license server URL")
	ErrAlreadyRunning   = errors.New("chaser is already running")
)

// VersionParseError reports a version string that is not "MAJOR.MINOR"
// with both parts fitting an unsigned 8-bit integer.
type VersionParseError struct {
	Input string
	Err   error
}

func (e *VersionParseError) Error() string {
	return fmt.Sprintf("parse version %q: %v", e.Input, e.Err)
}

func (e *VersionParseError) Unwrap() error {
	return e.Err
}

// ResponseParseError reports a license server response that could not be
// decoded into a ResponseEnvelope.
type ResponseParseError struct {
	Reason string
	Err    error
}

func (e *ResponseParseError) Error() string {
	if e.Err == nil {
		return "parse response: " + e.Reason
	}
	return fmt.Sprintf("parse response: %s: %v", e.Reason, e.Err)
}

func (e *ResponseParseError) Unwrap() error {
	return e.Err
}

// TransportError represents a failed exchange with the license server:
// a network failure, a timeout, or a non-2xx status.
// StatusCode is 0 when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: server returned %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
