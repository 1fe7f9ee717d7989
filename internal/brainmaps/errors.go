// Package brainmaps provides an HTTP client for the Google Brainmaps API
// with bounded retry, HTTP status classification, OAuth2 credential
// handling, and batched mesh retrieval.
package brainmaps

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Every error returned by this package matches at most one of
// these via errors.Is, except remote mesh decode failures, which match
// ErrRemote and also unwrap to *ngmesh.DecodeError.
var (
	ErrAuthentication = errors.New("brainmaps: no usable credentials")
	ErrConfiguration  = errors.New("brainmaps: configuration error")
	ErrRemote         = errors.New("brainmaps: remote error")
)

// ErrNotLoggedIn is returned when no credential file exists.
var ErrNotLoggedIn = fmt.Errorf("%w: not logged in", ErrAuthentication)

// Sentinel errors for HTTP status code classification. An *APIError always
// matches ErrRemote in addition to one of these.
var (
	ErrBadRequest   = errors.New("brainmaps: bad request")
	ErrUnauthorized = errors.New("brainmaps: unauthorized")
	ErrForbidden    = errors.New("brainmaps: forbidden")
	ErrNotFound     = errors.New("brainmaps: not found")
	ErrThrottled    = errors.New("brainmaps: throttled")
	ErrServerError  = errors.New("brainmaps: server error")
)

// APIError is a non-success HTTP response from the Brainmaps API.
type APIError struct {
	StatusCode int
	Status     string // Google API status, e.g. "NOT_FOUND"
	Message    string
	Err        error // status sentinel, nil if unclassified
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("brainmaps: HTTP %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}

	return fmt.Sprintf("brainmaps: HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes ErrRemote, the status sentinel, and ErrAuthentication for
// 401 responses.
func (e *APIError) Unwrap() []error {
	errs := []error{ErrRemote}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	if e.StatusCode == http.StatusUnauthorized {
		errs = append(errs, ErrAuthentication)
	}

	return errs
}

// googleErrorBody is the standard Google API error envelope.
type googleErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// newAPIError builds an APIError, extracting the message from a Google error
// envelope when the body is one.
func newAPIError(code int, body []byte) *APIError {
	e := &APIError{
		StatusCode: code,
		Message:    strings.TrimSpace(string(body)),
		Err:        classifyStatus(code),
	}

	var env googleErrorBody
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		e.Message = env.Error.Message
		e.Status = env.Error.Status
	}

	return e
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// remoteErrorf wraps a malformed-response condition as ErrRemote.
func remoteErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrRemote}, args...)...)
}
