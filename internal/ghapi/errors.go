// Package ghapi wraps the GitHub REST API behind a small, typed surface:
// accounts, repositories, git trees, blobs, and contents-API commits.
// Errors are classified into sentinels so callers never inspect HTTP
// responses directly.
package ghapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, ghapi.ErrNotFound) to check.
var (
	ErrBadRequest      = errors.New("ghapi: bad request")
	ErrUnauthorized    = errors.New("ghapi: unauthorized")
	ErrForbidden       = errors.New("ghapi: forbidden")
	ErrNotFound        = errors.New("ghapi: not found")
	ErrConflict        = errors.New("ghapi: conflict")
	ErrUnprocessable   = errors.New("ghapi: unprocessable entity")
	ErrRateLimited     = errors.New("ghapi: rate limited")
	ErrServerError     = errors.New("ghapi: server error")
	ErrUnexpected      = errors.New("ghapi: unexpected response")
	ErrNotLoggedIn     = errors.New("ghapi: not logged in")
	ErrEmptyRepository = errors.New("ghapi: repository has no commits")
)

// requestIDHeader carries GitHub's per-request identifier, useful when
// reporting API problems upstream.
const requestIDHeader = "X-GitHub-Request-Id"

// APIError wraps a sentinel error with HTTP status code, request ID,
// and the API error message for debugging.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("ghapi: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("ghapi: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
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
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrUnprocessable
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		if code >= http.StatusOK && code < http.StatusMultipleChoices {
			return nil
		}

		return ErrUnexpected
	}
}

// classify converts an error returned by go-github into an *APIError
// carrying one of the sentinels above. Transport errors (DNS, TLS,
// canceled contexts) pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return newAPIError(rateErr.Response, rateErr.Message, ErrRateLimited)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return newAPIError(abuseErr.Response, abuseErr.Message, ErrRateLimited)
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		sentinel := classifyStatus(respErr.Response.StatusCode)
		if sentinel == nil {
			sentinel = ErrUnexpected
		}

		return newAPIError(respErr.Response, respErr.Message, sentinel)
	}

	return err
}

func newAPIError(resp *http.Response, msg string, sentinel error) *APIError {
	apiErr := &APIError{Message: msg, Err: sentinel}
	if resp != nil {
		apiErr.StatusCode = resp.StatusCode
		apiErr.RequestID = resp.Header.Get(requestIDHeader)
	}

	return apiErr
}
