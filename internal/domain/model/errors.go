package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedCredential is returned when a key file cannot be parsed,
	// even after relaxed-JSON repair.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrTokenDecode is returned when the api_key payload segment is not
	// valid base64url or does not decode to a JSON object.
	ErrTokenDecode = errors.New("token decode failed")

	// ErrNotAuthenticated is returned by data operations invoked before a
	// successful Authenticate call.
	ErrNotAuthenticated = errors.New("session not authenticated")

	// ErrDatasetNotFound is returned when no dataset is stored under a key.
	ErrDatasetNotFound = errors.New("dataset not found")
)

// MissingFieldError reports a required field absent from a decoded structure,
// e.g. "iss" in a token payload or "access_token" in an auth response.
type MissingFieldError struct {
	Field   string
	Context string
}

func (e *MissingFieldError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("missing field %q", e.Field)
	}
	return fmt.Sprintf("missing field %q in %s", e.Field, e.Context)
}

// HTTPError is a non-2xx response from the remote service.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not
// (and does not wrap) an *HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
