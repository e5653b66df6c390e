package model

import (
	"fmt"
	"net/http"
)

// Credential is a decoded key file. It is sent verbatim as the JSON body of
// the access token request, so unknown fields are preserved.
type Credential map[string]any

// APIKey returns the api_key field. A missing or non-string value is reported
// as a *MissingFieldError.
func (c Credential) APIKey() (string, error) {
	v, ok := c["api_key"]
	if !ok {
		return "", &MissingFieldError{Field: "api_key", Context: "credential"}
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", &MissingFieldError{Field: "api_key", Context: "credential"}
	}
	return s, nil
}

// KeyID returns the optional key_id field, or "" when absent.
func (c Credential) KeyID() string {
	if v, ok := c["key_id"]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

// AuthHeaders holds the request headers produced by a successful
// authentication. It carries a single Authorization entry.
type AuthHeaders map[string]string

// NewAuthHeaders builds the headers for the given access token.
func NewAuthHeaders(accessToken string) AuthHeaders {
	return AuthHeaders{"Authorization": "bearer " + accessToken}
}

// Apply sets every header on req.
func (h AuthHeaders) Apply(req *http.Request) {
	for k, v := range h {
		req.Header.Set(k, v)
	}
}

// Clone returns an independent copy so callers cannot mutate session state.
func (h AuthHeaders) Clone() AuthHeaders {
	if h == nil {
		return nil
	}
	out := make(AuthHeaders, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
