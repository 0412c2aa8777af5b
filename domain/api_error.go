package domain

import (
	"encoding/json"
	"fmt"
)

// FieldError is a single field-level complaint reported by the backend.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is the normalized shape every failed backend call is reduced to.
type APIError struct {
	Success    bool            `json:"success"`
	ErrorCode  string          `json:"errorCode"`
	Message    string          `json:"message"`
	Errors     []FieldError    `json:"errors"`
	Data       json.RawMessage `json:"data,omitempty"`
	StatusCode int             `json:"statusCode"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
}

// HasFieldErrors reports whether the backend attached per-field errors.
func (e *APIError) HasFieldErrors() bool {
	return e != nil && len(e.Errors) > 0
}

// ValidationError is raised before a request leaves the process. Callers render
// FieldErrors inline; no notification is emitted for it.
type ValidationError struct {
	Endpoint    string            `json:"endpoint"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"fieldErrors"`
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("validation failed for %s", e.Endpoint)
}
