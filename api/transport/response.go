package transport

import (
	"errors"

	"github.com/fastygo/qcconsole/domain"
)

// Envelope wraps every console response.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// ErrorBody carries the message plus whichever field errors apply: local
// validation fills FieldErrors, a backend answer fills Errors.
type ErrorBody struct {
	Message     string              `json:"message"`
	FieldErrors map[string]string   `json:"fieldErrors,omitempty"`
	Errors      []domain.FieldError `json:"errors,omitempty"`
}

func NewSuccess(data interface{}) Envelope {
	return Envelope{Status: "success", Data: data}
}

func NewError(code, message string, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  &ErrorBody{Message: message},
		Meta:   meta,
	}
}

// FromError renders err under code, preferring the backend's own message.
func FromError(code string, err error) Envelope {
	env := NewError(code, err.Error(), nil)

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		env.Error.FieldErrors = validationErr.FieldErrors
		return env
	}
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			env.Error.Message = apiErr.Message
		}
		env.Error.Errors = apiErr.Errors
	}
	return env
}
