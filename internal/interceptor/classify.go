package interceptor

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/fastygo/qcconsole/domain"
	"github.com/fastygo/qcconsole/internal/notify"
)

type backendBody struct {
	Success   *bool           `json:"success"`
	ErrorCode any             `json:"errorCode"`
	Message   any             `json:"message"`
	Errors    json.RawMessage `json:"errors"`
	Data      json.RawMessage `json:"data"`
}

func (b backendBody) shaped() bool {
	if b.Success == nil || *b.Success {
		return false
	}
	_, codeOK := b.ErrorCode.(string)
	_, msgOK := b.Message.(string)
	return codeOK && msgOK
}

func (b backendBody) message() string {
	msg, _ := b.Message.(string)
	return msg
}

func (b backendBody) code() string {
	code, _ := b.ErrorCode.(string)
	return code
}

func parseBody(raw []byte) backendBody {
	var b backendBody
	if len(raw) == 0 {
		return b
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return backendBody{}
	}
	return b
}

// parseFieldErrors accepts [{field,message}], {field: message} or ["message"].
func parseFieldErrors(raw json.RawMessage) []domain.FieldError {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var list []domain.FieldError
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var byField map[string]string
	if err := json.Unmarshal(raw, &byField); err == nil {
		out := make([]domain.FieldError, 0, len(byField))
		for field, msg := range byField {
			out = append(out, domain.FieldError{Field: field, Message: msg})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
		return out
	}

	var messages []string
	if err := json.Unmarshal(raw, &messages); err == nil {
		out := make([]domain.FieldError, 0, len(messages))
		for _, msg := range messages {
			out = append(out, domain.FieldError{Message: msg})
		}
		return out
	}
	return nil
}

func statusCode(status int) string {
	switch status {
	case 0:
		return "NETWORK_ERROR"
	case http.StatusUnauthorized:
		return string(domain.ErrCodeUnauthorized)
	case http.StatusForbidden:
		return string(domain.ErrCodeForbidden)
	case http.StatusNotFound:
		return string(domain.ErrCodeNotFound)
	case http.StatusConflict:
		return string(domain.ErrCodeConflict)
	case http.StatusUnprocessableEntity:
		return string(domain.ErrCodeValidation)
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	default:
		return "HTTP_ERROR"
	}
}

// outcome is the result of classifying one failed response.
type outcome struct {
	err    *domain.APIError
	toast  notify.Toast
	expire bool
}

// classify turns a failed response into a normalized error and the toast to show.
// Login 401s are handled by the caller before reaching here.
func classify(status int, raw []byte) outcome {
	body := parseBody(raw)
	apiErr := &domain.APIError{
		Success:    false,
		ErrorCode:  body.code(),
		Message:    body.message(),
		Errors:     parseFieldErrors(body.Errors),
		Data:       body.Data,
		StatusCode: status,
	}
	if apiErr.ErrorCode == "" {
		apiErr.ErrorCode = statusCode(status)
	}

	out := outcome{err: apiErr}
	fallback := func(summary, detail string) {
		if apiErr.Message == "" {
			apiErr.Message = detail
		}
		out.toast = notify.Toast{Level: notify.LevelError, Summary: summary, Detail: detail}
	}

	if status == http.StatusUnauthorized {
		out.expire = true
		detail := orDefault(body.message(), "Your session has expired. Please log in again.")
		apiErr.Message = detail
		out.toast = notify.Toast{Level: notify.LevelWarning, Summary: "Session Expired", Detail: detail}
		return out
	}

	if body.shaped() {
		out.toast = notify.Toast{Level: notify.LevelError, Summary: "Error", Detail: body.message()}
		return out
	}

	switch status {
	case http.StatusForbidden:
		fallback("Access Denied", "You do not have permission to perform this action.")
	case http.StatusNotFound:
		fallback("Not Found", "The requested resource was not found.")
	case http.StatusConflict:
		fallback("Conflict", orDefault(body.message(), "The request conflicts with the current state of the resource."))
	case http.StatusUnprocessableEntity:
		if apiErr.HasFieldErrors() {
			fallback("Validation Error", "Please correct the highlighted fields.")
		} else {
			fallback("Validation Failed", orDefault(body.message(), "The submitted data is invalid."))
		}
	case http.StatusInternalServerError:
		fallback("Server Error", "An internal server error occurred. Please try again later.")
	default:
		fallback("Error", orDefault(body.message(), "An unexpected error occurred."))
	}
	return out
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
