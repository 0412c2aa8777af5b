package transport

import "strings"

// LoginRequest is the console login form.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate returns field errors keyed by JSON name, nil when the form is usable.
func (r LoginRequest) Validate() map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(r.Email) == "" {
		errs["email"] = "email is required"
	}
	if r.Password == "" {
		errs["password"] = "password is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
