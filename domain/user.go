package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Reference is an id/name pair used for departments and roles.
type Reference struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UnmarshalJSON accepts either a full object or a bare id string, which is how
// the login endpoint reports the role.
func (r *Reference) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Reference{ID: id}
		return nil
	}
	type plain Reference
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*r = Reference(out)
	return nil
}

// UserProfile represents the authenticated principal of the console.
type UserProfile struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Department Reference `json:"department"`
	Role       Reference `json:"role"`
	IsApproved bool      `json:"isApproved"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RoleName returns the lower-cased role name, empty when unknown.
func (u *UserProfile) RoleName() string {
	if u == nil {
		return ""
	}
	return strings.ToLower(u.Role.Name)
}

// HasElevatedRole reports whether the user may open admin routes.
func (u *UserProfile) HasElevatedRole() bool {
	switch u.RoleName() {
	case "admin", "manager":
		return true
	default:
		return false
	}
}
