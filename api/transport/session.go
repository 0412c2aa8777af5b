package transport

import (
	"time"

	"github.com/fastygo/qcconsole/domain"
)

// SessionView is the public rendering of the current session.
type SessionView struct {
	State           string              `json:"state"`
	Authenticated   bool                `json:"authenticated"`
	User            *domain.UserProfile `json:"user,omitempty"`
	Expiry          *ExpiryView         `json:"expiry,omitempty"`
	ExpiringSoon    bool                `json:"expiringSoon"`
	HasStoredTokens bool                `json:"hasStoredTokens"`
}

type ExpiryView struct {
	IsExpired         bool       `json:"isExpired"`
	TimeUntilExpiryMs int64      `json:"timeUntilExpiryMs"`
	ExpiryDate        *time.Time `json:"expiryDate,omitempty"`
}

func NewExpiryView(info domain.TokenExpiryInfo) *ExpiryView {
	return &ExpiryView{
		IsExpired:         info.IsExpired,
		TimeUntilExpiryMs: info.TimeUntilExpiry.Milliseconds(),
		ExpiryDate:        info.ExpiryDate,
	}
}

// LoginLanding echoes the markers a guard put on the login redirect.
type LoginLanding struct {
	ReturnURL string `json:"returnUrl,omitempty"`
	Expired   bool   `json:"expired"`
	Error     string `json:"error,omitempty"`
}
