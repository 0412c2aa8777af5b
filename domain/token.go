package domain

import "time"

// TokenPair is the bearer credential pair issued by the backend.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Valid reports whether both tokens are present.
func (p TokenPair) Valid() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// TokenExpiryInfo is derived from the access token on demand.
type TokenExpiryInfo struct {
	IsExpired       bool          `json:"isExpired"`
	TimeUntilExpiry time.Duration `json:"timeUntilExpiry"`
	ExpiryDate      *time.Time    `json:"expiryDate"`
}

// ExpiredInfo is the fail-closed answer used when no decodable token exists.
func ExpiredInfo() TokenExpiryInfo {
	return TokenExpiryInfo{IsExpired: true}
}

// LoginResult is what a successful backend login yields.
type LoginResult struct {
	User   UserProfile `json:"user"`
	Tokens TokenPair   `json:"tokens"`
}
