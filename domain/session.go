package domain

// Session is the client-side record of who is logged in. Exactly one of
// LoggedOut, LoggedIn or Inconsistent.
type Session interface {
	sessionState() string
}

// LoggedOut means no principal and no credentials.
type LoggedOut struct{}

// LoggedIn carries the authenticated principal.
type LoggedIn struct {
	User UserProfile
}

// Inconsistent is the startup state where storage held only one of the
// user profile and the access token. Guards resolve it on next navigation.
type Inconsistent struct {
	User     *UserProfile
	HasToken bool
}

func (LoggedOut) sessionState() string    { return "logged_out" }
func (LoggedIn) sessionState() string     { return "logged_in" }
func (Inconsistent) sessionState() string { return "inconsistent" }

// State returns a stable name for logging and transport.
func State(s Session) string {
	if s == nil {
		return LoggedOut{}.sessionState()
	}
	return s.sessionState()
}

// IsAuthenticated is true only for LoggedIn.
func IsAuthenticated(s Session) bool {
	_, ok := s.(LoggedIn)
	return ok
}

// UserOf returns the principal of a LoggedIn session, nil otherwise.
func UserOf(s Session) *UserProfile {
	if in, ok := s.(LoggedIn); ok {
		user := in.User
		return &user
	}
	return nil
}
