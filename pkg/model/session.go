package model

// Session is a point-in-time view of the client's authentication context.
// Token and User are either both set (Authenticated) or both empty.
type Session struct {
	Status SessionStatus `json:"status"`
	Token  string        `json:"-"`
	User   *UserProfile  `json:"user,omitempty"`
}

// IsAuthenticated reports whether the session carries credentials.
func (s Session) IsAuthenticated() bool {
	return s.Status == SessionAuthenticated
}

// Consistent checks the Authenticated ⇔ (token and user present) invariant.
func (s Session) Consistent() bool {
	hasToken := s.Token != ""
	hasUser := s.User != nil
	if hasToken != hasUser {
		return false
	}
	return (s.Status == SessionAuthenticated) == (hasToken && hasUser)
}

// Username returns the signed-in username, or "".
func (s Session) Username() string {
	if s.User == nil {
		return ""
	}
	return s.User.Username
}
