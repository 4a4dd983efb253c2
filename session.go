package switchboard

import "time"

// Session is one authenticated identity cached on the client.
// Sessions are values; the registry replaces them whole on re-login.
type Session struct {
	Token     string `json:"token"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expires_at"` // Unix seconds
}

// NewSession builds a Session from a freshly issued token.
// ExpiresAt comes from the token's exp claim when it can be decoded,
// otherwise it is now + fallbackTTL.
func NewSession(token string, userID int64, username string, now time.Time, fallbackTTL time.Duration) Session {
	expiresAt := now.Add(fallbackTTL).Unix()
	if payload, ok := DecodeToken(token); ok {
		if exp, ok := payload.ExpiresAt(); ok {
			expiresAt = exp
		}
	}

	return Session{
		Token:     token,
		UserID:    userID,
		Username:  username,
		ExpiresAt: expiresAt,
	}
}

// Expiry returns ExpiresAt as a time.Time.
func (s Session) Expiry() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

// IsExpired reports whether the session is expired at now.
// A session whose ExpiresAt equals now is already expired.
func (s Session) IsExpired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}
