package gateway

// LoginResponse is the auth service's answer to a login request.
// Success with a token and identity means a session was issued; otherwise
// Message carries a human-readable reason.
type LoginResponse struct {
	Success  bool    `json:"success"`
	Token    *string `json:"token"`
	UserID   *int64  `json:"user_id"`
	Username *string `json:"username"`
	Message  string  `json:"message"`
}

// Issued reports whether the response carries everything needed to
// create a session.
func (r *LoginResponse) Issued() bool {
	return r != nil &&
		r.Success &&
		r.Token != nil && *r.Token != "" &&
		r.UserID != nil &&
		r.Username != nil && *r.Username != ""
}

// CheckResponse is the auth service's answer to a session check.
type CheckResponse struct {
	Success bool         `json:"success"`
	Data    *SessionInfo `json:"data,omitempty"`
	Message string       `json:"message"`
}

// SessionInfo is what the auth service reports about a live session.
type SessionInfo struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expires_at"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
