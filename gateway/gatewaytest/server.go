// Package gatewaytest provides an in-process auth service for tests and demos.
//
// The Server answers the same endpoints as the real service
// (POST /api/auth/login, POST /api/auth/logout, GET /api/auth/check),
// issues HS256 tokens carrying sub, username, exp and iat claims, and lets
// a test revoke users or make endpoints fail.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// TokenTTL is how long issued tokens stay valid.
const TokenTTL = 24 * time.Hour

// LoginRecord is one successful login seen by the server.
type LoginRecord struct {
	UserID int64
	Device Device
	At     time.Time
}

type user struct {
	id       int64
	password string
}

// Server is a fake auth service. It is safe for concurrent use.
type Server struct {
	*httptest.Server

	secret []byte
	clock  clockwork.Clock

	mu           sync.Mutex
	users        map[string]user
	nextID       int64
	logins       []LoginRecord
	logoutStatus int
	checkStatus  int
	checks       int
}

// NewServer starts a fake auth service. A nil clock uses real time.
// The caller must Close it.
func NewServer(clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Server{
		secret: []byte(uuid.NewString()),
		clock:  clock,
		users:  make(map[string]user),
		nextID: 1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/check", s.handleCheck)

	s.Server = httptest.NewServer(mux)
	return s
}

// BaseURL returns the API root to configure a gateway client with.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// AddUser registers a user and returns its id.
func (s *Server) AddUser(username, password string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.users[username] = user{id: id, password: password}
	return id
}

// RevokeUser deletes a user. Its tokens stop passing the session check.
func (s *Server) RevokeUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, username)
}

// FailLogout makes logout answer with status. Zero restores normal behavior.
func (s *Server) FailLogout(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logoutStatus = status
}

// FailCheck makes the session check answer with status. Zero restores
// normal behavior.
func (s *Server) FailCheck(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkStatus = status
}

// Logins returns every successful login so far.
func (s *Server) Logins() []LoginRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LoginRecord, len(s.logins))
	copy(out, s.logins)
	return out
}

// Checks returns how many session checks the server has answered.
func (s *Server) Checks() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.checks
}

// IssueToken signs a token for a user id, as a login would.
func (s *Server) IssueToken(userID int64, username string) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"exp":      now.Add(TokenTTL).Unix(),
		"iat":      now.Unix(),
		"jti":      uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid request body"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Username]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "User not found"})
		return
	}
	if u.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid credentials"})
		return
	}

	token, err := s.IssueToken(u.id, req.Username)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": err.Error()})
		return
	}

	s.mu.Lock()
	s.logins = append(s.logins, LoginRecord{UserID: u.id, Device: ExtractDevice(r), At: s.clock.Now()})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"token":    token,
		"message":  "Login successful",
		"user_id":  u.id,
		"username": req.Username,
	})
}

// handleLogout always succeeds unless told to fail: tokens are stateless,
// so there is nothing to revoke server-side.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := s.logoutStatus
	s.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]any{"success": false, "message": "logout failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Success"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.checks++
	status := s.checkStatus
	s.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]any{"success": false, "message": "check failed"})
		return
	}

	claims, ok := s.verify(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid or expired token"})
		return
	}

	username, _ := claims["username"].(string)
	s.mu.Lock()
	u, exists := s.users[username]
	s.mu.Unlock()

	sub, _ := claims["sub"].(json.Number).Int64()
	if !exists || u.id != sub {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "User not found"})
		return
	}

	exp, _ := claims.GetExpirationTime()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Success",
		"data": map[string]any{
			"user_id":    sub,
			"username":   username,
			"expires_at": exp.Unix(),
		},
	})
}

func (s *Server) verify(r *http.Request) (jwt.MapClaims, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil, false
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithJSONNumber(),
	)
	if err != nil || !token.Valid {
		return nil, false
	}
	if _, ok := claims["sub"].(json.Number); !ok {
		return nil, false
	}
	return claims, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
