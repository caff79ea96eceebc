package middleware

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SessionCookie carries the admin session token.
	SessionCookie = "kiosk_session"
	// SessionTTL is how long an admin session stays valid.
	SessionTTL = 30 * 24 * time.Hour
)

var (
	// ErrInvalidPassword is returned by Login for a wrong password.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrAuthDisabled is returned by Login when no admin password is configured.
	ErrAuthDisabled = errors.New("admin access disabled")
)

// Auth guards the admin routes with a single password and in-memory session tokens.
type Auth struct {
	hash []byte
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
}

// NewAuth hashes password. An empty password disables admin access entirely.
func NewAuth(password string) (*Auth, error) {
	a := &Auth{
		ttl:      SessionTTL,
		now:      time.Now,
		sessions: make(map[string]time.Time),
	}
	if password == "" {
		return a, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	a.hash = hash
	return a, nil
}

// Enabled reports whether an admin password is configured.
func (a *Auth) Enabled() bool {
	return len(a.hash) > 0
}

// Login checks password and opens a session, returning its token.
func (a *Auth) Login(password string) (string, error) {
	if !a.Enabled() {
		return "", ErrAuthDisabled
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return "", ErrInvalidPassword
	}

	token := uuid.NewString()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleanupLocked()
	a.sessions[token] = a.now().Add(a.ttl)
	return token, nil
}

// Logout ends the session identified by token.
func (a *Auth) Logout(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, token)
}

// Valid reports whether token names a live session.
func (a *Auth) Valid(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	expiry, ok := a.sessions[token]
	if !ok {
		return false
	}
	if a.now().After(expiry) {
		delete(a.sessions, token)
		return false
	}
	return true
}

func (a *Auth) cleanupLocked() {
	now := a.now()
	for token, expiry := range a.sessions {
		if now.After(expiry) {
			delete(a.sessions, token)
		}
	}
}

// Require lets the request through only with a valid session cookie.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			http.Error(w, "Admin access disabled", http.StatusForbidden)
			return
		}

		// Check the admin session
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || !a.Valid(cookie.Value) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
