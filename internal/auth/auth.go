package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// SessionCookie carries the login session id
const SessionCookie = "cricket_session"

// AdminGroup members may clear analysis history
const AdminGroup = "admins"

// User represents an authenticated user
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
}

// Session represents a user login
type Session struct {
	ID        string
	User      *User
	Token     *oauth2.Token
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AuthProvider is a common interface for authentication providers
type AuthProvider interface {
	LoginHandler(w http.ResponseWriter, r *http.Request)
	CallbackHandler(w http.ResponseWriter, r *http.Request)
	LogoutHandler(w http.ResponseWriter, r *http.Request)
	Middleware(next http.HandlerFunc) http.HandlerFunc
}

type contextKey struct{}

// WithUser stores user on ctx
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// GetUser retrieves the authenticated user from the request context
func GetUser(r *http.Request) *User {
	user, _ := r.Context().Value(contextKey{}).(*User)
	return user
}

// IsAdmin checks if the user has admin privileges
func IsAdmin(user *User) bool {
	if user == nil {
		return false
	}
	for _, group := range user.Groups {
		if group == AdminGroup {
			return true
		}
	}
	return false
}

// RequireAdmin rejects authenticated users outside the admin group.
// It must run inside a provider's Middleware.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(GetUser(r)) {
			deny(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}

// sessions is the cookie-keyed login table shared by both providers
type sessions struct {
	mu    sync.RWMutex
	byID  map[string]*Session
	clock func() time.Time
}

func newSessions() *sessions {
	return &sessions{byID: make(map[string]*Session), clock: time.Now}
}

func (s *sessions) create(user *User, token *oauth2.Token, expires time.Time) *Session {
	sess := &Session{
		ID:        generateSessionID(),
		User:      user,
		Token:     token,
		CreatedAt: s.clock(),
		ExpiresAt: expires,
	}
	s.mu.Lock()
	s.byID[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessions) lookup(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	sess, ok := s.byID[cookie.Value]
	s.mu.RUnlock()
	if !ok || s.clock().After(sess.ExpiresAt) {
		return nil, false
	}
	return sess, true
}

func (s *sessions) drop(r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.byID, cookie.Value)
		s.mu.Unlock()
	}
}

// guard wraps next so that only requests with a live session reach it
func (s *sessions) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.lookup(r)
		if !ok {
			deny(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), sess.User)))
	}
}

func setSessionCookie(w http.ResponseWriter, sess *Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "login": "/auth/login"})
}

func randomToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

// generateState generates a random state string for CSRF protection
func generateState() string {
	return randomToken()
}

func generateSessionID() string {
	return randomToken()
}
