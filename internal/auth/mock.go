package auth

import (
	"net/http"
	"time"
)

// MockAuth logs everyone in as a development user
type MockAuth struct {
	sessions *sessions
	user     User
}

// NewMockAuth creates a new mock authentication handler
func NewMockAuth() *MockAuth {
	return &MockAuth{
		sessions: newSessions(),
		user: User{
			ID:       "dev-user-123",
			Email:    "dev@cricket.local",
			Name:     "Dev User",
			Username: "devuser",
			Groups:   []string{"users", AdminGroup},
		},
	}
}

// LoginHandler creates a session without any external round trip
func (m *MockAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	user := m.user
	sess := m.sessions.create(&user, nil, time.Now().Add(24*time.Hour))
	setSessionCookie(w, sess, false)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// CallbackHandler is not needed for mock auth
func (m *MockAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler for mock auth
func (m *MockAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	m.sessions.drop(r)
	clearCookie(w, SessionCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Middleware for mock auth
func (m *MockAuth) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return m.sessions.guard(next)
}
