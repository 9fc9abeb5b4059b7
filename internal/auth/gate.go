package auth

import (
	"context"
	"sync"
)

// User is the signed-in dashboard user.
type User struct {
	Email string `json:"email"`
}

// Session is the observable state of a Gate.
type Session struct {
	User    *User `json:"user"`
	IsAdmin bool  `json:"is_admin"`
	Loading bool  `json:"loading"`
}

// Gate holds one client's session. Only admins can be signed in; there is no
// signed-in state without the admin claim.
type Gate struct {
	manager *Manager

	mu       sync.Mutex
	token    string
	session  Session
	onChange func(Session)
}

// NewGate creates a signed-out gate.
func NewGate(m *Manager) *Gate {
	return &Gate{manager: m}
}

// OnChange registers fn to receive every session change.
func (g *Gate) OnChange(fn func(Session)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

func (g *Gate) Session() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

// Token returns the session token, empty when signed out.
func (g *Gate) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// Login exchanges credentials for a session. Valid credentials without the
// admin claim end signed out with ErrAccessDenied.
func (g *Gate) Login(ctx context.Context, email, password string) (string, error) {
	g.set("", Session{Loading: true})

	token, claims, err := g.manager.SignIn(ctx, email, password)
	if err != nil {
		g.set("", Session{})
		return "", err
	}
	if !claims.Admin {
		g.manager.SignOut(token)
		g.set("", Session{})
		return "", ErrAccessDenied
	}

	g.set(token, Session{User: &User{Email: claims.Email}, IsAdmin: true})
	return token, nil
}

// Restore adopts an existing session token, as when a client reconnects.
func (g *Gate) Restore(token string) error {
	claims, err := g.manager.Verify(token)
	if err != nil {
		g.set("", Session{})
		return err
	}
	if !claims.Admin {
		g.set("", Session{})
		return ErrAccessDenied
	}
	g.set(token, Session{User: &User{Email: claims.Email}, IsAdmin: true})
	return nil
}

// Logout revokes the token and signs out. It is safe to call when signed out.
func (g *Gate) Logout() {
	if token := g.Token(); token != "" {
		g.manager.SignOut(token)
	}
	g.set("", Session{})
}

func (g *Gate) set(token string, s Session) {
	g.mu.Lock()
	g.token = token
	g.session = s
	cb := g.onChange
	g.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}
