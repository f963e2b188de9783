// Package session keeps the viewer's access level in a signed cookie
// session. Search visibility and the forwarded search requests depend on
// it.
package session

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

// CookieName is the name of the session cookie.
const CookieName = "jgfinder_session"

// GuestAccess is the access level of a viewer without a session.
const GuestAccess = 1

const accessKey = "access"

// Manager reads and writes viewer sessions.
type Manager struct {
	store sessions.Store
}

// NewManager creates a Manager backed by a cookie store signed with key.
func NewManager(key []byte, secure bool) *Manager {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store}
}

// AccessLevel returns the viewer's access level, GuestAccess when the
// request carries no valid session.
func (m *Manager) AccessLevel(r *http.Request) int {
	sess, err := m.store.Get(r, CookieName)
	if err != nil {
		return GuestAccess
	}
	level, ok := sess.Values[accessKey].(int)
	if !ok || level < GuestAccess {
		return GuestAccess
	}
	return level
}

// SetAccessLevel stores the viewer's access level in the session.
func (m *Manager) SetAccessLevel(w http.ResponseWriter, r *http.Request, level int) error {
	const op = "session.Manager.SetAccessLevel"

	if level < GuestAccess {
		return fmt.Errorf("%s: access level %d below guest level", op, level)
	}

	// A stale or tampered cookie yields a fresh session alongside the error.
	sess, _ := m.store.Get(r, CookieName)
	sess.Values[accessKey] = level
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
