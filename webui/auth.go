package webui

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

const sessionName = "connectd_session"

// sessionStore wraps a gorilla CookieStore with one domain-specific
// rule on top of the usual username-in-cookie check: every session
// carries the connection-config epoch that was current at login, and
// is treated as logged out if that epoch has since moved on. The epoch
// bumps on every force-reconnect and every connection-settings edit
// made through the web UI (webui/router.go), so rotating the printer's
// cloud token or host there invalidates any admin session that
// predates the rotation — the web UI's own notion of "stale
// credentials" piggybacks on the printer's, rather than living on an
// independent timer.
type sessionStore struct {
	store *sessions.CookieStore
	epoch atomic.Uint64
}

func newSessionStore(secret string) *sessionStore {
	var key []byte
	if secret != "" {
		key, _ = base64.StdEncoding.DecodeString(secret)
	}
	if len(key) < 32 {
		key = make([]byte, 32)
		rand.Read(key)
	}
	cs := sessions.NewCookieStore(key)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &sessionStore{store: cs}
}

func (s *sessionStore) get(r *http.Request) *sessions.Session {
	sess, _ := s.store.Get(r, sessionName)
	return sess
}

// getUser returns the logged-in username, or ok=false if there is no
// session, or the session's epoch predates the last InvalidateAll.
func (s *sessionStore) getUser(r *http.Request) (username string, ok bool) {
	sess := s.get(r)
	u, exists := sess.Values["username"]
	if !exists {
		return "", false
	}
	username, ok = u.(string)
	if !ok {
		return "", false
	}
	sessionEpoch, _ := sess.Values["epoch"].(uint64)
	if sessionEpoch != s.epoch.Load() {
		return "", false
	}
	return username, true
}

func (s *sessionStore) setUser(w http.ResponseWriter, r *http.Request, username string) {
	sess := s.get(r)
	sess.Values["username"] = username
	sess.Values["epoch"] = s.epoch.Load()
	sess.Save(r, w)
}

func (s *sessionStore) clear(w http.ResponseWriter, r *http.Request) {
	sess := s.get(r)
	delete(sess.Values, "username")
	sess.Options.MaxAge = -1
	sess.Save(r, w)
}

// InvalidateAll bumps the session epoch, signing every previously
// issued session out on its next request without touching the cookie
// store itself. Called by the force-reconnect and connection-edit
// handlers.
func (s *sessionStore) InvalidateAll() {
	s.epoch.Add(1)
}

func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword hashes an admin password for storage in
// WebConfig.AdminPassHash. Exported for cmd/connectd's
// -set-admin-password flag, which hashes the given password into the
// config file and exits rather than starting the driver loop.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
