package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoicedesk/internal/api"
	applog "invoicedesk/internal/log"
)

// Authenticator exchanges credentials for an API bearer token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Manager ties the session cookie, the Store and the API login together.
type Manager struct {
	store        Store
	authn        Authenticator
	ttl          time.Duration
	cookieSecure bool
	logger       *applog.Logger
	now          func() time.Time
}

// Options configures a Manager.
type Options struct {
	TTL          time.Duration
	CookieSecure bool
	Logger       *applog.Logger
}

func NewManager(store Store, authn Authenticator, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	return &Manager{
		store:        store,
		authn:        authn,
		ttl:          opts.TTL,
		cookieSecure: opts.CookieSecure,
		logger:       opts.Logger.WithComponent(applog.ComponentAuth),
		now:          time.Now,
	}
}

// Login authenticates against the API, stores a new session and sets the
// session cookie on w.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, ErrMissingCredentials
	}

	token, err := m.authn.Login(ctx, username, password)
	if err != nil {
		return Session{}, err
	}

	now := m.now()
	s := Session{
		ID:        uuid.NewString(),
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if exp, ok := tokenExpiry(token); ok && exp.Before(s.ExpiresAt) {
		s.ExpiresAt = exp
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}

	m.setCookie(w, s)
	m.logger.InfoContext(ctx, "User signed in",
		applog.FieldUsername, username,
		applog.FieldOperation, applog.OpLogin)
	return s, nil
}

// Logout forgets the current session, if any, and clears the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	defer m.clearCookie(w)

	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	if err := m.store.Delete(r.Context(), c.Value); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.InfoContext(r.Context(), "User signed out", applog.FieldOperation, applog.OpLogout)
	return nil
}

// Current returns the session bound to the request cookie.
func (m *Manager) Current(r *http.Request) (Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Session{}, ErrSessionNotFound
	}
	s, err := m.store.Get(r.Context(), c.Value)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(m.now()) {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// Invalidate drops the current session. Handlers call it when the API
// answers 401 for the session's token.
func (m *Manager) Invalidate(w http.ResponseWriter, r *http.Request) {
	if s, ok := FromContext(r.Context()); ok {
		if err := m.store.Delete(r.Context(), s.ID); err != nil {
			m.logger.WarnContext(r.Context(), "Failed to delete rejected session", applog.FieldError, err.Error())
		}
	}
	m.clearCookie(w)
}

// RequireAuth lets requests with a live session through, with the session
// and its bearer token in the request context. Other requests are sent to
// the login page: htmx requests through an HX-Redirect header, plain
// requests through a 303 carrying the original path in "next".
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Current(r)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				m.logger.ErrorContext(r.Context(), "Session lookup failed", applog.FieldError, err.Error())
			}
			RedirectToLogin(w, r)
			return
		}
		ctx := NewContext(r.Context(), s)
		ctx = api.ContextWithToken(ctx, s.Token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RedirectToLogin sends the client to the login page.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login"
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// SafeNext returns next when it is a local path, "/" otherwise. Control
// characters and backslashes are refused: browsers strip or rewrite them,
// turning "/\t/host" into "//host".
func SafeNext(next string) string {
	if next == "" || next[0] != '/' || strings.HasPrefix(next, "//") {
		return "/"
	}
	for _, c := range next {
		if c < 0x20 || c == 0x7f || c == '\\' {
			return "/"
		}
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "/"
	}
	p := path.Clean(u.EscapedPath())
	if p == "/login" || strings.HasPrefix(p, "/login/") {
		return "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// Sweep removes expired sessions from the store.
func (m *Manager) Sweep(ctx context.Context) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		m.logger.WarnContext(ctx, "Session sweep failed", applog.FieldError, err.Error())
		return
	}
	if n > 0 {
		m.logger.DebugContext(ctx, "Expired sessions removed", "count", n)
	}
}

// StartSweeper runs Sweep every interval until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep(ctx)
			}
		}
	}()
}

func (m *Manager) setCookie(w http.ResponseWriter, s Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

type sessionKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session RequireAuth attached to ctx.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
