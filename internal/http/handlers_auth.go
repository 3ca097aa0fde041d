package http

import (
	"errors"
	"net/http"

	"invoicedesk/internal/api"
	"invoicedesk/internal/auth"
	applog "invoicedesk/internal/log"
)

type loginData struct {
	Username string
	Next     string
	Error    string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := auth.SafeNext(r.URL.Query().Get("next"))
	if _, err := s.auth.Current(r); err == nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	s.renderPage(w, r, http.StatusOK, "login", view{
		Title: "Sign in",
		Path:  r.URL.Path,
		Data:  loginData{Next: next},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	username := sanitizeInput(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	next := auth.SafeNext(r.PostForm.Get("next"))

	if _, err := s.auth.Login(r.Context(), w, username, password); err != nil {
		status, msg := http.StatusUnauthorized, api.UserMessage(err)
		var se *api.StatusError
		switch {
		case errors.Is(err, auth.ErrMissingCredentials):
			status, msg = http.StatusBadRequest, "Username and password are required"
		case errors.As(err, &se) && se.StatusCode == 0:
			status = http.StatusBadGateway
			s.logError(r, "Login request failed", err, applog.OpLogin)
		case !errors.As(err, &se) && !errors.Is(err, api.ErrNoToken):
			status = http.StatusInternalServerError
			s.logError(r, "Login failed", err, applog.OpLogin)
		}
		s.renderPage(w, r, status, "login", view{
			Title: "Sign in",
			Path:  r.URL.Path,
			Data:  loginData{Username: username, Next: next, Error: msg},
		})
		return
	}

	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(w, r); err != nil {
		s.logError(r, "Logout failed", err, applog.OpLogout)
	}
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
