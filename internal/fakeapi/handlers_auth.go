package fakeapi

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"pft/internal/apperr"
	"pft/internal/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r registration) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(r.Name) == "" {
		fields["name"] = "required"
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		fields["email"] = "value is not a valid email address"
	}
	if len(r.Password) < 6 {
		fields["password"] = "must be at least 6 characters"
	}
	if len(fields) > 0 {
		return apperr.Validation("register", fields)
	}
	return nil
}

func userID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

// requireUser authenticates the bearer access token.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		id, err := s.tokens.verify(strings.TrimSpace(raw), typAccess)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, tokenDetail(err))
			return
		}
		if _, ok := s.store.User(id); !ok {
			writeDetail(w, http.StatusUnauthorized, "User not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, id)))
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg registration
	if !decodeBody(w, r, &reg) {
		return
	}
	if err := reg.validate(); err != nil {
		writeValidation(w, err)
		return
	}
	u, err := s.store.CreateUser(strings.TrimSpace(reg.Name), reg.Email, reg.Password)
	switch {
	case errors.Is(err, errDuplicate):
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Failed to create user", log.FieldError, err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if !decodeBody(w, r, &creds) {
		return
	}
	u, ok := s.store.Authenticate(creds.Email, creds.Password)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	id, _ := parseID(u.ID.String())

	access, err := s.tokens.issue(id, typAccess)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to issue access token", log.FieldError, err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	refresh, err := s.tokens.issue(id, typRefresh)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to issue refresh token", log.FieldError, err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refresh,
		Path:     s.prefix + "/auth/refresh",
		MaxAge:   int(s.tokens.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.InfoContext(r.Context(), "User logged in", log.FieldUserID, u.ID.String())
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": access,
		"token_type":   "bearer",
		"user":         u,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeDetail(w, http.StatusUnauthorized, "No refresh token")
		return
	}
	id, err := s.tokens.verify(cookie.Value, typRefresh)
	if err != nil {
		detail := "Invalid refresh token"
		if tokenDetail(err) == "Token expired" {
			detail = "Refresh token expired"
		}
		writeDetail(w, http.StatusUnauthorized, detail)
		return
	}
	if _, ok := s.store.User(id); !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	access, err := s.tokens.issue(id, typAccess)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to issue access token", log.FieldError, err)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access, "token_type": "bearer"})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     s.prefix + "/auth/refresh",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.store.User(userID(r.Context()))
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
