// Package auth tracks who is signed in. A Session starts in Loading, settles
// on Anonymous or Authenticated, and gates access to protected commands.
package auth

import (
	"context"
	"errors"
	"sync"

	"pft/internal/api"
	"pft/internal/apperr"
	"pft/internal/core"
	"pft/internal/log"
	"pft/internal/tokenstore"
)

type Status int

const (
	StatusLoading Status = iota
	StatusAnonymous
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Refresher mints a new access token from the refresh cookie.
type Refresher interface {
	Refresh(ctx context.Context) (token string, ok bool)
}

// Session is the process-wide sign-in state. Status is Authenticated exactly
// when a user is set.
type Session struct {
	api       api.Auth
	refresher Refresher
	tokens    *tokenstore.Store
	logger    *log.Logger

	mu       sync.RWMutex
	status   Status
	user     *core.User
	onLogout []func()

	startOnce sync.Once
}

func New(remote api.Auth, refresher Refresher, tokens *tokenstore.Store, logger *log.Logger) *Session {
	return &Session{
		api:       remote,
		refresher: refresher,
		tokens:    tokens,
		logger:    log.OrNop(logger).WithComponent(log.ComponentAuth),
		status:    StatusLoading,
	}
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// User returns the signed-in user.
func (s *Session) User() (core.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return core.User{}, false
	}
	return *s.user, true
}

// OnLogout registers fn to run after every logout, e.g. to drop cached data.
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Start settles the session once per process. Without an access token it
// first tries a silent refresh. A remembered session is then confirmed by
// fetching the profile; any failure there clears the token. A session that
// was not remembered goes straight to Anonymous without a profile call.
func (s *Session) Start(ctx context.Context) Status {
	s.startOnce.Do(func() {
		if _, ok := s.tokens.Token(); !ok {
			if _, ok := s.refresher.Refresh(ctx); ok {
				s.logger.DebugContext(ctx, "Session restored from refresh cookie")
			}
		}

		if !s.tokens.PersistFlag() {
			s.set(ctx, StatusAnonymous, nil)
			return
		}

		u, err := s.api.Me(ctx)
		if err != nil {
			s.logger.InfoContext(ctx, "Remembered session rejected", log.FieldError, err)
			s.clearTokens(ctx)
			s.set(ctx, StatusAnonymous, nil)
			return
		}
		s.set(ctx, StatusAuthenticated, &u)
	})
	return s.Status()
}

// Login exchanges credentials for a token, stores it with the remember flag
// and loads the profile. When the profile cannot be loaded the token is
// cleared again and the session is Anonymous.
func (s *Session) Login(ctx context.Context, email, password string, remember bool) (core.User, error) {
	resp, err := s.api.Login(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		return core.User{}, apperr.Auth(log.OpLogin, err)
	}
	if resp.AccessToken == "" {
		return core.User{}, apperr.Auth(log.OpLogin, errors.New("response carried no access token"))
	}
	if err := s.tokens.Set(resp.AccessToken, remember); err != nil {
		s.logger.WarnContext(ctx, "Token not persisted", log.FieldError, err)
	}

	u, err := s.api.Me(ctx)
	if err != nil {
		s.clearTokens(ctx)
		s.set(ctx, StatusAnonymous, nil)
		return core.User{}, apperr.Auth(log.OpLogin, err)
	}
	s.set(ctx, StatusAuthenticated, &u)
	s.logger.InfoContext(ctx, "Logged in", log.FieldUserID, u.ID.String(), log.FieldPersist, remember)
	return u, nil
}

// Logout tells the server to drop the refresh cookie. Local state is cleared
// whether or not the server answered.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.api.Logout(ctx); err != nil {
		s.logger.WarnContext(ctx, "Logout request failed", log.FieldError, err)
	}
	err := s.tokens.Clear()
	s.set(ctx, StatusAnonymous, nil)

	s.mu.RLock()
	hooks := append([]func(){}, s.onLogout...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
	if err != nil {
		return apperr.Wrapf(err, "clear tokens")
	}
	return nil
}

// ReloadMe refetches the profile. Token and status are left alone.
func (s *Session) ReloadMe(ctx context.Context) (core.User, error) {
	u, err := s.api.Me(ctx)
	if err != nil {
		return core.User{}, err
	}
	s.mu.Lock()
	if s.status == StatusAuthenticated {
		s.user = &u
	}
	s.mu.Unlock()
	return u, nil
}

// Register creates an account. It does not sign in.
func (s *Session) Register(ctx context.Context, name, email, password string) (core.User, error) {
	u, err := s.api.Register(ctx, api.Registration{Name: name, Email: email, Password: password})
	if err != nil {
		return core.User{}, apperr.Auth("register", err)
	}
	return u, nil
}

func (s *Session) clearTokens(ctx context.Context) {
	if err := s.tokens.Clear(); err != nil {
		s.logger.WarnContext(ctx, "Failed to clear tokens", log.FieldError, err)
	}
}

func (s *Session) set(ctx context.Context, status Status, u *core.User) {
	s.mu.Lock()
	prev := s.status
	s.status = status
	s.user = u
	s.mu.Unlock()
	if prev != status {
		s.logger.DebugContext(ctx, "Session status changed", log.FieldStatus, status.String())
	}
}
