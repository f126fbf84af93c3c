package service

import (
	"context"
	"log/slog"

	"localhaven-cms/internal/event"
	"localhaven-cms/internal/model"
	"localhaven-cms/internal/repository"
	"localhaven-cms/internal/storage"
)

// SessionTransport is the remote half of authentication.
type SessionTransport interface {
	Login(ctx context.Context, credentials model.LoginCredentials) (*model.Session, error)
	Logout(ctx context.Context) error
	RefreshToken(ctx context.Context) (*model.Session, error)
}

// AuthService is the UI-facing auth state: the current session as an
// observable value plus the actions that change it.
type AuthService struct {
	transport   SessionTransport
	sessions    *repository.SessionRepository
	session     *event.Observable[*model.Session]
	unsubscribe func()
	logger      *slog.Logger
}

// NewAuthService loads the stored session and keeps the observable in step
// with every later commit to store.
func NewAuthService(ctx context.Context, store storage.Store, sessions *repository.SessionRepository, transport SessionTransport, logger *slog.Logger) (*AuthService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &AuthService{
		transport: transport,
		sessions:  sessions,
		session:   event.NewObservable[*model.Session](nil),
		logger:    logger,
	}

	unsubscribe, err := storage.Subscribe(ctx, store, repository.CurrentSession, s.session.Set, func(err error) {
		s.logger.Error("session subscription failed", "error", err)
	})
	if err != nil {
		return nil, err
	}
	s.unsubscribe = unsubscribe

	return s, nil
}

func (s *AuthService) Login(ctx context.Context, credentials model.LoginCredentials) (*model.Session, error) {
	session, err := s.transport.Login(ctx, credentials)
	if err != nil {
		s.logger.Error("login failed", "error", err)
		return nil, err
	}

	if err := s.sessions.SetSession(ctx, *session); err != nil {
		s.logger.Error("login failed", "error", err)
		return nil, err
	}

	return session, nil
}

// Logout ends the remote session, then the local one. When the remote call
// fails the local session is kept.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.transport.Logout(ctx); err != nil {
		s.logger.Error("logout failed", "error", err)
		return err
	}

	if err := s.sessions.ClearSession(ctx); err != nil {
		s.logger.Error("logout failed", "error", err)
		return err
	}

	return nil
}

func (s *AuthService) Refresh(ctx context.Context) (*model.Session, error) {
	session, err := s.transport.RefreshToken(ctx)
	if err != nil {
		s.logger.Error("refresh failed", "error", err)
		return nil, err
	}

	if err := s.sessions.SetSession(ctx, *session); err != nil {
		s.logger.Error("refresh failed", "error", err)
		return nil, err
	}

	return session, nil
}

// UpdateUser changes the cached user only. The server is not told.
func (s *AuthService) UpdateUser(ctx context.Context, patch model.UserPatch) (*model.Session, error) {
	session, err := s.sessions.UpdateUser(ctx, patch)
	if err != nil {
		s.logger.Error("update user failed", "error", err)
		return nil, err
	}
	return session, nil
}

// Session returns the current session, nil when signed out.
func (s *AuthService) Session() *model.Session {
	return s.session.Get()
}

// Subscribe calls fn with the current session and again on every change.
func (s *AuthService) Subscribe(fn func(*model.Session)) func() {
	return s.session.Subscribe(fn)
}

func (s *AuthService) IsAuthenticated() bool {
	return s.session.Get() != nil
}

// Token is the bearer token of the current session, "" when signed out.
func (s *AuthService) Token() string {
	if session := s.session.Get(); session != nil {
		return session.Token
	}
	return ""
}

func (s *AuthService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
