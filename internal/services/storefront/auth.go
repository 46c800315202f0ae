package storefront

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/session"
	"github.com/pkg/errors"
)

func (s *Service) Login(ctx context.Context, username, password string) (session.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return session.Session{}, errors.Wrap(ErrInvalidInput, "username and password are required")
	}

	res, err := s.backends.Auth.Login(ctx, username, password)
	if err != nil {
		return session.Session{}, err
	}
	if res.User.ID == "" {
		// старые версии user-service не отдают userId в ответе логина
		u, err := s.backends.Auth.Me(ctx, res.AccessToken)
		if err != nil {
			return session.Session{}, errors.Wrap(err, "fetch profile")
		}
		res.User = u
	}
	if res.User.Username == "" {
		res.User.Username = username
	}

	sess, err := s.sessions.Start(ctx, res)
	if err != nil {
		return session.Session{}, err
	}
	slog.Info("login", "user", sess.User.ID, "session", sess.ID)
	return sess, nil
}

// ValidateRegistration: локальные проверки до запроса в user-service.
func ValidateRegistration(in models.RegisterInput) (models.RegisterInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return in, errors.Wrap(ErrInvalidInput, "username is required")
	}
	if in.Email == "" {
		return in, errors.Wrap(ErrInvalidInput, "email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return in, errors.Wrap(ErrInvalidInput, "email is malformed")
	}
	if in.Password == "" {
		return in, errors.Wrap(ErrInvalidInput, "password is required")
	}
	if in.Password != in.ConfirmPassword {
		return in, ErrPasswordMismatch
	}
	return in, nil
}

func (s *Service) Register(ctx context.Context, in models.RegisterInput) error {
	in, err := ValidateRegistration(in)
	if err != nil {
		return err
	}
	return s.backends.Auth.Register(ctx, in)
}

// Logout всегда очищает локальную сессию, даже если user-service недоступен.
func (s *Service) Logout(ctx context.Context, sid string) error {
	sess, err := s.session(ctx, sid)
	if err != nil {
		return err
	}
	if err := s.backends.Auth.Logout(ctx, sess.Token); err != nil {
		slog.Warn("backend logout", "user", sess.User.ID, "err", err)
	}
	s.views.Drop(sid)
	return s.sessions.Clear(ctx, sid)
}

// Me обновляет денормализованный профиль в сессии.
func (s *Service) Me(ctx context.Context, sid string) (models.User, error) {
	sess, err := s.session(ctx, sid)
	if err != nil {
		return models.User{}, err
	}
	u, err := s.backends.Auth.Me(ctx, sess.Token)
	if err != nil {
		return models.User{}, s.backendErr(ctx, sid, err)
	}
	if u.ID == "" {
		u.ID = sess.User.ID
	}
	if err := s.sessions.UpdateUser(ctx, sid, u); err != nil {
		slog.Warn("update session profile", "user", u.ID, "err", err)
	}
	return u, nil
}
