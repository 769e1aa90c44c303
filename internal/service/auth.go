package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"readlater/internal/domain"
)

// AuthService owns registration, login and session resolution. Session
// tokens are opaque uuids rotated on every login.
type AuthService struct {
	users      UserStore
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewAuthService(users UserStore, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:      users,
		sessionTTL: sessionTTL,
		logger:     logger.With("component", "auth"),
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	if problems := domain.ValidateCredentials(email, password); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrBadCredentials, strings.Join(problems, " "))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		UniqueID:       uuid.NewString(),
		Email:          email,
		PasswordHash:   string(hash),
		SessionToken:   uuid.NewString(),
		SessionExpires: now.Add(s.sessionTTL),
		CreatedAt:      now,
	}

	id, err := s.users.Create(ctx, user)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Same message as a malformed address so registration does not leak
		// which emails exist.
		return nil, fmt.Errorf("%w: Email is not valid", domain.ErrBadCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.ID = id

	s.logger.Info("user registered", "user_id", user.UniqueID)

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrBadCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrBadCredentials
	}

	token := uuid.NewString()
	expires := time.Now().UTC().Add(s.sessionTTL)
	if err := s.users.SetSession(ctx, user.ID, token, expires); err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	user.SessionToken = token
	user.SessionExpires = expires

	return user, nil
}

// Authenticate resolves a session cookie token to its user, or
// domain.ErrNotFound for missing, unknown and expired tokens alike.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}

	user, err := s.users.FindBySession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}
