// Package identity implements signup, login and token validation.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/coursehub/internal/domain"
	"github.com/bissquit/coursehub/internal/identity/jwt"
	"github.com/bissquit/coursehub/internal/pkg/ctxlog"
	"github.com/bissquit/coursehub/internal/pkg/metrics"
	"github.com/google/uuid"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// Authenticator issues and verifies session tokens.
type Authenticator interface {
	Issue(userID, email string) (string, error)
	Verify(token string) (*jwt.Claims, error)
	TokenDuration() time.Duration
}

// Service implements identity business logic.
type Service struct {
	repo   Repository
	hasher PasswordHasher
	auth   Authenticator
	newID  func() string
}

// NewService creates a new identity service.
func NewService(repo Repository, hasher PasswordHasher, auth Authenticator) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		auth:   auth,
		newID:  uuid.NewString,
	}
}

// SignupInput holds signup data. Name is the display name the client
// presents as "username".
type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// LoginInput holds login data.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token string
	User  domain.PublicUser
}

// Signup registers a new user with an empty enrollment set.
func (s *Service) Signup(ctx context.Context, input SignupInput) (*domain.User, error) {
	email := domain.NormalizeEmail(input.Email)

	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		metrics.AuthAttempts.WithLabelValues("signup", "conflict").Inc()
		return nil, ErrEmailExists
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:                s.newID(),
		Name:              strings.TrimSpace(input.Name),
		Email:             email,
		Password:          hash,
		EnrolledCourseIDs: []string{},
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			metrics.AuthAttempts.WithLabelValues("signup", "conflict").Inc()
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("signup", "success").Inc()
	ctxlog.FromContext(ctx).Info("user registered", "user_id", user.ID)

	return user, nil
}

// Login authenticates a user and issues a session token.
// Unknown email and wrong password are reported separately.
func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.AuthAttempts.WithLabelValues("login", "invalid_email").Inc()
			return nil, ErrInvalidEmail
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	if !s.hasher.Verify(input.Password, user.Password) {
		metrics.AuthAttempts.WithLabelValues("login", "invalid_password").Inc()
		return nil, ErrInvalidPassword
	}

	token, err := s.auth.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	ctxlog.FromContext(ctx).Info("user logged in", "user_id", user.ID, "token_ttl", s.auth.TokenDuration())

	return &LoginResult{
		Token: token,
		User:  user.Public(),
	}, nil
}

// GetUserByID returns a user by ID.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ValidateToken verifies a session token and returns the identity it carries.
func (s *Service) ValidateToken(_ context.Context, token string) (userID, email string, err error) {
	claims, err := s.auth.Verify(token)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	return claims.UserID, claims.Email, nil
}
