package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/domyjob/domyjob/internal/models"
	"github.com/domyjob/domyjob/internal/store"
)

// Service provides authentication business logic.
type Service struct {
	users    store.UserStore
	sessions store.SessionStore
	tokens   *TokenIssuer
	maxAge   time.Duration
}

// NewService creates a new auth service with the given stores, API token
// issuer and session max age in hours.
func NewService(users store.UserStore, sessions store.SessionStore, tokens *TokenIssuer, maxAgeHours int) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
	}
}

// Signup registers a new user with the given username and password.
// It validates that username is not empty and password is at least 8 characters.
func (s *Service) Signup(ctx context.Context, username, password, email, displayName string) (*models.User, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, hash, email, displayName)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates a user by username and password, returning a new session.
func (s *Service) Login(ctx context.Context, username, password string) (*models.Session, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, errors.New("invalid username or password")
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return nil, errors.New("invalid username or password")
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	expiresAt := time.Now().Add(s.maxAge)
	session, err := s.sessions.CreateSession(ctx, token, user.ID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Logout deletes the session identified by the given token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}

// ValidateSession checks if the given token corresponds to a valid session
// and returns the associated user.
func (s *Service) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	session, err := s.sessions.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, errors.New("invalid session")
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, errors.New("user not found")
	}

	return user, nil
}

// IssueAPIToken mints a bearer token for the given user. The browser
// extension uses these for screenshot capture calls, where no session
// cookie is available.
func (s *Service) IssueAPIToken(user *models.User) (string, error) {
	return s.tokens.Issue(user.ID)
}

// ValidateAPIToken verifies a bearer token and returns the associated user.
func (s *Service) ValidateAPIToken(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, errors.New("invalid api token")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.New("user not found")
	}

	return user, nil
}
