package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mmynk/tontine/internal/apperrors"
	"github.com/mmynk/tontine/internal/auth"
	"github.com/mmynk/tontine/internal/models"
)

// AuthService handles account registration, login and lookup.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	users         auth.UserStorage
	logger        *slog.Logger
}

// Session is an authenticated user with a freshly issued token.
type Session struct {
	User  *models.User
	Token string
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, users auth.UserStorage, logger *slog.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		users:         users,
		logger:        logger,
	}
}

// Register creates a new user account and signs a token for it.
func (s *AuthService) Register(ctx context.Context, reg auth.Registration) (*Session, error) {
	s.logger.Info("Register request received", "email", reg.Email)

	user, err := s.authenticator.Register(ctx, reg)
	if err != nil {
		s.logger.Warn("Registration failed", "email", reg.Email, "error", err)
		return nil, err
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal(err, "failed to generate token")
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return &Session{User: user, Token: token}, nil
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	s.logger.Info("Login request received", "email", email)

	if email == "" || password == "" {
		return nil, apperrors.InvalidArgument("email and password are required")
	}

	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		s.logger.Warn("Login failed", "email", email, "error", err)
		return nil, err
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal(err, "failed to generate token")
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID)
	return &Session{User: user, Token: token}, nil
}

// CurrentUser returns the account behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated("%s", auth.ErrMissingToken)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user %s", userID)
	}
	return user, nil
}

// UserByEmail looks up a user by email address.
func (s *AuthService) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.InvalidArgument("email is required")
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, translate(err, "user %s", email)
	}
	return user, nil
}
