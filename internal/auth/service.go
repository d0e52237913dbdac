package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when the email or username is taken.
	ErrUserExists = errors.New("email or username already taken")
	// ErrInvalidUsername is returned when username is empty.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidEmail is returned when email is empty.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when password is too short.
	ErrInvalidPassword = errors.New("password must be at least 8 characters long")
)

// Session is the result of a successful register or login.
type Session struct {
	User  *store.User
	Token string
}

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with hashed password and returns a session.
func (s *Service) Register(ctx context.Context, email, username, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	if username == "" {
		return nil, ErrInvalidUsername
	}
	if len(password) < MinPasswordLength {
		return nil, ErrInvalidPassword
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, email, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.session(user)
}

// Login validates credentials and returns a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash := dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	if errPwd := ComparePassword(hash, password); errPwd != nil || user == nil {
		return nil, ErrInvalidCredentials
	}

	return s.session(user)
}

// ValidateToken validates a session JWT and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

func (s *Service) session(user *store.User) (*Session, error) {
	token, err := GenerateToken(s.jwtConfig, user.ID, user.UUID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}
