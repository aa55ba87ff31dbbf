// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/store"
)

// Account errors.
var (
	// ErrInvalidCredentials covers unknown users, wrong passwords and
	// deactivated accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already in use")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrUserNotFound       = errors.New("user not found")
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, mutate func(*models.User) error) (*models.User, error)
}

// Service manages accounts and issues session tokens.
type Service struct {
	users UserStore
	jwt   *JWTManager
	cost  int
	now   func() time.Time
}

// NewService creates an account service hashing with bcrypt's default cost.
func NewService(users UserStore, jwt *JWTManager) *Service {
	return &Service{users: users, jwt: jwt, cost: bcrypt.DefaultCost, now: time.Now}
}

// Session is a signed token and the account it belongs to.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

func (s *Service) issue(u *models.User) (*Session, error) {
	token, err := s.jwt.GenerateToken(u.ID, u.Username, string(u.Role))
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		ExpiresAt: s.now().Add(s.jwt.Timeout()).UTC(),
		User:      u.Public(),
	}, nil
}

// Register creates an active account and signs it in. The role defaults to
// viewer.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	role := in.Role
	if role == "" {
		role = models.RoleViewer
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	logging.Info().Str("user_id", u.ID).Str("username", u.Username).Str("role", string(role)).Msg("User registered")
	return s.issue(u)
}

// Login verifies a password and signs the user in, recording the login time.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		logging.Warn().Str("username", username).Msg("Login failed: wrong password")
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		logging.Warn().Str("username", username).Msg("Login failed: account deactivated")
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	updated, err := s.users.UpdateUser(ctx, u.ID, func(u *models.User) error {
		u.LastLogin = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.issue(updated)
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("crowdwatch-timing"), bcrypt.MinCost)

// Me returns the account behind claims.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

// ProfileUpdate holds the fields a user may change on their own account.
// Empty fields are left unchanged.
type ProfileUpdate struct {
	Username string
	Email    string
}

// UpdateProfile changes a user's own username or email.
func (s *Service) UpdateProfile(ctx context.Context, userID string, p ProfileUpdate) (*models.User, error) {
	u, err := s.users.UpdateUser(ctx, userID, func(u *models.User) error {
		if p.Username != "" {
			u.Username = p.Username
		}
		if p.Email != "" {
			u.Email = p.Email
		}
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrUserNotFound
	case errors.Is(err, store.ErrDuplicate):
		return nil, ErrUsernameTaken
	case err != nil:
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

// ChangePassword replaces a password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.users.UpdateUser(ctx, userID, func(u *models.User) error {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
			return ErrWrongPassword
		}
		u.PasswordHash = string(hash)
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err == nil {
		logging.Info().Str("user_id", userID).Msg("Password changed")
	}
	return err
}

// EnsureAdmin creates the seed admin account unless a user with that name
// already exists. Empty credentials skip seeding.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	_, err = s.Register(ctx, RegisterInput{Username: username, Password: password, Role: models.RoleAdmin})
	if errors.Is(err, ErrUsernameTaken) {
		return nil
	}
	if err == nil {
		logging.Info().Str("username", username).Msg("Seeded admin account")
	}
	return err
}
