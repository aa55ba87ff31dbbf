// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/crowdwatch/internal/config"
)

const testSecret = "this_is_a_very_long_secret_key_for_testing_purposes_12345"

func newTestJWTManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, SessionTimeout: time.Hour})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *config.SecurityConfig
		wantErr     bool
		wantTimeout time.Duration
	}{
		{
			name:        "valid secret",
			cfg:         &config.SecurityConfig{JWTSecret: testSecret, SessionTimeout: 2 * time.Hour},
			wantTimeout: 2 * time.Hour,
		},
		{
			name:        "default timeout",
			cfg:         &config.SecurityConfig{JWTSecret: testSecret},
			wantTimeout: 24 * time.Hour,
		},
		{
			name:    "empty secret",
			cfg:     &config.SecurityConfig{SessionTimeout: time.Hour},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewJWTManager(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewJWTManager() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewJWTManager() unexpected error = %v", err)
			}
			if manager.Timeout() != tt.wantTimeout {
				t.Errorf("Timeout() = %v, want %v", manager.Timeout(), tt.wantTimeout)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager := newTestJWTManager(t)

	tests := []struct {
		name     string
		userID   string
		username string
		role     string
	}{
		{name: "admin", userID: "u-1", username: "alice", role: "admin"},
		{name: "viewer", userID: "u-2", username: "bob", role: "viewer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := manager.GenerateToken(tt.userID, tt.username, tt.role)
			if err != nil {
				t.Fatalf("GenerateToken() error = %v", err)
			}

			claims, err := manager.ValidateToken(token)
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if claims.UserID != tt.userID || claims.Username != tt.username || claims.Role != tt.role {
				t.Errorf("claims = %+v, want %s/%s/%s", claims, tt.userID, tt.username, tt.role)
			}
			if claims.Subject != tt.userID {
				t.Errorf("Subject = %q, want %q", claims.Subject, tt.userID)
			}
		})
	}
}

func TestValidateToken_Invalid(t *testing.T) {
	manager := newTestJWTManager(t)

	for _, token := range []string{"invalid.token.format", "", "not_a_jwt_token"} {
		claims, err := manager.ValidateToken(token)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken(%q) error = %v, want ErrInvalidToken", token, err)
		}
		if claims != nil {
			t.Errorf("ValidateToken(%q) returned claims", token)
		}
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	manager1 := newTestJWTManager(t)
	manager2, err := NewJWTManager(&config.SecurityConfig{JWTSecret: "second_secret_key_that_is_different_from_first_12345"})
	if err != nil {
		t.Fatal(err)
	}

	token, err := manager1.GenerateToken("u-1", "alice", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := manager2.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	manager := newTestJWTManager(t)
	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := manager.GenerateToken("u-1", "alice", "admin")
	if err != nil {
		t.Fatal(err)
	}

	manager.now = time.Now
	if _, err := manager.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	manager := newTestJWTManager(t)
	claims := &Claims{
		UserID: "u-1",
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := manager.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_RequiresUserID(t *testing.T) {
	manager := newTestJWTManager(t)
	token, err := manager.GenerateToken("", "ghost", "viewer")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := manager.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}
