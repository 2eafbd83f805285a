package dto

import (
	"time"

	"github.com/spec-kit/incident-desk/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role,omitempty"`
}

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// VerifyMFARequest completes a pending login challenge.
type VerifyMFARequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

// LoginResponse is returned on a completed login. When MFARequired is
// set only ChallengeID is populated and the client must call the verify
// endpoint.
type LoginResponse struct {
	Token       string        `json:"token,omitempty"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
	MFARequired bool          `json:"mfa_required"`
	ChallengeID string        `json:"challenge_id,omitempty"`
	User        *UserResponse `json:"user,omitempty"`
}

// MeResponse describes the caller together with the permission tokens
// the role holds, keyed by resource.
type MeResponse struct {
	User        UserResponse        `json:"user"`
	Permissions map[string][]string `json:"permissions"`
}

// UserResponse is the public shape of an account.
type UserResponse struct {
	ID         string      `json:"id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	MFAEnabled bool        `json:"mfa_enabled"`
	CreatedAt  time.Time   `json:"created_at"`
}

// MFASetupResponse carries enrollment material.
type MFASetupResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// MFACodeRequest carries a TOTP code for activation or disabling.
type MFACodeRequest struct {
	Code string `json:"code"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
