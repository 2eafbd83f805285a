package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-desk/internal/auth"
	"github.com/spec-kit/incident-desk/internal/config"
	"github.com/spec-kit/incident-desk/internal/domain"
	"github.com/spec-kit/incident-desk/internal/repository"
	apperrors "github.com/spec-kit/incident-desk/pkg/util/errorutil"
)

// AuthService implements registration, the two-step login flow, account
// lockout and MFA lifecycle. Credential failures, lockouts and MFA
// failures are all recorded in the audit ledger.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	challenges auth.ChallengeStore
	audit      *AuditService
	security   config.SecurityConfig
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// AuthDependencies bundles requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenManager
	Challenges auth.ChallengeStore
	Audit      *AuditService
	Logger     *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(security config.SecurityConfig, bcryptCost int, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		challenges: deps.Challenges,
		audit:      deps.Audit,
		security:   security,
		bcryptCost: bcryptCost,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// RegisterInput describes account creation payload.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
}

// LoginResult is either a completed session or a pending MFA challenge.
// When MFARequired is set the caller must follow up with VerifyMFA; no
// token has been issued yet.
type LoginResult struct {
	Token       string
	ExpiresAt   time.Time
	MFARequired bool
	ChallengeID string
	User        *domain.User
}

// MFASetup carries the enrollment material returned by SetupMFA.
type MFASetup struct {
	Secret string
	URL    string
}

// Register creates a new account. Callers creating staff accounts must
// already have passed the users:create authorization check.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, origin domain.Origin) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if len(username) < 3 {
		return nil, apperrors.NewValidationError("username must be at least 3 characters", nil)
	}
	if !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("a valid email is required", nil)
	}
	role := input.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}
	if err := validatePasswordPolicy(input.Password); err != nil {
		return nil, err
	}

	if existing, err := s.users.GetByUsername(ctx, username); err == nil && existing != nil {
		return nil, apperrors.NewConflict("username is already taken", nil)
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewInternalError(err)
	}
	if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperrors.NewConflict("email is already registered", nil)
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.recordAuth(ctx, &user.ID, domain.AuditRegisterUser, origin, true, nil, map[string]any{
		"username": user.Username,
		"role":     user.Role,
	})
	return user, nil
}

// Login runs step one of authentication. Order matters: the lockout gate
// comes before password comparison so a locked account leaks nothing
// about credential validity, and a failed comparison feeds the lockout
// counter. Accounts with MFA enrolled receive a challenge instead of a
// token.
func (s *AuthService) Login(ctx context.Context, username, password string, origin domain.Origin) (*LoginResult, error) {
	now := s.now()

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.recordAuth(ctx, nil, domain.AuditLoginFailed, origin, false, strPtr("unknown username"), map[string]any{"username": username})
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.NewInternalError(err)
	}

	if !user.Active {
		s.recordAuth(ctx, &user.ID, domain.AuditLoginBlocked, origin, false, strPtr("account disabled"), nil)
		return nil, apperrors.NewInvalidCredentials()
	}

	if user.IsLocked(now) {
		s.recordAuth(ctx, &user.ID, domain.AuditLoginBlocked, origin, false, strPtr("account locked"), map[string]any{
			"lockedUntil": user.LockedUntil,
		})
		return nil, lockedError(*user.LockedUntil)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		user.RegisterFailedAttempt(now, s.security.MaxLoginAttempts, s.security.LockoutDuration())
		if err := s.users.UpdateSecurityState(ctx, user); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		action := domain.AuditLoginFailed
		reason := "invalid password"
		if user.IsLocked(now) {
			action = domain.AuditLoginBlocked
			reason = "account locked after repeated failures"
		}
		s.recordAuth(ctx, &user.ID, action, origin, false, &reason, map[string]any{
			"failedAttempts": user.FailedAttempts,
		})
		if user.IsLocked(now) {
			return nil, lockedError(*user.LockedUntil)
		}
		return nil, apperrors.NewInvalidCredentials()
	}

	// Password accepted: the counter resets even when MFA is pending.
	user.ResetAttempts()
	user.LastLogin = &now
	if err := s.users.UpdateSecurityState(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if user.MFAEnabled {
		challengeID := uuid.NewString()
		if err := s.challenges.Put(ctx, challengeID, user.ID, s.security.MFAChallengeTTL()); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		return &LoginResult{MFARequired: true, ChallengeID: challengeID, User: user}, nil
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role, false)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.recordAuth(ctx, &user.ID, domain.AuditLoginSuccess, origin, true, nil, nil)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// VerifyMFA runs step two: consume the pending challenge and check the
// TOTP code. The challenge is single-use whether or not the code is
// valid.
func (s *AuthService) VerifyMFA(ctx context.Context, challengeID, code string, origin domain.Origin) (*LoginResult, error) {
	userID, ok, err := s.challenges.Take(ctx, challengeID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !ok {
		return nil, apperrors.NewUnauthorized("unknown or expired challenge")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("unknown or expired challenge")
		}
		return nil, apperrors.NewInternalError(err)
	}

	if !auth.ValidateTOTP(code, user.MFASecret, s.security.MFAWindow) {
		s.recordAuth(ctx, &user.ID, domain.AuditMFAFailed, origin, false, strPtr("invalid TOTP code"), nil)
		return nil, apperrors.NewInvalidMFACode()
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role, true)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.recordAuth(ctx, &user.ID, domain.AuditLoginSuccess, origin, true, nil, map[string]any{"mfa": true})
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// SetupMFA generates an enrollment secret for the user. The secret is
// persisted but stays untrusted until ActivateMFA sees a first valid
// code.
func (s *AuthService) SetupMFA(ctx context.Context, user *domain.User) (*MFASetup, error) {
	if user.MFAEnabled {
		return nil, apperrors.NewConflict("MFA is already enabled", nil)
	}
	secret, url, err := auth.GenerateTOTPSecret(s.security.MFAIssuer, user.Username)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user.MFASecret = secret
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &MFASetup{Secret: secret, URL: url}, nil
}

// ActivateMFA flips enrollment on once the user proves possession of the
// secret with a valid code.
func (s *AuthService) ActivateMFA(ctx context.Context, user *domain.User, code string, origin domain.Origin) error {
	if user.MFAEnabled {
		return apperrors.NewConflict("MFA is already enabled", nil)
	}
	if user.MFASecret == "" {
		return apperrors.NewValidationError("MFA setup has not been started", nil)
	}
	if !auth.ValidateTOTP(code, user.MFASecret, s.security.MFAWindow) {
		s.recordAuth(ctx, &user.ID, domain.AuditMFAFailed, origin, false, strPtr("invalid TOTP code during activation"), nil)
		return apperrors.NewInvalidMFACode()
	}
	user.MFAEnabled = true
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.recordAuth(ctx, &user.ID, domain.AuditMFAEnabled, origin, true, nil, nil)
	return nil
}

// DisableMFA turns enrollment off after re-verifying a current code.
// Roles listed in the MFA-required policy may not disable it.
func (s *AuthService) DisableMFA(ctx context.Context, user *domain.User, code string, origin domain.Origin) error {
	if !user.MFAEnabled {
		return apperrors.NewConflict("MFA is not enabled", nil)
	}
	if s.security.RequiresMFA(user.Role) {
		return apperrors.NewPermissionDenied("MFA is mandatory for this role")
	}
	if !auth.ValidateTOTP(code, user.MFASecret, s.security.MFAWindow) {
		s.recordAuth(ctx, &user.ID, domain.AuditMFAFailed, origin, false, strPtr("invalid TOTP code during disable"), nil)
		return apperrors.NewInvalidMFACode()
	}
	user.MFAEnabled = false
	user.MFASecret = ""
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.recordAuth(ctx, &user.ID, domain.AuditMFADisabled, origin, true, nil, nil)
	return nil
}

// ChangePassword verifies the current password before applying the new
// one under the same policy as registration.
func (s *AuthService) ChangePassword(ctx context.Context, user *domain.User, current, next string, origin domain.Origin) error {
	if err := auth.ComparePassword(user.PasswordHash, current); err != nil {
		s.recordAuth(ctx, &user.ID, domain.AuditLoginFailed, origin, false, strPtr("wrong current password on change"), nil)
		return apperrors.NewInvalidCredentials()
	}
	if err := validatePasswordPolicy(next); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.recordAuth(ctx, &user.ID, domain.AuditPasswordChanged, origin, true, nil, nil)
	return nil
}

// Logout records session termination. Tokens are stateless, so the audit
// line is the whole effect.
func (s *AuthService) Logout(ctx context.Context, user *domain.User, origin domain.Origin) {
	s.recordAuth(ctx, &user.ID, domain.AuditLogout, origin, true, nil, nil)
}

func (s *AuthService) recordAuth(ctx context.Context, actorID *string, action domain.AuditAction, origin domain.Origin, success bool, errMsg *string, details map[string]any) {
	s.audit.Record(ctx, domain.AuditEntry{
		ActorID:      actorID,
		Action:       action,
		Resource:     domain.AuditResourceUser,
		Details:      details,
		OriginIP:     origin.IP,
		UserAgent:    origin.UserAgent,
		Success:      success,
		ErrorMessage: errMsg,
	})
}

// validatePasswordPolicy enforces minimum length and character classes.
func validatePasswordPolicy(password string) error {
	if len(password) < 12 {
		return apperrors.NewValidationError("password must be at least 12 characters", nil)
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return apperrors.NewValidationError("password needs upper and lower case letters, a digit and a symbol", nil)
	}
	return nil
}

func lockedError(until time.Time) error {
	return apperrors.NewAccountLocked("account locked until " + until.UTC().Format(time.RFC3339))
}

func strPtr(s string) *string { return &s }
