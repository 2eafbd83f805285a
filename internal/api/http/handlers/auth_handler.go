package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-desk/internal/api/dto"
	"github.com/spec-kit/incident-desk/internal/auth"
	"github.com/spec-kit/incident-desk/internal/authz"
	"github.com/spec-kit/incident-desk/internal/domain"
	"github.com/spec-kit/incident-desk/internal/service"
	apperrors "github.com/spec-kit/incident-desk/pkg/util/errorutil"
)

// AuthHandler manages registration, login, MFA and password endpoints.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Register POST /auth/register. Public registration always yields a
// customer account; staff roles are assigned by an administrator.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	role := domain.RoleCustomer
	if req.Role != "" && req.Role != domain.RoleCustomer {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok || principal.User.Role != domain.RoleAdministrator {
			return apperrors.NewPermissionDenied("only administrators may create staff accounts")
		}
		role = req.Role
	}

	user, err := h.service.Register(c.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	}, auth.OriginFromContext(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	result, err := h.service.Login(c.Context(), req.Username, req.Password, auth.OriginFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": loginResponse(result)})
}

// VerifyMFA POST /auth/mfa/verify.
func (h *AuthHandler) VerifyMFA(c *fiber.Ctx) error {
	var req dto.VerifyMFARequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ChallengeID == "" || req.Code == "" {
		return apperrors.NewValidationError("challenge_id and code required", nil)
	}

	result, err := h.service.VerifyMFA(c.Context(), req.ChallengeID, req.Code, auth.OriginFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": loginResponse(result)})
}

// SetupMFA POST /auth/mfa/setup.
func (h *AuthHandler) SetupMFA(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("")
	}
	setup, err := h.service.SetupMFA(c.Context(), principal.User)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MFASetupResponse{Secret: setup.Secret, URL: setup.URL}})
}

// ActivateMFA POST /auth/mfa/activate.
func (h *AuthHandler) ActivateMFA(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("")
	}
	var req dto.MFACodeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.ActivateMFA(c.Context(), principal.User, req.Code, auth.OriginFromContext(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(principal.User)})
}

// DisableMFA POST /auth/mfa/disable.
func (h *AuthHandler) DisableMFA(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("")
	}
	var req dto.MFACodeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.DisableMFA(c.Context(), principal.User, req.Code, auth.OriginFromContext(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(principal.User)})
}

// ChangePassword POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("")
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.ChangePassword(c.Context(), principal.User, req.CurrentPassword, req.NewPassword, auth.OriginFromContext(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"changed": true}})
}

// Logout POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("")
	}
	h.service.Logout(c.Context(), principal.User, auth.OriginFromContext(c))
	return c.JSON(fiber.Map{"data": fiber.Map{"logged_out": true}})
}

// Me GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("")
	}
	permissions := make(map[string][]string, len(authz.Resources))
	for _, resource := range authz.Resources {
		tokens := authz.RolePermissions(principal.User.Role, resource)
		if len(tokens) == 0 {
			continue
		}
		out := make([]string, len(tokens))
		for i, token := range tokens {
			out[i] = string(token)
		}
		permissions[string(resource)] = out
	}
	return c.JSON(fiber.Map{"data": dto.MeResponse{
		User:        userResponse(principal.User),
		Permissions: permissions,
	}})
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		MFAEnabled: user.MFAEnabled,
		CreatedAt:  user.CreatedAt,
	}
}

func loginResponse(result *service.LoginResult) dto.LoginResponse {
	if result.MFARequired {
		return dto.LoginResponse{MFARequired: true, ChallengeID: result.ChallengeID}
	}
	user := userResponse(result.User)
	expires := result.ExpiresAt
	return dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: &expires,
		User:      &user,
	}
}
