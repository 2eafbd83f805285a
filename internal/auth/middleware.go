package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-desk/internal/config"
	"github.com/spec-kit/incident-desk/internal/domain"
	"github.com/spec-kit/incident-desk/internal/repository"
	apperrors "github.com/spec-kit/incident-desk/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. MFAVerified carries over
// from the token so route guards can demand a second-factor session.
type Principal struct {
	User        *domain.User
	MFAVerified bool
}

// Middleware validates bearer tokens and loads the caller's account.
type Middleware struct {
	tokens   *TokenManager
	users    repository.UserRepository
	security config.SecurityConfig
}

// NewMiddleware constructs it.
func NewMiddleware(tokens *TokenManager, users repository.UserRepository, security config.SecurityConfig) *Middleware {
	return &Middleware{tokens: tokens, users: users, security: security}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("unknown account")
		}
		return apperrors.NewInternalError(err)
	}
	if !user.Active {
		return apperrors.NewUnauthorized("account disabled")
	}

	c.Locals(principalKey, &Principal{User: user, MFAVerified: claims.MFAVerified})
	return c.Next()
}

// HandleOptional resolves the principal when credentials are presented
// and otherwise lets the request through anonymously. A presented but
// invalid token is still rejected.
func (m *Middleware) HandleOptional(c *fiber.Ctx) error {
	if c.Get("Authorization") == "" {
		return c.Next()
	}
	return m.Handle(c)
}

// RequireMFA blocks sessions that should have completed the second factor
// but have not. Accounts in an MFA-required role that have not enrolled
// yet may still reach the MFA setup endpoints, so enrollment itself is
// not gated here.
func (m *Middleware) RequireMFA(c *fiber.Ctx) error {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("")
	}
	user := principal.User
	if m.security.RequiresMFA(user.Role) {
		if !user.MFAEnabled {
			return apperrors.NewMFARequired("MFA enrollment is required for this role")
		}
		if !principal.MFAVerified {
			return apperrors.NewMFARequired("this session has not completed MFA")
		}
	}
	if user.MFAEnabled && !principal.MFAVerified {
		return apperrors.NewMFARequired("this session has not completed MFA")
	}
	return c.Next()
}

// RequireRole limits a route to the given roles.
func RequireRole(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("")
		}
		for _, role := range roles {
			if principal.User.Role == role {
				return c.Next()
			}
		}
		return apperrors.NewPermissionDenied("")
	}
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// OriginFromContext captures the request origin for audit entries.
func OriginFromContext(c *fiber.Ctx) domain.Origin {
	return domain.Origin{IP: c.IP(), UserAgent: c.Get("User-Agent")}
}
