package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-desk/internal/auth"
	"github.com/spec-kit/incident-desk/internal/config"
	"github.com/spec-kit/incident-desk/internal/domain"
	"github.com/spec-kit/incident-desk/internal/repository"
	"github.com/spec-kit/incident-desk/internal/service"
	apperrors "github.com/spec-kit/incident-desk/pkg/util/errorutil"
)

const testPassword = "Sup3r-Secret-Pass!"

type handlerUserRepo struct {
	users map[string]*domain.User
}

func newHandlerUserRepo() *handlerUserRepo {
	return &handlerUserRepo{users: map[string]*domain.User{}}
}

func (r *handlerUserRepo) add(user *domain.User) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.users[user.ID] = user
}

func (r *handlerUserRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = uuid.NewString()
	r.users[user.ID] = user
	return nil
}

func (r *handlerUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r *handlerUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *handlerUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *handlerUserRepo) Update(_ context.Context, _ *domain.User) error {
	panic("not expected in handler tests")
}

func (r *handlerUserRepo) UpdateSecurityState(_ context.Context, _ *domain.User) error {
	panic("not expected in handler tests")
}

type handlerAuditRepo struct {
	entries []domain.AuditEntry
}

func (r *handlerAuditRepo) Insert(_ context.Context, entry *domain.AuditEntry) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *handlerAuditRepo) List(_ context.Context, _ repository.AuditFilter) ([]domain.AuditEntry, int64, error) {
	panic("not expected in handler tests")
}

func (r *handlerAuditRepo) Stats(_ context.Context, _ repository.AuditFilter) (*repository.AuditStats, error) {
	panic("not expected in handler tests")
}

func (r *handlerAuditRepo) Update(_ context.Context, _ string, _ map[string]any) error {
	panic("not expected in handler tests")
}

func (r *handlerAuditRepo) Delete(_ context.Context, _ string) error {
	panic("not expected in handler tests")
}

func newRegisterApp(t *testing.T) (*fiber.App, *handlerUserRepo, *auth.TokenManager) {
	t.Helper()
	logger := zap.NewNop()
	users := newHandlerUserRepo()
	tokens := auth.NewTokenManager("test-secret", 30)
	security := config.SecurityConfig{
		MaxLoginAttempts:   5,
		LockoutMinutes:     30,
		MFAWindow:          2,
		MFAChallengeTTLSec: 300,
	}
	authService := service.NewAuthService(security, 4, service.AuthDependencies{
		UserRepo:   users,
		Tokens:     tokens,
		Challenges: auth.NewMemoryChallengeStore(),
		Audit:      service.NewAuditService(&handlerAuditRepo{}, logger),
		Logger:     logger,
	})
	handler := NewAuthHandler(authService)
	middleware := auth.NewMiddleware(tokens, users, security)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{
				"error": fiber.Map{"code": domainErr.Code, "message": domainErr.Message},
			})
		},
	})
	app.Post("/auth/register", middleware.HandleOptional, handler.Register)
	app.Get("/auth/me", middleware.Handle, handler.Me)
	return app, users, tokens
}

func registerRequest(t *testing.T, body map[string]any, token string) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRegister_AnonymousCreatesCustomer(t *testing.T) {
	app, users, _ := newRegisterApp(t)

	resp, err := app.Test(registerRequest(t, map[string]any{
		"username": "new-customer",
		"email":    "customer@example.com",
		"password": testPassword,
	}, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	require.Equal(t, string(domain.RoleCustomer), data["role"])

	stored, err := users.GetByUsername(context.Background(), "new-customer")
	require.NoError(t, err)
	require.Equal(t, domain.RoleCustomer, stored.Role)
}

func TestRegister_StaffRoleDeniedWithoutAdministrator(t *testing.T) {
	app, users, tokens := newRegisterApp(t)

	// Anonymous callers cannot request a staff role.
	resp, err := app.Test(registerRequest(t, map[string]any{
		"username": "new-agent",
		"email":    "agent@example.com",
		"password": testPassword,
		"role":     string(domain.RoleAgentTier1),
	}, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Neither can an authenticated non-administrator.
	supervisor := &domain.User{Username: "sup", Email: "sup@example.com", Role: domain.RoleSupervisor, Active: true}
	users.add(supervisor)
	supToken, _, err := tokens.GenerateToken(supervisor.ID, supervisor.Role, true)
	require.NoError(t, err)

	resp, err = app.Test(registerRequest(t, map[string]any{
		"username": "new-agent",
		"email":    "agent@example.com",
		"password": testPassword,
		"role":     string(domain.RoleAgentTier1),
	}, supToken))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = users.GetByUsername(context.Background(), "new-agent")
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestRegister_AdministratorCreatesStaffAccount(t *testing.T) {
	app, users, tokens := newRegisterApp(t)

	admin := &domain.User{Username: "admin", Email: "admin@example.com", Role: domain.RoleAdministrator, Active: true}
	users.add(admin)
	adminToken, _, err := tokens.GenerateToken(admin.ID, admin.Role, true)
	require.NoError(t, err)

	resp, err := app.Test(registerRequest(t, map[string]any{
		"username": "new-agent",
		"email":    "agent@example.com",
		"password": testPassword,
		"role":     string(domain.RoleAgentTier1),
	}, adminToken))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	stored, err := users.GetByUsername(context.Background(), "new-agent")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAgentTier1, stored.Role)
}

func TestMe_ReportsRolePermissions(t *testing.T) {
	app, users, tokens := newRegisterApp(t)

	supervisor := &domain.User{Username: "sup", Email: "sup@example.com", Role: domain.RoleSupervisor, Active: true}
	users.add(supervisor)
	token, _, err := tokens.GenerateToken(supervisor.ID, supervisor.Role, true)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	perms := data["permissions"].(map[string]any)

	tickets := perms["tickets"].([]any)
	require.Contains(t, tickets, "read_all")
	require.Contains(t, tickets, "reassign")
	auditLogs := perms["audit_logs"].([]any)
	require.Contains(t, auditLogs, "view_all")
	// Supervisors hold no user-management tokens, so the resource is absent.
	require.NotContains(t, perms, "users")
}

func TestRegister_InvalidTokenRejected(t *testing.T) {
	app, _, _ := newRegisterApp(t)

	resp, err := app.Test(registerRequest(t, map[string]any{
		"username": "someone",
		"email":    "someone@example.com",
		"password": testPassword,
	}, "not.a.token"))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
