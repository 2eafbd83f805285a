package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-desk/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)

	token, expiresAt, err := tm.GenerateToken("user-1", domain.RoleSupervisor, true)
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, domain.RoleSupervisor, claims.Role)
	require.True(t, claims.MFAVerified)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("secret-a", 30)
	token, _, err := tm.GenerateToken("user-1", domain.RoleCustomer, false)
	require.NoError(t, err)

	other := NewTokenManager("secret-b", 30)
	_, err = other.ParseToken(token)
	require.Error(t, err)
}

func TestTokenRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	_, err := tm.ParseToken("not.a.token")
	require.Error(t, err)
}

func TestMemoryChallengeStore_SingleUse(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ch-1", "user-1", time.Minute))

	userID, ok, err := store.Take(ctx, "ch-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "user-1", userID)

	// Second take must fail; challenges are single-use.
	_, ok, err = store.Take(ctx, "ch-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryChallengeStore_Expiry(t *testing.T) {
	store := NewMemoryChallengeStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "ch-2", "user-1", -time.Second))
	_, ok, err := store.Take(ctx, "ch-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValidateTOTP(t *testing.T) {
	secret, url, err := GenerateTOTPSecret("IncidentDesk", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	require.Contains(t, url, "otpauth://")

	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ValidateTOTP(code, secret, 2))

	require.False(t, ValidateTOTP("000000", secret, 2))
	require.False(t, ValidateTOTP("", secret, 2))
}

func TestValidateTOTP_WindowTolerance(t *testing.T) {
	secret, _, err := GenerateTOTPSecret("IncidentDesk", "bob")
	require.NoError(t, err)

	// A code from two steps back is inside the configured window.
	past := time.Now().UTC().Add(-60 * time.Second)
	code, err := totp.GenerateCode(secret, past)
	require.NoError(t, err)
	require.True(t, ValidateTOTP(code, secret, 2))
	require.False(t, ValidateTOTP(code, secret, 0))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Str0ng!Passw0rd", 4)
	require.NoError(t, err)
	require.NoError(t, ComparePassword(hash, "Str0ng!Passw0rd"))
	require.Error(t, ComparePassword(hash, "wrong"))
}
