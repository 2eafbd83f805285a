package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterFailedAttempt_LocksAtThreshold(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	user := &User{}

	for i := 0; i < 4; i++ {
		user.RegisterFailedAttempt(now, 5, 30*time.Minute)
		require.False(t, user.IsLocked(now), "attempt %d should not lock", i+1)
	}

	user.RegisterFailedAttempt(now, 5, 30*time.Minute)
	require.True(t, user.IsLocked(now))
	require.Equal(t, 5, user.FailedAttempts)
	require.Equal(t, now.Add(30*time.Minute), *user.LockedUntil)
}

func TestRegisterFailedAttempt_StaleLockResetsCounter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	user := &User{FailedAttempts: 5, LockedUntil: &expired}

	require.False(t, user.IsLocked(now))

	// The first failure after an expired lock starts a fresh count.
	user.RegisterFailedAttempt(now, 5, 30*time.Minute)
	require.Equal(t, 1, user.FailedAttempts)
	require.Nil(t, user.LockedUntil)
	require.False(t, user.IsLocked(now))
}

func TestRegisterFailedAttempt_DuringLockKeepsWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(10 * time.Minute)
	user := &User{FailedAttempts: 5, LockedUntil: &until}

	user.RegisterFailedAttempt(now, 5, 30*time.Minute)
	require.Equal(t, until, *user.LockedUntil, "active lock window must not extend")
}

func TestResetAttempts(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Hour)
	user := &User{FailedAttempts: 3, LockedUntil: &until}

	user.ResetAttempts()
	require.Zero(t, user.FailedAttempts)
	require.Nil(t, user.LockedUntil)
	require.False(t, user.IsLocked(now))
}

func TestRoleValid(t *testing.T) {
	for _, role := range Roles {
		require.True(t, role.Valid())
	}
	require.False(t, Role("SUPERUSER").Valid())
	require.False(t, Role("").Valid())
}
