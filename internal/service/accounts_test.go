package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aipush/directory/internal/apperr"
	"github.com/aipush/directory/internal/events"
	"github.com/aipush/directory/internal/hash"
	"github.com/aipush/directory/internal/models"
	"github.com/aipush/directory/internal/permissions"
)

func newAccountService(t *testing.T) *AccountService {
	users := newUserService(t)
	return &AccountService{Users: users, DB: users.DB, Producer: &events.Producer{}}
}

func TestSignUpAlwaysViewer(t *testing.T) {
	svc := newAccountService(t)

	user, err := svc.SignUp(context.Background(), "newbie", "newbie@aipush.fun", "longenough")
	require.NoError(t, err)
	require.Equal(t, models.RoleViewer, user.Role)
	require.ElementsMatch(t, permissions.RolePermissions(models.RoleViewer), user.Permissions)

	_, err = svc.SignUp(context.Background(), "short", "short@aipush.fun", "1234567")
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.Validation))
}

func TestRequestPasswordResetNoEnumeration(t *testing.T) {
	svc := newAccountService(t)
	mustCreateUser(t, svc.Users, "alice", models.RoleViewer)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "alice@aipush.fun"))
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@aipush.fun"))

	var count int64
	require.NoError(t, svc.DB.Model(&models.PasswordReset{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	var reset models.PasswordReset
	require.NoError(t, svc.DB.First(&reset).Error)
	// Only a hash is stored; the raw token travels through the event
	// stream to the mail worker.
	require.Len(t, reset.TokenHash, 64)
	require.False(t, reset.Used)
}

func TestResetPasswordWithToken(t *testing.T) {
	svc := newAccountService(t)
	userID := mustCreateUser(t, svc.Users, "alice", models.RoleViewer)

	raw := "known-raw-token"
	reset := models.PasswordReset{
		UserID:    userID,
		TokenHash: hashResetToken(raw),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, svc.DB.Create(&reset).Error)

	require.NoError(t, svc.ResetPasswordWithToken(context.Background(), raw, "brand-new-pass"))

	var user models.User
	require.NoError(t, svc.DB.Where("id = ?", userID).First(&user).Error)
	require.True(t, hash.CheckPassword(user.PasswordHash, "brand-new-pass"))

	// A consumed token cannot be replayed.
	err := svc.ResetPasswordWithToken(context.Background(), raw, "another-pass")
	require.True(t, apperr.Is(err, apperr.Authentication))
}

func TestResetPasswordExpiredOrUnknownToken(t *testing.T) {
	svc := newAccountService(t)
	userID := mustCreateUser(t, svc.Users, "alice", models.RoleViewer)

	raw := "stale-token"
	reset := models.PasswordReset{
		UserID:    userID,
		TokenHash: hashResetToken(raw),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, svc.DB.Create(&reset).Error)

	err := svc.ResetPasswordWithToken(context.Background(), raw, "whatever-pass")
	require.True(t, apperr.Is(err, apperr.Authentication))

	err = svc.ResetPasswordWithToken(context.Background(), "never-issued", "whatever-pass")
	require.True(t, apperr.Is(err, apperr.Authentication))
}

func TestOAuthAuthorizeURL(t *testing.T) {
	svc := newAccountService(t)

	_, err := svc.OAuthAuthorizeURL("github")
	require.True(t, apperr.Is(err, apperr.Collaborator))

	svc.OAuthProviders = map[string]string{
		"github": "https://github.com/login/oauth/authorize?client_id=abc",
	}
	url, err := svc.OAuthAuthorizeURL("GitHub")
	require.NoError(t, err)
	require.Contains(t, url, "github.com")
}
