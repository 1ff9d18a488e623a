package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aipush/directory/internal/apperr"
	"github.com/aipush/directory/internal/events"
	"github.com/aipush/directory/internal/hash"
	"github.com/aipush/directory/internal/logging"
	"github.com/aipush/directory/internal/models"
)

const resetTokenTTL = time.Hour

// AccountService is the public-facing signup and credential-recovery
// surface. Admin-side user management lives in UserService.
type AccountService struct {
	Users    *UserService
	DB       *gorm.DB
	Producer *events.Producer

	// OAuthProviders maps a provider name to its authorize URL. Empty by
	// default: sign-in by provider is an external collaborator contract
	// and stays unavailable until configured.
	OAuthProviders map[string]string
}

// SignUp registers a self-service account. New accounts always start as
// viewers; roles are only raised through the admin surface.
func (s *AccountService) SignUp(ctx context.Context, username, email, password string) (*models.User, error) {
	if len(password) < 8 {
		return nil, apperr.New(apperr.Validation, "密码长度至少为8位")
	}
	return s.Users.Create(ctx, CreateUserInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleViewer,
	})
}

// RequestPasswordReset creates a one-hour reset token for the account
// behind email. It reports success whether or not the account exists, so
// the endpoint cannot be used to enumerate registered addresses. The raw
// token leaves the system only through the event stream (the mail worker
// consumes it); the table stores a hash.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "accounts.reset_request")

	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.Error("reset lookup failed", "error", err)
		}
		return nil
	}
	if !user.IsActive {
		return nil
	}

	raw, err := randomToken()
	if err != nil {
		l.Error("reset token generation failed", "error", err)
		return nil
	}
	reset := models.PasswordReset{
		UserID:    user.ID,
		TokenHash: hashResetToken(raw),
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := s.DB.WithContext(ctx).Create(&reset).Error; err != nil {
		l.Error("reset token persist failed", "error", err)
		return nil
	}

	event := map[string]any{
		"type":   "password_reset_requested",
		"userID": user.ID,
		"email":  user.Email,
		"token":  raw,
	}
	if err := s.Producer.PublishEvent(ctx, "user_events", user.ID, event); err != nil {
		l.Warn("kafka publish error", "error", err)
	}
	return nil
}

func (s *AccountService) ResetPasswordWithToken(ctx context.Context, rawToken, newPassword string) error {
	if newPassword == "" {
		return apperr.New(apperr.Validation, "密码不能为空")
	}

	var reset models.PasswordReset
	err := s.DB.WithContext(ctx).
		Where("token_hash = ?", hashResetToken(rawToken)).
		First(&reset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.Authentication, "重置链接无效或已过期")
		}
		return apperr.Wrap(apperr.Collaborator, "重置密码失败", err)
	}
	if reset.Used || time.Now().After(reset.ExpiresAt) {
		return apperr.New(apperr.Authentication, "重置链接无效或已过期")
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return apperr.Wrap(apperr.Collaborator, "重置密码失败", err)
	}
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", reset.UserID).
		Updates(map[string]any{"password_hash": pwHash, "updated_at": time.Now()}).Error; err != nil {
		return apperr.Wrap(apperr.Collaborator, "重置密码失败", err)
	}
	if err := s.DB.WithContext(ctx).Model(&reset).Update("used", true).Error; err != nil {
		return apperr.Wrap(apperr.Collaborator, "重置密码失败", err)
	}
	return nil
}

// OAuthAuthorizeURL resolves a configured provider by name. An unknown
// provider is a collaborator failure, not a crash: the upstream identity
// service simply is not wired up.
func (s *AccountService) OAuthAuthorizeURL(provider string) (string, error) {
	url, ok := s.OAuthProviders[strings.ToLower(provider)]
	if !ok || url == "" {
		return "", apperr.New(apperr.Collaborator, "第三方登录暂不可用")
	}
	return url, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
