package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/aipush/directory/internal/apperr"
	"github.com/aipush/directory/internal/events"
	"github.com/aipush/directory/internal/hash"
	"github.com/aipush/directory/internal/logging"
	"github.com/aipush/directory/internal/models"
	"github.com/aipush/directory/internal/permissions"
	"github.com/aipush/directory/internal/storage"
	"github.com/aipush/directory/internal/token"
)

const keyPrefix = "session:"

// record is the blob persisted per session. It holds only what reads
// use: the owning user, cross-checked against the token claims. User
// data always comes from the authoritative row, never from here.
type record struct {
	UserID   string `json:"uid"`
	IssuedAt int64  `json:"iat"`
}

type LoginResult struct {
	User  *models.User
	Token string
}

// Store owns login/logout and every session read. Read paths never return
// errors: anything wrong degrades to "not authenticated" and the broken
// session is dropped lazily.
type Store struct {
	DB       *gorm.DB
	KV       storage.Store
	Codec    *token.Codec
	Producer *events.Producer
}

func sessionKey(tokenStr string) string {
	sum := sha256.Sum256([]byte(tokenStr))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (s *Store) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "session.login", "username", username)

	var user models.User
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Same message as a wrong password so the response does
			// not reveal which factor failed.
			return nil, apperr.New(apperr.Authentication, "用户名或密码错误")
		}
		l.Error("login failed", "reason", "db error", "error", err)
		return nil, apperr.Wrap(apperr.Collaborator, "登录过程中发生错误", err)
	}

	if !user.IsActive || !hash.CheckPassword(user.PasswordHash, password) {
		return nil, apperr.New(apperr.Authentication, "用户名或密码错误")
	}

	tokenStr, err := s.Codec.Encode(user.ID, user.Username, user.Role)
	if err != nil {
		l.Error("login failed", "reason", "token encode", "error", err)
		return nil, apperr.Wrap(apperr.Collaborator, "登录过程中发生错误", err)
	}

	now := time.Now()
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		UpdateColumn("last_login", now).Error; err != nil {
		l.Warn("last_login update failed", "error", err)
	}
	user.LastLogin = &now

	if err := s.persist(ctx, tokenStr, user.ID); err != nil {
		l.Error("login failed", "reason", "session persist", "error", err)
		return nil, apperr.Wrap(apperr.Collaborator, "登录过程中发生错误", err)
	}

	event := map[string]any{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"username": user.Username,
	}
	if err := s.Producer.PublishEvent(ctx, "user_events", user.ID, event); err != nil {
		l.Warn("kafka publish error", "error", err)
	}

	return &LoginResult{User: &user, Token: tokenStr}, nil
}

// Logout drops the session unconditionally. It has no failure mode: a
// missing or already-expired session is as logged out as it gets.
func (s *Store) Logout(ctx context.Context, tokenStr string) {
	if tokenStr == "" {
		return
	}
	if err := s.KV.Del(ctx, sessionKey(tokenStr)); err != nil {
		logging.FromContext(ctx).Warn("session delete failed", "error", err)
	}
}

// CurrentUser resolves a token to the authoritative user record. It
// returns nil for any failure: bad token, expired token, missing session,
// deactivated or deleted user, unreachable storage. Invalid sessions are
// cleared on detection.
func (s *Store) CurrentUser(ctx context.Context, tokenStr string) *models.User {
	if tokenStr == "" {
		return nil
	}

	res := s.Codec.Decode(tokenStr)
	if !res.Valid {
		s.Logout(ctx, tokenStr)
		return nil
	}

	raw, err := s.KV.Get(ctx, sessionKey(tokenStr))
	if err != nil {
		return nil
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.Logout(ctx, tokenStr)
		return nil
	}
	if rec.UserID != res.Claims.UserID {
		s.Logout(ctx, tokenStr)
		return nil
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", res.Claims.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.Logout(ctx, tokenStr)
		}
		return nil
	}
	if !user.IsActive {
		s.Logout(ctx, tokenStr)
		return nil
	}

	return &user
}

// Refresh rotates the token for a valid session, extending the TTL
// window. It reports false when there is nothing valid to extend.
func (s *Store) Refresh(ctx context.Context, tokenStr string) (string, bool) {
	user := s.CurrentUser(ctx, tokenStr)
	if user == nil {
		return "", false
	}

	newToken, err := s.Codec.Encode(user.ID, user.Username, user.Role)
	if err != nil {
		return "", false
	}
	if err := s.persist(ctx, newToken, user.ID); err != nil {
		return "", false
	}
	s.Logout(ctx, tokenStr)

	return newToken, true
}

func (s *Store) IsAuthenticated(ctx context.Context, tokenStr string) bool {
	return s.CurrentUser(ctx, tokenStr) != nil
}

func (s *Store) HasPermission(ctx context.Context, tokenStr, perm string) bool {
	return permissions.Satisfies(s.CurrentUser(ctx, tokenStr), perm)
}

func (s *Store) persist(ctx context.Context, tokenStr, userID string) error {
	rec := record{
		UserID:   userID,
		IssuedAt: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.KV.Set(ctx, sessionKey(tokenStr), string(data), token.TTL)
}
