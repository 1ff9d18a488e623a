package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aipush/directory/internal/apperr"
	"github.com/aipush/directory/internal/events"
	"github.com/aipush/directory/internal/hash"
	"github.com/aipush/directory/internal/logging"
	"github.com/aipush/directory/internal/models"
	"github.com/aipush/directory/internal/permissions"
)

type UserService struct {
	DB       *gorm.DB
	Producer *events.Producer
}

type CreateUserInput struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	FullName   string `json:"fullName"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
}

// UserUpdate lists exactly the mutable fields. ID, CreatedAt and the
// stored permission set are not representable here: permissions follow the
// role and nothing else.
type UserUpdate struct {
	Email      *string `json:"email"`
	Role       *string `json:"role"`
	IsActive   *bool   `json:"isActive"`
	FullName   *string `json:"fullName"`
	Department *string `json:"department"`
	Phone      *string `json:"phone"`
	Avatar     *string `json:"avatar"`
}

type UserFilter struct {
	Role       string
	Status     string // "active" | "inactive" | ""
	Department string
	Search     string
}

type UserStats struct {
	Total        int64 `json:"total"`
	Active       int64 `json:"active"`
	Inactive     int64 `json:"inactive"`
	Admins       int64 `json:"admins"`
	Editors      int64 `json:"editors"`
	Viewers      int64 `json:"viewers"`
	RecentLogins int64 `json:"recentLogins"`
}

func (s *UserService) publish(ctx context.Context, event map[string]any) {
	key, _ := event["userID"].(string)
	if err := s.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		logging.FromContext(ctx).Warn("kafka publish error", "error", err)
	}
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "获取用户列表失败", err)
	}
	return users, nil
}

// Filtered combines all present predicates with AND semantics. Search is a
// case-insensitive substring match over username, email and full name.
func (s *UserService) Filtered(ctx context.Context, f UserFilter) ([]models.User, error) {
	q := s.DB.WithContext(ctx).Model(&models.User{})
	if f.Role != "" && f.Role != "all" {
		q = q.Where("role = ?", f.Role)
	}
	switch f.Status {
	case "active":
		q = q.Where("is_active = ?", true)
	case "inactive":
		q = q.Where("is_active = ?", false)
	}
	if f.Department != "" && f.Department != "all" {
		q = q.Where("department = ?", f.Department)
	}

	var users []models.User
	if err := q.Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "获取用户列表失败", err)
	}

	if f.Search == "" {
		return users, nil
	}
	needle := strings.ToLower(f.Search)
	matched := users[:0]
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Username), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) ||
			strings.Contains(strings.ToLower(u.FullName), needle) {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "用户不存在")
		}
		return nil, apperr.Wrap(apperr.Collaborator, "获取用户失败", err)
	}
	return &user, nil
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, apperr.New(apperr.Validation, "用户名、邮箱和密码不能为空")
	}
	if !permissions.ValidRole(in.Role) {
		return nil, apperr.New(apperr.Validation, "无效的角色")
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", in.Username, in.Email).
		Count(&count).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "创建用户失败", err)
	}
	if count > 0 {
		return nil, apperr.New(apperr.Validation, "用户名或邮箱已存在")
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "创建用户失败", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: pwHash,
		Role:         in.Role,
		Permissions:  permissions.RolePermissions(in.Role),
		IsActive:     true,
		FullName:     in.FullName,
		Department:   in.Department,
		Phone:        in.Phone,
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "创建用户失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":     "user_created",
		"userID":   user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
	return &user, nil
}

func (s *UserService) Update(ctx context.Context, id string, upd UserUpdate) (*models.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Invariant checks run before any write so a rejection leaves the
	// record untouched.
	if upd.Role != nil && *upd.Role != user.Role {
		if !permissions.ValidRole(*upd.Role) {
			return nil, apperr.New(apperr.Validation, "无效的角色")
		}
		if user.Role == models.RoleAdmin && user.IsActive {
			if err := s.requireAnotherActiveAdmin(ctx, id, "不能变更最后一个活跃的管理员的角色"); err != nil {
				return nil, err
			}
		}
		user.Role = *upd.Role
		// A role change always resets permissions; any previously
		// stored custom set is discarded.
		user.Permissions = permissions.RolePermissions(*upd.Role)
	}
	if upd.IsActive != nil && !*upd.IsActive && user.IsActive && user.Role == models.RoleAdmin {
		if err := s.requireAnotherActiveAdmin(ctx, id, "不能禁用最后一个活跃的管理员"); err != nil {
			return nil, err
		}
	}
	if upd.Email != nil && *upd.Email != user.Email {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.User{}).
			Where("email = ? AND id <> ?", *upd.Email, id).
			Count(&count).Error; err != nil {
			return nil, apperr.Wrap(apperr.Collaborator, "更新用户失败", err)
		}
		if count > 0 {
			return nil, apperr.New(apperr.Validation, "邮箱已存在")
		}
	}

	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	if upd.FullName != nil {
		user.FullName = *upd.FullName
	}
	if upd.Department != nil {
		user.Department = *upd.Department
	}
	if upd.Phone != nil {
		user.Phone = *upd.Phone
	}
	if upd.Avatar != nil {
		user.Avatar = *upd.Avatar
	}
	user.UpdatedAt = time.Now()

	if err := s.DB.WithContext(ctx).Save(user).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "更新用户失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":     "user_updated",
		"userID":   user.ID,
		"username": user.Username,
	})
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if user.Role == models.RoleAdmin && user.IsActive {
		if err := s.requireAnotherActiveAdmin(ctx, id, "不能删除最后一个活跃的管理员"); err != nil {
			return err
		}
	}

	if err := s.DB.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error; err != nil {
		return apperr.Wrap(apperr.Collaborator, "删除用户失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":     "user_deleted",
		"userID":   id,
		"username": user.Username,
	})
	return nil
}

func (s *UserService) ToggleActive(ctx context.Context, id string) (*models.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if user.IsActive && user.Role == models.RoleAdmin {
		if err := s.requireAnotherActiveAdmin(ctx, id, "不能禁用最后一个活跃的管理员"); err != nil {
			return nil, err
		}
	}

	next := !user.IsActive
	return s.Update(ctx, id, UserUpdate{IsActive: &next})
}

func (s *UserService) ResetPassword(ctx context.Context, id, newPassword string) error {
	if newPassword == "" {
		return apperr.New(apperr.Validation, "密码不能为空")
	}
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return apperr.Wrap(apperr.Collaborator, "重置密码失败", err)
	}
	if err := s.DB.WithContext(ctx).Model(user).
		Updates(map[string]any{"password_hash": pwHash, "updated_at": time.Now()}).Error; err != nil {
		return apperr.Wrap(apperr.Collaborator, "重置密码失败", err)
	}

	s.publish(ctx, map[string]any{
		"type":   "user_password_reset",
		"userID": id,
	})
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !hash.CheckPassword(user.PasswordHash, currentPassword) {
		return apperr.New(apperr.Authentication, "当前密码错误")
	}
	return s.ResetPassword(ctx, id, newPassword)
}

func (s *UserService) Stats(ctx context.Context) (*UserStats, error) {
	users, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{Total: int64(len(users))}
	sevenDaysAgo := time.Now().Add(-7 * 24 * time.Hour)
	for _, u := range users {
		if u.IsActive {
			stats.Active++
		} else {
			stats.Inactive++
		}
		switch u.Role {
		case models.RoleAdmin:
			stats.Admins++
		case models.RoleEditor:
			stats.Editors++
		case models.RoleViewer:
			stats.Viewers++
		}
		if u.LastLogin != nil && u.LastLogin.After(sevenDaysAgo) {
			stats.RecentLogins++
		}
	}
	return stats, nil
}

func (s *UserService) Departments(ctx context.Context) ([]string, error) {
	var departments []string
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("department <> ''").
		Distinct("department").
		Order("department ASC").
		Pluck("department", &departments).Error; err != nil {
		return nil, apperr.Wrap(apperr.Collaborator, "获取部门列表失败", err)
	}
	return departments, nil
}

// requireAnotherActiveAdmin enforces the "at least one active admin"
// invariant for destructive operations targeting id.
func (s *UserService) requireAnotherActiveAdmin(ctx context.Context, id, message string) error {
	var others int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND is_active = ? AND id <> ?", models.RoleAdmin, true, id).
		Count(&others).Error; err != nil {
		return apperr.Wrap(apperr.Collaborator, "操作失败，请稍后重试", err)
	}
	if others == 0 {
		return apperr.New(apperr.InvariantViolation, message)
	}
	return nil
}
