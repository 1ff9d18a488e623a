package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/aipush/directory/internal/hash"
	"github.com/aipush/directory/internal/models"
	"github.com/aipush/directory/internal/permissions"
)

// EnsureAdmin seeds the bootstrap administrator when the user table is
// empty. The password comes from configuration; with no users and no
// password set, the instance would be unusable, so that is an error.
func EnsureAdmin(ctx context.Context, db *gorm.DB, password string) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("user count: %w", err)
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		return fmt.Errorf("no users exist and ADMIN_PASSWORD is not set")
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := models.User{
		ID:           "1",
		Username:     "admin",
		Email:        "admin@aipush.fun",
		PasswordHash: pwHash,
		Role:         models.RoleAdmin,
		Permissions:  permissions.RolePermissions(models.RoleAdmin),
		IsActive:     true,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}
