package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aipush/directory/internal/config"
	"github.com/aipush/directory/internal/events"
)

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to connect to in-memory db")

	// Each sqlite connection gets its own in-memory database, so pin
	// the pool to a single connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.Migrate(db), "failed to migrate tables")

	return db
}

func newUserService(t *testing.T) *UserService {
	return &UserService{DB: initTestDB(t), Producer: &events.Producer{}}
}

func mustCreateUser(t *testing.T, svc *UserService, username, role string) string {
	t.Helper()
	user, err := svc.Create(context.Background(), CreateUserInput{
		Username: username,
		Email:    username + "@aipush.fun",
		Password: "password123",
		Role:     role,
	})
	require.NoError(t, err)
	return user.ID
}
