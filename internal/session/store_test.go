package session

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aipush/directory/internal/apperr"
	"github.com/aipush/directory/internal/config"
	"github.com/aipush/directory/internal/events"
	"github.com/aipush/directory/internal/models"
	"github.com/aipush/directory/internal/permissions"
	"github.com/aipush/directory/internal/service"
	"github.com/aipush/directory/internal/storage"
	"github.com/aipush/directory/internal/token"
)

func newTestStore(t *testing.T) (*Store, *service.UserService) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to connect to in-memory db")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.Migrate(db), "failed to migrate tables")

	users := &service.UserService{DB: db, Producer: &events.Producer{}}
	store := &Store{
		DB:       db,
		KV:       storage.NewMemoryStore(),
		Codec:    token.NewCodec([]byte("test-secret")),
		Producer: &events.Producer{},
	}
	return store, users
}

func seedUser(t *testing.T, users *service.UserService, username, role, password string) *models.User {
	t.Helper()
	user, err := users.Create(context.Background(), service.CreateUserInput{
		Username: username,
		Email:    username + "@aipush.fun",
		Password: password,
		Role:     role,
	})
	require.NoError(t, err)
	return user
}

func TestLoginSuccess(t *testing.T) {
	store, users := newTestStore(t)
	seedUser(t, users, "alice", models.RoleEditor, "correct-horse")

	res, err := store.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, "alice", res.User.Username)
	require.NotNil(t, res.User.LastLogin)

	require.True(t, store.IsAuthenticated(context.Background(), res.Token))

	current := store.CurrentUser(context.Background(), res.Token)
	require.NotNil(t, current)
	require.Equal(t, res.User.ID, current.ID)
}

func TestLoginFailureDoesNotRevealFactor(t *testing.T) {
	store, users := newTestStore(t)
	seedUser(t, users, "alice", models.RoleViewer, "correct-horse")

	_, wrongPass := store.Login(context.Background(), "alice", "battery-staple")
	_, noUser := store.Login(context.Background(), "bob", "battery-staple")

	require.True(t, apperr.Is(wrongPass, apperr.Authentication))
	require.True(t, apperr.Is(noUser, apperr.Authentication))
	require.Equal(t, apperr.Message(wrongPass), apperr.Message(noUser))
	require.Equal(t, "用户名或密码错误", apperr.Message(wrongPass))
}

func TestLoginInactiveUser(t *testing.T) {
	store, users := newTestStore(t)
	user := seedUser(t, users, "alice", models.RoleViewer, "correct-horse")

	require.NoError(t, store.DB.Model(&models.User{}).
		Where("id = ?", user.ID).Update("is_active", false).Error)

	_, err := store.Login(context.Background(), "alice", "correct-horse")
	require.True(t, apperr.Is(err, apperr.Authentication))
	require.Equal(t, "用户名或密码错误", apperr.Message(err))
}

func TestDeactivationInvalidatesSessionLazily(t *testing.T) {
	store, users := newTestStore(t)
	user := seedUser(t, users, "alice", models.RoleViewer, "correct-horse")

	res, err := store.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	require.True(t, store.IsAuthenticated(context.Background(), res.Token))

	require.NoError(t, store.DB.Model(&models.User{}).
		Where("id = ?", user.ID).Update("is_active", false).Error)

	require.Nil(t, store.CurrentUser(context.Background(), res.Token))
	require.False(t, store.IsAuthenticated(context.Background(), res.Token))

	// The stale session was dropped, so even reactivating the account
	// does not resurrect the old token's session entry.
	_, err = store.KV.Get(context.Background(), sessionKey(res.Token))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLogout(t *testing.T) {
	store, users := newTestStore(t)
	seedUser(t, users, "alice", models.RoleViewer, "correct-horse")

	res, err := store.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	store.Logout(context.Background(), res.Token)
	require.False(t, store.IsAuthenticated(context.Background(), res.Token))

	// Logging out twice, or with garbage, is a no-op.
	store.Logout(context.Background(), res.Token)
	store.Logout(context.Background(), "")
	store.Logout(context.Background(), "not-a-token")
}

func TestRefreshRotatesToken(t *testing.T) {
	store, users := newTestStore(t)
	seedUser(t, users, "alice", models.RoleViewer, "correct-horse")

	res, err := store.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	rotated, ok := store.Refresh(context.Background(), res.Token)
	require.True(t, ok)
	require.NotEqual(t, res.Token, rotated)

	require.True(t, store.IsAuthenticated(context.Background(), rotated))
	require.False(t, store.IsAuthenticated(context.Background(), res.Token))

	_, ok = store.Refresh(context.Background(), res.Token)
	require.False(t, ok)
}

func TestCurrentUserRejectsForgedToken(t *testing.T) {
	store, users := newTestStore(t)
	user := seedUser(t, users, "alice", models.RoleViewer, "correct-horse")

	// A token signed with a different secret never resolves, even for a
	// real user ID.
	forged, err := token.NewCodec([]byte("other-secret")).
		Encode(user.ID, user.Username, user.Role)
	require.NoError(t, err)

	require.Nil(t, store.CurrentUser(context.Background(), forged))
	require.Nil(t, store.CurrentUser(context.Background(), ""))
	require.Nil(t, store.CurrentUser(context.Background(), "garbage"))
}

func TestCurrentUserRejectsMismatchedRecord(t *testing.T) {
	store, users := newTestStore(t)
	seedUser(t, users, "alice", models.RoleViewer, "correct-horse")

	res, err := store.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	// A stored record that does not belong to the token's user is a
	// dead session, not someone else's.
	require.NoError(t, store.KV.Set(context.Background(), sessionKey(res.Token),
		`{"uid":"someone-else","iat":0}`, time.Hour))

	require.Nil(t, store.CurrentUser(context.Background(), res.Token))
	_, err = store.KV.Get(context.Background(), sessionKey(res.Token))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCurrentUserRequiresStoredSession(t *testing.T) {
	store, users := newTestStore(t)
	user := seedUser(t, users, "alice", models.RoleViewer, "correct-horse")

	// A well-signed token alone is not a session; the server-side entry
	// has to exist too.
	bare, err := store.Codec.Encode(user.ID, user.Username, user.Role)
	require.NoError(t, err)
	require.Nil(t, store.CurrentUser(context.Background(), bare))
}

func TestHasPermission(t *testing.T) {
	store, users := newTestStore(t)
	seedUser(t, users, "root", models.RoleAdmin, "admin-pass-1")
	seedUser(t, users, "ed", models.RoleEditor, "editor-pass")
	seedUser(t, users, "vi", models.RoleViewer, "viewer-pass")

	admin, err := store.Login(context.Background(), "root", "admin-pass-1")
	require.NoError(t, err)
	editor, err := store.Login(context.Background(), "ed", "editor-pass")
	require.NoError(t, err)
	viewer, err := store.Login(context.Background(), "vi", "viewer-pass")
	require.NoError(t, err)

	ctx := context.Background()
	require.True(t, store.HasPermission(ctx, admin.Token, permissions.UsersDelete))
	require.True(t, store.HasPermission(ctx, editor.Token, permissions.ToolsWrite))
	require.False(t, store.HasPermission(ctx, editor.Token, permissions.UsersWrite))
	require.True(t, store.HasPermission(ctx, viewer.Token, permissions.ToolsRead))
	require.False(t, store.HasPermission(ctx, viewer.Token, permissions.ToolsWrite))
	require.False(t, store.HasPermission(ctx, "garbage", permissions.ToolsRead))
}

func TestRoleChangeReflectsOnNextRead(t *testing.T) {
	store, users := newTestStore(t)
	user := seedUser(t, users, "alice", models.RoleViewer, "correct-horse")

	res, err := store.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	role := models.RoleEditor
	_, err = users.Update(context.Background(), user.ID, service.UserUpdate{Role: &role})
	require.NoError(t, err)

	// The session snapshot is stale, but reads are authoritative.
	require.True(t, store.HasPermission(context.Background(), res.Token, permissions.ToolsWrite))
}
