package guard

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aipush/directory/internal/config"
	"github.com/aipush/directory/internal/events"
	"github.com/aipush/directory/internal/models"
	"github.com/aipush/directory/internal/permissions"
	"github.com/aipush/directory/internal/service"
	"github.com/aipush/directory/internal/session"
	"github.com/aipush/directory/internal/storage"
	"github.com/aipush/directory/internal/token"
)

func newTestGuard(t *testing.T) (*Guard, *service.UserService, *session.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to connect to in-memory db")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.Migrate(db), "failed to migrate tables")

	users := &service.UserService{DB: db, Producer: &events.Producer{}}
	sessions := &session.Store{
		DB:       db,
		KV:       storage.NewMemoryStore(),
		Codec:    token.NewCodec([]byte("test-secret")),
		Producer: &events.Producer{},
	}
	return &Guard{Sessions: sessions, LoginPath: "/admin/login"}, users, sessions
}

func loginAs(t *testing.T, users *service.UserService, sessions *session.Store, username, role string) string {
	t.Helper()
	_, err := users.Create(context.Background(), service.CreateUserInput{
		Username: username,
		Email:    username + "@aipush.fun",
		Password: "password123",
		Role:     role,
	})
	require.NoError(t, err)

	res, err := sessions.Login(context.Background(), username, "password123")
	require.NoError(t, err)
	return res.Token
}

func TestEvaluateWithoutSession(t *testing.T) {
	g, _, _ := newTestGuard(t)

	d := g.Evaluate(context.Background(), "", permissions.ToolsWrite, "/admin/tools")
	require.Equal(t, StateRedirectLogin, d.State)
	require.Equal(t, "/admin/tools", d.From)
	require.Nil(t, d.User)

	d = g.Evaluate(context.Background(), "garbage-token", "", "/admin")
	require.Equal(t, StateRedirectLogin, d.State)
}

func TestEvaluateDeniedKeepsUser(t *testing.T) {
	g, users, sessions := newTestGuard(t)
	tok := loginAs(t, users, sessions, "vi", models.RoleViewer)

	d := g.Evaluate(context.Background(), tok, permissions.UsersWrite, "/admin/users")
	require.Equal(t, StateDenied, d.State)
	require.NotNil(t, d.User)
	require.Equal(t, "vi", d.User.Username)
	require.Equal(t, permissions.UsersWrite, d.RequiredPermission)
}

func TestEvaluateAllowed(t *testing.T) {
	g, users, sessions := newTestGuard(t)
	tok := loginAs(t, users, sessions, "ed", models.RoleEditor)

	d := g.Evaluate(context.Background(), tok, permissions.ToolsWrite, "/admin/tools")
	require.Equal(t, StateAllowed, d.State)
	require.Equal(t, "ed", d.User.Username)

	// Empty permission only asks for a live session.
	d = g.Evaluate(context.Background(), tok, "", "/me")
	require.Equal(t, StateAllowed, d.State)
}

func TestEvaluateReRunsPerNavigation(t *testing.T) {
	g, users, sessions := newTestGuard(t)
	tok := loginAs(t, users, sessions, "ed", models.RoleEditor)

	d := g.Evaluate(context.Background(), tok, permissions.ToolsWrite, "/admin/tools")
	require.Equal(t, StateAllowed, d.State)

	// The same token is re-checked on the next route; a stricter
	// permission flips the verdict without any cached allow leaking in.
	d = g.Evaluate(context.Background(), tok, permissions.UsersDelete, "/admin/users")
	require.Equal(t, StateDenied, d.State)
}

func TestEvaluateAfterLogout(t *testing.T) {
	g, users, sessions := newTestGuard(t)
	tok := loginAs(t, users, sessions, "ed", models.RoleEditor)

	sessions.Logout(context.Background(), tok)

	d := g.Evaluate(context.Background(), tok, "", "/me")
	require.Equal(t, StateRedirectLogin, d.State)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "unknown", StateUnknown.String())
	require.Equal(t, "checking", StateChecking.String())
	require.Equal(t, "allowed", StateAllowed.String())
	require.Equal(t, "redirect_login", StateRedirectLogin.String())
	require.Equal(t, "denied", StateDenied.String())
}
