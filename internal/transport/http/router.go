package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/aipush/directory/internal/guard"
	"github.com/aipush/directory/internal/handlers"
	"github.com/aipush/directory/internal/permissions"
)

type Deps struct {
	Guard           *guard.Guard
	AuthHandler     *handlers.AuthHandler
	ToolHandler     *handlers.ToolHandler
	UserHandler     *handlers.UserHandler
	ContentHandler  *handlers.ContentHandler
	FavoriteHandler *handlers.FavoriteHandler
	SearchHandler   *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.Logout)
	v1.POST("/refresh", d.AuthHandler.Refresh)
	v1.POST("/signup", d.AuthHandler.SignUp)
	v1.POST("/password-reset/request", d.AuthHandler.RequestPasswordReset)
	v1.POST("/password-reset/confirm", d.AuthHandler.ResetPassword)
	v1.GET("/oauth/:provider", d.AuthHandler.OAuth)

	v1.GET("/search", d.SearchHandler.Search)

	tools := v1.Group("/tools")
	tools.GET("", d.ToolHandler.List)
	tools.GET("/categories", d.ToolHandler.Categories)
	tools.GET("/:id", d.ToolHandler.Get)
	tools.POST("/:id/visit", d.ToolHandler.Visit)

	v1.GET("/content", d.ContentHandler.PublicList)
	v1.POST("/content/:id/view", d.ContentHandler.View)

	// Any live session may use the profile surface.
	me := v1.Group("/me", d.Guard.Require(""))
	me.GET("", d.AuthHandler.Me)
	me.POST("/password", d.AuthHandler.ChangePassword)
	me.GET("/favorites", d.FavoriteHandler.List)
	me.POST("/favorites/:toolID", d.FavoriteHandler.Add)
	me.DELETE("/favorites/:toolID", d.FavoriteHandler.Remove)

	admin := v1.Group("/admin")

	adminTools := admin.Group("/tools", d.Guard.Require(permissions.ToolsWrite))
	adminTools.POST("", d.ToolHandler.Create)
	adminTools.PATCH("/:id", d.ToolHandler.Patch)
	adminTools.DELETE("/:id", d.ToolHandler.Delete)
	adminTools.POST("/:id/feature", d.ToolHandler.ToggleFeatured)
	adminTools.POST("/bulk-status", d.ToolHandler.BulkStatus)

	adminUsers := admin.Group("/users", d.Guard.Require(permissions.UsersWrite))
	adminUsers.GET("", d.UserHandler.List)
	adminUsers.GET("/departments", d.UserHandler.Departments)
	adminUsers.GET("/:id", d.UserHandler.Get)
	adminUsers.POST("", d.UserHandler.Create)
	adminUsers.PATCH("/:id", d.UserHandler.Patch)
	adminUsers.POST("/:id/toggle", d.UserHandler.ToggleActive)
	adminUsers.POST("/:id/reset-password", d.UserHandler.ResetPassword)
	adminUsers.DELETE("/:id", d.UserHandler.Delete, d.Guard.Require(permissions.UsersDelete))

	adminContent := admin.Group("/content", d.Guard.Require(permissions.ContentWrite))
	adminContent.GET("", d.ContentHandler.List)
	adminContent.GET("/:id", d.ContentHandler.Get)
	adminContent.POST("", d.ContentHandler.Create)
	adminContent.PATCH("/:id", d.ContentHandler.Patch)
	adminContent.DELETE("/:id", d.ContentHandler.Delete)
	adminContent.POST("/:id/publish", d.ContentHandler.Publish)
	adminContent.POST("/:id/archive", d.ContentHandler.Archive)

	stats := admin.Group("/stats", d.Guard.Require(permissions.AnalyticsRead))
	stats.GET("/tools", d.ToolHandler.Stats)
	stats.GET("/users", d.UserHandler.Stats)
	stats.GET("/content", d.ContentHandler.Stats)
}
