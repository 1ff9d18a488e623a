package guard

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aipush/directory/internal/logging"
	"github.com/aipush/directory/internal/token"
)

const CookieName = "aipush_session"

// rotatedTokenKey carries the post-refresh token between stacked guards
// on one route. The request cookie still holds the retired token, so a
// later guard reading only the cookie would bounce a live session.
const rotatedTokenKey = "rotatedToken"

func SessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func tokenFromRequest(c echo.Context) string {
	if tok, ok := c.Get(rotatedTokenKey).(string); ok && tok != "" {
		return tok
	}
	if cookie, err := c.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Require builds the middleware for one protected route group. An empty
// permission only requires a live session.
func (g *Guard) Require(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			tokenStr := tokenFromRequest(c)

			d := g.Evaluate(ctx, tokenStr, permission, c.Request().URL.Path)
			switch d.State {
			case StateRedirectLogin:
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":    "未登录或会话已过期",
					"redirect": g.LoginPath,
					"from":     d.From,
				})
			case StateDenied:
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":    "权限不足",
					"username": d.User.Username,
					"role":     d.User.Role,
					"required": d.RequiredPermission,
				})
			}

			// Sliding expiry: rotate the token on every allowed request.
			// Best effort only, a failed refresh never blocks the route.
			if newToken, ok := g.Sessions.Refresh(ctx, tokenStr); ok {
				c.Set(rotatedTokenKey, newToken)
				c.SetCookie(SessionCookie(newToken, time.Now().Add(token.TTL)))
			} else {
				logging.FromContext(ctx).Warn("session refresh skipped", "path", d.From)
			}

			c.Set("user", d.User)
			c.Set("userID", d.User.ID)
			c.Set("role", d.User.Role)
			return next(c)
		}
	}
}
