package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aipush/directory/internal/apperr"
	"github.com/aipush/directory/internal/guard"
	"github.com/aipush/directory/internal/service"
	"github.com/aipush/directory/internal/session"
	"github.com/aipush/directory/internal/token"
)

type AuthHandler struct {
	Sessions *session.Store
	Accounts *service.AccountService
	Users    *service.UserService
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "无效的请求"})
	}

	result, err := h.Sessions.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return c.JSON(statusFor(err), echo.Map{"success": false, "error": apperr.Message(err)})
	}

	c.SetCookie(guard.SessionCookie(result.Token, time.Now().Add(token.TTL)))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user":    result.User,
		"token":   result.Token,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(guard.CookieName); err == nil {
		h.Sessions.Logout(c.Request().Context(), cookie.Value)
	}
	c.SetCookie(guard.SessionCookie("", time.Now().Add(-time.Hour)))
	return c.JSON(http.StatusOK, echo.Map{"message": "已退出登录"})
}

// Me reports the identity behind the current session. It sits behind the
// guard, so the user is always present here.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c))
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(guard.CookieName)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "未登录或会话已过期"})
	}

	newToken, ok := h.Sessions.Refresh(c.Request().Context(), cookie.Value)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "未登录或会话已过期"})
	}

	c.SetCookie(guard.SessionCookie(newToken, time.Now().Add(token.TTL)))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "token": newToken})
}

func (h *AuthHandler) SignUp(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "无效的请求"})
	}

	user, err := h.Accounts.SignUp(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return c.JSON(statusFor(err), echo.Map{"success": false, "error": apperr.Message(err)})
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "user": user})
}

func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "无效的请求"})
	}

	// Always succeeds, regardless of whether the address is registered.
	_ = h.Accounts.RequestPasswordReset(c.Request().Context(), req.Email)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "无效的请求"})
	}

	if err := h.Accounts.ResetPasswordWithToken(c.Request().Context(), req.Token, req.Password); err != nil {
		return c.JSON(statusFor(err), echo.Map{"success": false, "error": apperr.Message(err)})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "无效的请求"})
	}

	user := currentUser(c)
	if err := h.Users.ChangePassword(c.Request().Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return c.JSON(statusFor(err), echo.Map{"success": false, "error": apperr.Message(err)})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// OAuth resolves the named provider and hands back its authorize URL.
func (h *AuthHandler) OAuth(c echo.Context) error {
	url, err := h.Accounts.OAuthAuthorizeURL(c.Param("provider"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}
