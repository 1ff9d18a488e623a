package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aipush/directory/internal/service"
)

type UserHandler struct {
	Users *service.UserService
}

func (h *UserHandler) List(c echo.Context) error {
	f := service.UserFilter{
		Role:       c.QueryParam("role"),
		Status:     c.QueryParam("status"),
		Department: c.QueryParam("department"),
		Search:     c.QueryParam("search"),
	}
	users, err := h.Users.Filtered(c.Request().Context(), f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.Users.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Create(c echo.Context) error {
	var req service.CreateUserInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "无效的请求"})
	}

	user, err := h.Users.Create(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) Patch(c echo.Context) error {
	var req service.UserUpdate
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "无效的请求"})
	}

	user, err := h.Users.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.Users.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) ToggleActive(c echo.Context) error {
	user, err := h.Users.ToggleActive(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ResetPassword(c echo.Context) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "无效的请求"})
	}

	if err := h.Users.ResetPassword(c.Request().Context(), c.Param("id"), req.Password); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *UserHandler) Stats(c echo.Context) error {
	stats, err := h.Users.Stats(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *UserHandler) Departments(c echo.Context) error {
	departments, err := h.Users.Departments(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, departments)
}
