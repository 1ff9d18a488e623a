package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aipush/directory/internal/service"
)

type FavoriteHandler struct {
	Favorites *service.FavoriteService
}

func (h *FavoriteHandler) List(c echo.Context) error {
	tools, err := h.Favorites.List(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, tools)
}

func (h *FavoriteHandler) Add(c echo.Context) error {
	if err := h.Favorites.Add(c.Request().Context(), currentUser(c).ID, c.Param("toolID")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *FavoriteHandler) Remove(c echo.Context) error {
	if err := h.Favorites.Remove(c.Request().Context(), currentUser(c).ID, c.Param("toolID")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
