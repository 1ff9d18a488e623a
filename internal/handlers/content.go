package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aipush/directory/internal/models"
	"github.com/aipush/directory/internal/service"
)

type ContentHandler struct {
	Content *service.ContentService
}

func contentFilterFromQuery(c echo.Context) service.ContentFilter {
	return service.ContentFilter{
		Type:     c.QueryParam("type"),
		Status:   c.QueryParam("status"),
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
	}
}

func (h *ContentHandler) List(c echo.Context) error {
	items, err := h.Content.Filtered(c.Request().Context(), contentFilterFromQuery(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// PublicList serves the marketing site: published items only, whatever
// other filters the query carries.
func (h *ContentHandler) PublicList(c echo.Context) error {
	f := contentFilterFromQuery(c)
	f.Status = models.ContentStatusPublished
	items, err := h.Content.Filtered(c.Request().Context(), f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ContentHandler) Get(c echo.Context) error {
	item, err := h.Content.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *ContentHandler) View(c echo.Context) error {
	if err := h.Content.IncrementViews(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ContentHandler) Create(c echo.Context) error {
	var req service.CreateContentInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "无效的请求"})
	}
	if req.Author == "" {
		if u := currentUser(c); u != nil {
			req.Author = u.Username
		}
	}

	item, err := h.Content.Create(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *ContentHandler) Patch(c echo.Context) error {
	var req service.ContentUpdate
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "无效的请求"})
	}

	item, err := h.Content.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *ContentHandler) Delete(c echo.Context) error {
	if err := h.Content.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ContentHandler) Publish(c echo.Context) error {
	item, err := h.Content.Publish(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *ContentHandler) Archive(c echo.Context) error {
	item, err := h.Content.Archive(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *ContentHandler) Stats(c echo.Context) error {
	stats, err := h.Content.Stats(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
