package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aipush/directory/internal/service"
	"github.com/aipush/directory/internal/util"
)

type ToolHandler struct {
	Tools *service.ToolService
}

func toolFilterFromQuery(c echo.Context) service.ToolFilter {
	f := service.ToolFilter{
		Status:   c.QueryParam("status"),
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
	}
	switch c.QueryParam("featured") {
	case "true":
		v := true
		f.Featured = &v
	case "false":
		v := false
		f.Featured = &v
	}
	return f
}

func (h *ToolHandler) List(c echo.Context) error {
	tools, err := h.Tools.Filtered(c.Request().Context(), toolFilterFromQuery(c))
	if err != nil {
		return fail(c, err)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)
	return c.JSON(http.StatusOK, paginate(tools, offset, limit, page))
}

func (h *ToolHandler) Get(c echo.Context) error {
	tool, err := h.Tools.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, tool)
}

// Visit counts a public navigation to a tool. Offline tools and
// placeholder URLs respond with counted=false instead of an error.
func (h *ToolHandler) Visit(c echo.Context) error {
	counted, err := h.Tools.RecordVisit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"counted": counted})
}

func (h *ToolHandler) Create(c echo.Context) error {
	var req service.CreateToolInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "无效的请求"})
	}

	tool, err := h.Tools.Create(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, tool)
}

func (h *ToolHandler) Patch(c echo.Context) error {
	var req service.ToolUpdate
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "无效的请求"})
	}

	tool, err := h.Tools.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, tool)
}

func (h *ToolHandler) Delete(c echo.Context) error {
	if err := h.Tools.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ToolHandler) ToggleFeatured(c echo.Context) error {
	tool, err := h.Tools.ToggleFeatured(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, tool)
}

func (h *ToolHandler) BulkStatus(c echo.Context) error {
	var req struct {
		IDs    []string `json:"ids"`
		Status string   `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "无效的请求"})
	}

	if err := h.Tools.BulkUpdateStatus(c.Request().Context(), req.IDs, req.Status); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": len(req.IDs)})
}

func (h *ToolHandler) Stats(c echo.Context) error {
	stats, err := h.Tools.Stats(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *ToolHandler) Categories(c echo.Context) error {
	categories, err := h.Tools.Categories(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, categories)
}
