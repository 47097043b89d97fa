package attendance

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/validation"
	"github.com/clinic/clinic/pkg/outcome"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	provider *Provider
}

func NewHandler(provider *Provider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/attendances", h.ListAttendances)
	api.POST("/attendances", h.CreateAttendance)
	api.PUT("/attendances/:id", h.UpdateAttendance)
	api.POST("/attendances/:id/toggle-status", h.ToggleAttendanceStatus)
}

func (h *Handler) ListAttendances(c echo.Context) error {
	ctx := c.Request().Context()
	var err error
	if c.QueryParam("refresh") == "true" {
		err = h.provider.Fetch(ctx)
	} else {
		err = h.provider.EnsureLoaded(ctx)
	}
	if err != nil {
		return echo.NewHTTPError(errorStatus(err), err.Error())
	}

	sortKey := c.QueryParam("sort")
	if sortKey != "" && !ValidSortKey(sortKey) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sort key: "+sortKey)
	}
	order := c.QueryParam("order")
	if order != "" && order != "asc" && order != "desc" {
		return echo.NewHTTPError(http.StatusBadRequest, "order must be asc or desc")
	}
	items := h.provider.Query(Query{
		Search:  c.QueryParam("q"),
		Status:  Status(c.QueryParam("status")),
		SortKey: sortKey,
		Order:   order,
	})
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, pg), len(items), pg.Limit, pg.Offset))
}

func (h *Handler) CreateAttendance(c echo.Context) error {
	var a Attendance
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = 0
	return respond(c, h.provider.Create(c.Request().Context(), a), http.StatusCreated)
}

func (h *Handler) UpdateAttendance(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var a Attendance
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	return respond(c, h.provider.Update(c.Request().Context(), a), http.StatusOK)
}

func (h *Handler) ToggleAttendanceStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return respond(c, h.provider.ToggleStatus(c.Request().Context(), id), http.StatusOK)
}

func respond(c echo.Context, r outcome.Result, okStatus int) error {
	if r.Success {
		return c.JSON(okStatus, r)
	}
	return c.JSON(errorStatus(r.Cause()), r)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, validation.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
