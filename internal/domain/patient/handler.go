package patient

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
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/active", h.ListActivePatients)
	api.GET("/patients/cpf-exists", h.CPFExists)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.POST("/patients/:id/toggle-status", h.TogglePatientStatus)
}

func (h *Handler) ListPatients(c echo.Context) error {
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
	q := Query{
		Search:  c.QueryParam("q"),
		Status:  Status(c.QueryParam("status")),
		SortKey: sortKey,
		Desc:    order == "desc",
	}
	items := h.provider.Query(q)
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, pg), len(items), pg.Limit, pg.Offset))
}

func (h *Handler) ListActivePatients(c echo.Context) error {
	items, err := h.provider.Active(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(errorStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CPFExists(c echo.Context) error {
	cpf := c.QueryParam("cpf")
	if cpf == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "cpf is required")
	}
	exists, err := h.provider.CPFExists(c.Request().Context(), cpf)
	if err != nil {
		return echo.NewHTTPError(errorStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"cpf": FormatCPF(cpf), "exists": exists})
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.provider.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(errorStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = 0
	return respond(c, h.provider.Create(c.Request().Context(), p), http.StatusCreated)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	return respond(c, h.provider.Update(c.Request().Context(), p), http.StatusOK)
}

func (h *Handler) TogglePatientStatus(c echo.Context) error {
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
	case errors.Is(err, ErrDuplicateCPF):
		return http.StatusConflict
	case errors.Is(err, validation.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
