package postal

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Resolver looks up a postal code.
type Resolver interface {
	Lookup(ctx context.Context, code string) (*Address, error)
}

type Handler struct {
	resolver Resolver
	logger   zerolog.Logger
}

func NewHandler(resolver Resolver, logger zerolog.Logger) *Handler {
	return &Handler{resolver: resolver, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/postal-codes/:cep", h.Lookup)
}

func (h *Handler) Lookup(c echo.Context) error {
	addr, err := h.resolver.Lookup(c.Request().Context(), c.Param("cep"))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, addr)
	case errors.Is(err, ErrInvalidCode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		h.logger.Error().Err(err).Str("cep", c.Param("cep")).Msg("postal lookup failed")
		return echo.NewHTTPError(http.StatusBadGateway, "postal lookup unavailable")
	}
}
