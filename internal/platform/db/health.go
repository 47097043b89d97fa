package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by every record store backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Health reports liveness of the process and reachability of the record
// store.
type Health struct {
	store  Pinger
	driver string
	pool   *pgxpool.Pool
	now    func() time.Time
	start  time.Time
}

// NewHealth builds the health endpoints. pool is optional and only set for
// the postgres driver.
func NewHealth(store Pinger, driver string, pool *pgxpool.Pool) *Health {
	return &Health{
		store:  store,
		driver: driver,
		pool:   pool,
		now:    time.Now,
		start:  time.Now(),
	}
}

func (h *Health) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Live)
	e.GET("/health/store", h.Store)
}

func (h *Health) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": h.now().Sub(h.start).Round(time.Second).String(),
	})
}

func (h *Health) Store(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	body := map[string]interface{}{"driver": h.driver}
	if h.pool != nil {
		body["pool"] = GetPoolStats(h.pool)
	}

	if err := h.store.Ping(ctx); err != nil {
		body["status"] = "unhealthy"
		body["error"] = err.Error()
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	body["status"] = "healthy"
	return c.JSON(http.StatusOK, body)
}
