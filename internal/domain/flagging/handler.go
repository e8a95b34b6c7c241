package flagging

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Configurer is the use-case surface the HTTP handler needs. Satisfied by
// Service and by the server's command-dispatching wrapper.
type Configurer interface {
	Resolve(ctx context.Context, testCode, gender string) (*FlaggingConfig, error)
	Create(ctx context.Context, cfg *FlaggingConfig) error
	Supersede(ctx context.Context, cfg *FlaggingConfig) error
}

type Handler struct {
	svc Configurer
}

func NewHandler(svc Configurer) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/flagging-configs/resolve", h.Resolve)
	api.POST("/flagging-configs", h.Create)
	api.POST("/flagging-configs/supersede", h.Supersede)
}

func (h *Handler) Resolve(c echo.Context) error {
	testCode := c.QueryParam("code")
	gender := c.QueryParam("gender")
	if testCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	cfg, err := h.svc.Resolve(c.Request().Context(), testCode, gender)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if cfg == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no active flagging config")
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) Create(c echo.Context) error {
	var cfg FlaggingConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cfg)
}

func (h *Handler) Supersede(c echo.Context) error {
	var cfg FlaggingConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Supersede(c.Request().Context(), &cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cfg)
}
