package review

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/openlims/lims/internal/domain/order"
)

// Reviewer runs the AI review pass for one order. Satisfied by Service and
// by the server's command-dispatching wrapper.
type Reviewer interface {
	TriggerReview(ctx context.Context, orderID uuid.UUID) (*order.TestOrder, error)
}

type Handler struct {
	svc Reviewer
}

func NewHandler(svc Reviewer) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/orders/:id/ai-review", h.TriggerReview)
}

func (h *Handler) TriggerReview(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := h.svc.TriggerReview(c.Request().Context(), id)
	if err != nil {
		var invalid *InvalidStateError
		if errors.As(err, &invalid) {
			return echo.NewHTTPError(http.StatusConflict, invalid.Reason)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if o == nil {
		return echo.NewHTTPError(http.StatusNotFound, "test order not found")
	}
	return c.JSON(http.StatusOK, o)
}
