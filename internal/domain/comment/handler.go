package comment

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Commenter is the use-case surface the HTTP handler needs. Satisfied by
// Service and by the server's command-dispatching wrapper.
type Commenter interface {
	Add(ctx context.Context, subjectType string, subjectID uuid.UUID, message string, authorID uuid.UUID) (uuid.UUID, error)
	Delete(ctx context.Context, id, requesterID uuid.UUID) error
	ListBySubject(ctx context.Context, subjectType string, subjectID uuid.UUID) ([]*Comment, error)
}

type Handler struct {
	svc Commenter
}

func NewHandler(svc Commenter) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/comments", h.Add)
	api.GET("/comments", h.ListBySubject)
	api.DELETE("/comments/:id", h.Delete)
}

func (h *Handler) Add(c echo.Context) error {
	var body struct {
		SubjectType string    `json:"subject_type"`
		SubjectID   uuid.UUID `json:"subject_id"`
		Message     string    `json:"message"`
		AuthorID    uuid.UUID `json:"author_id"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.svc.Add(c.Request().Context(), body.SubjectType, body.SubjectID, body.Message, body.AuthorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) ListBySubject(c echo.Context) error {
	subjectType := c.QueryParam("subject_type")
	subjectID, err := uuid.Parse(c.QueryParam("subject_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid subject_id")
	}
	comments, err := h.svc.ListBySubject(c.Request().Context(), subjectType, subjectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, comments)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	requesterID, err := uuid.Parse(c.QueryParam("requester_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid requester_id")
	}
	if err := h.svc.Delete(c.Request().Context(), id, requesterID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
