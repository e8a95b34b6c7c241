package review

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/openlims/lims/internal/domain/order"
)

type stubReviewer struct {
	order  *order.TestOrder
	err    error
	calls  int
	lastID uuid.UUID
}

func (s *stubReviewer) TriggerReview(_ context.Context, orderID uuid.UUID) (*order.TestOrder, error) {
	s.calls++
	s.lastID = orderID
	return s.order, s.err
}

func trigger(t *testing.T, h *Handler, id string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/orders/:id/ai-review")
	c.SetParamNames("id")
	c.SetParamValues(id)
	if err := h.TriggerReview(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestHandlerTriggerReviewOK(t *testing.T) {
	id := uuid.New()
	stub := &stubReviewer{order: &order.TestOrder{ID: id, Status: order.StatusReviewedByAI}}
	rec := trigger(t, NewHandler(stub), id.String())

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if stub.lastID != id {
		t.Errorf("reviewed order id = %s, want %s", stub.lastID, id)
	}
	if !strings.Contains(rec.Body.String(), order.StatusReviewedByAI) {
		t.Error("response body missing reviewed status")
	}
}

func TestHandlerTriggerReviewMissingOrder(t *testing.T) {
	rec := trigger(t, NewHandler(&stubReviewer{}), uuid.NewString())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerTriggerReviewInvalidState(t *testing.T) {
	stub := &stubReviewer{err: &InvalidStateError{Reason: ReasonAIDisabled}}
	rec := trigger(t, NewHandler(stub), uuid.NewString())

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ReasonAIDisabled) {
		t.Errorf("body = %s, want the rejection reason", rec.Body.String())
	}
}

func TestHandlerTriggerReviewBadID(t *testing.T) {
	stub := &stubReviewer{}
	rec := trigger(t, NewHandler(stub), "not-a-uuid")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if stub.calls != 0 {
		t.Error("reviewer must not run for an unparseable id")
	}
}
