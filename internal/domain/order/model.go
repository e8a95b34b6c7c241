package order

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses. Status only moves forward; the one permitted repeat is
// re-reviewing an already reviewed order, which recomputes the review pass.
const (
	StatusPending      = "Pending"
	StatusInProgress   = "In Progress"
	StatusCompleted    = "Completed"
	StatusReviewedByAI = "Reviewed By AI"
)

// Result statuses assigned by flagging resolution or AI review.
const (
	ResultStatusNormal = "Normal"
	ResultStatusLow    = "Low"
	ResultStatusHigh   = "High"
)

// TestOrder is a requested panel of laboratory tests for one patient
// encounter.
type TestOrder struct {
	ID              uuid.UUID     `json:"id"`
	PatientID       *uuid.UUID    `json:"patient_id,omitempty"`
	AIReviewEnabled bool          `json:"ai_review_enabled"`
	Status          string        `json:"status"`
	Results         []*TestResult `json:"results,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// TestResult is one measured value belonging to a TestOrder. Results are
// mutated in place by flagging and review passes, never deleted.
type TestResult struct {
	ID           uuid.UUID  `json:"id"`
	OrderID      uuid.UUID  `json:"order_id"`
	TestCode     string     `json:"test_code"`
	NumericValue *float64   `json:"numeric_value,omitempty"`
	TextValue    *string    `json:"text_value,omitempty"`
	Unit         *string    `json:"unit,omitempty"`
	Status       string     `json:"status"`
	ReviewedByAI bool       `json:"reviewed_by_ai"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
