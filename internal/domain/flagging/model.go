package flagging

import (
	"time"

	"github.com/google/uuid"
)

// FlaggingConfig is a versioned threshold rule for one test code. A nil
// Gender marks a general config that applies to every patient; configs are
// superseded by newer versions, never edited in place.
type FlaggingConfig struct {
	ID        uuid.UUID `json:"id"`
	TestCode  string    `json:"test_code"`
	Gender    *string   `json:"gender,omitempty"`
	Version   int       `json:"version"`
	Active    bool      `json:"active"`
	MinValue  float64   `json:"min_value"`
	MaxValue  float64   `json:"max_value"`
	Unit      *string   `json:"unit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResolveQuery carries the inputs of a resolution request.
type ResolveQuery struct {
	TestCode string
	Gender   string
}

// IsGeneral reports whether the config applies regardless of gender.
func (c *FlaggingConfig) IsGeneral() bool {
	return c.Gender == nil || *c.Gender == ""
}

// Classify maps a numeric value to a result status against the thresholds.
func (c *FlaggingConfig) Classify(value float64) string {
	switch {
	case value < c.MinValue:
		return "Low"
	case value > c.MaxValue:
		return "High"
	default:
		return "Normal"
	}
}
