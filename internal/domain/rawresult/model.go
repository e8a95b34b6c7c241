package rawresult

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is stamped on every envelope so consumers can reject
// payloads they do not understand.
const SchemaVersion = 1

// Envelope is the wire format carried on both durable queues: generator to
// ingestion, and ingestion to the laboratory core. It is created once by an
// instrument and never mutated after persistence.
type Envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	OrderID       uuid.UUID       `json:"orderId"`
	Instrument    string          `json:"instrument"`
	PerformedAt   time.Time       `json:"performedAt"`
	Items         []RawResultItem `json:"items"`
}

// RawResultItem is one measured parameter inside an envelope.
type RawResultItem struct {
	Code           string   `json:"code"`
	NumericValue   *float64 `json:"numericValue,omitempty"`
	TextValue      *string  `json:"textValue,omitempty"`
	Unit           string   `json:"unit"`
	ReferenceRange string   `json:"referenceRange"`
	Status         string   `json:"status"`
}

// Key returns the natural dedupe key for an envelope. Redelivered messages
// share the key, so staging inserts collapse to one row.
type Key struct {
	OrderID     uuid.UUID
	Instrument  string
	PerformedAt time.Time
}

func (e *Envelope) Key() Key {
	return Key{OrderID: e.OrderID, Instrument: e.Instrument, PerformedAt: e.PerformedAt}
}
