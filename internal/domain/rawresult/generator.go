package rawresult

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Parameter categories drive rounding precision.
const (
	CategoryCount         = "count"         // 0 decimals
	CategoryConcentration = "concentration" // 2 decimals
	CategoryRatio         = "ratio"         // 1 decimal
)

// PanelParameter describes one measurement in the simulated instrument panel.
type PanelParameter struct {
	Code     string
	Name     string
	Unit     string
	Min      float64
	Max      float64
	Category string
}

// DefaultPanel is the fixed CBC-style panel every simulation run emits in
// full.
var DefaultPanel = []PanelParameter{
	{Code: "WBC", Name: "White blood cells", Unit: "10^9/L", Min: 4.0, Max: 10.0, Category: CategoryCount},
	{Code: "RBC", Name: "Red blood cells", Unit: "10^12/L", Min: 4.2, Max: 5.9, Category: CategoryCount},
	{Code: "HGB", Name: "Hemoglobin", Unit: "g/dL", Min: 12.0, Max: 17.5, Category: CategoryConcentration},
	{Code: "HCT", Name: "Hematocrit", Unit: "%", Min: 36.0, Max: 50.0, Category: CategoryRatio},
	{Code: "PLT", Name: "Platelets", Unit: "10^9/L", Min: 150, Max: 400, Category: CategoryCount},
	{Code: "MCV", Name: "Mean corpuscular volume", Unit: "fL", Min: 80, Max: 100, Category: CategoryRatio},
	{Code: "MCH", Name: "Mean corpuscular hemoglobin", Unit: "pg", Min: 27, Max: 33, Category: CategoryRatio},
	{Code: "MCHC", Name: "MCHC", Unit: "g/dL", Min: 32, Max: 36, Category: CategoryConcentration},
}

// Generator synthesizes instrument-like measurements for an order. The
// random source is injected so runs are reproducible under a fixed seed.
type Generator struct {
	rng        *rand.Rand
	instrument string
	panel      []PanelParameter
	now        func() time.Time
}

func NewGenerator(rng *rand.Rand, instrument string) *Generator {
	return &Generator{
		rng:        rng,
		instrument: instrument,
		panel:      DefaultPanel,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Generate draws one value per panel parameter. Values fall uniformly in
// [min - 0.15*range, max + 0.15*range], clamped at 0, so roughly a quarter
// of draws land outside the reference interval.
func (g *Generator) Generate(orderID uuid.UUID) *Envelope {
	items := make([]RawResultItem, 0, len(g.panel))
	for _, p := range g.panel {
		v := g.draw(p)
		items = append(items, RawResultItem{
			Code:           p.Code,
			NumericValue:   &v,
			Unit:           p.Unit,
			ReferenceRange: fmt.Sprintf("%g - %g", p.Min, p.Max),
			Status:         classify(v, p.Min, p.Max),
		})
	}
	return &Envelope{
		SchemaVersion: SchemaVersion,
		OrderID:       orderID,
		Instrument:    g.instrument,
		PerformedAt:   g.now(),
		Items:         items,
	}
}

func (g *Generator) draw(p PanelParameter) float64 {
	spread := p.Max - p.Min
	lo := p.Min - 0.15*spread
	hi := p.Max + 0.15*spread
	v := lo + g.rng.Float64()*(hi-lo)
	if v < 0 {
		v = 0
	}
	return round(v, p.Category)
}

func round(v float64, category string) float64 {
	var scale float64
	switch category {
	case CategoryCount:
		scale = 1
	case CategoryConcentration:
		scale = 100
	default:
		scale = 10
	}
	return math.Round(v*scale) / scale
}

// classify grades a value against the reference interval with a 5% grace
// band on both ends.
func classify(v, min, max float64) string {
	switch {
	case v < min*0.95:
		return "Low"
	case v > max*1.05:
		return "High"
	default:
		return "Normal"
	}
}
