package review

import (
	"fmt"
	"math"
	"sync"
)

// TrainingSample is one labeled historical measurement.
type TrainingSample struct {
	TestCode string
	Value    float64
	Label    string
}

// Sample is one unlabeled measurement to classify.
type Sample struct {
	TestCode string
	Value    float64
}

// Classifier is the pluggable review capability. The orchestrator depends
// only on this interface; tests swap in a stub.
type Classifier interface {
	Train(samples []TrainingSample) error
	Predict(s Sample) (string, error)
}

// NearestCentroid classifies by distance to the per-(test code, label) mean
// of the training values. Codes unseen during training fall back to the
// overall majority label.
type NearestCentroid struct {
	mu        sync.RWMutex
	centroids map[string]map[string]float64 // test code -> label -> mean value
	fallback  string
}

func NewNearestCentroid() *NearestCentroid {
	return &NearestCentroid{}
}

func (c *NearestCentroid) Train(samples []TrainingSample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no training samples")
	}

	sums := make(map[string]map[string]float64)
	counts := make(map[string]map[string]int)
	labelTotals := make(map[string]int)
	for _, s := range samples {
		if sums[s.TestCode] == nil {
			sums[s.TestCode] = make(map[string]float64)
			counts[s.TestCode] = make(map[string]int)
		}
		sums[s.TestCode][s.Label] += s.Value
		counts[s.TestCode][s.Label]++
		labelTotals[s.Label]++
	}

	centroids := make(map[string]map[string]float64, len(sums))
	for code, byLabel := range sums {
		centroids[code] = make(map[string]float64, len(byLabel))
		for label, sum := range byLabel {
			centroids[code][label] = sum / float64(counts[code][label])
		}
	}

	fallback := ""
	best := 0
	for label, n := range labelTotals {
		if n > best || (n == best && label < fallback) {
			fallback = label
			best = n
		}
	}

	c.mu.Lock()
	c.centroids = centroids
	c.fallback = fallback
	c.mu.Unlock()
	return nil
}

func (c *NearestCentroid) Predict(s Sample) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.centroids == nil {
		return "", fmt.Errorf("classifier not trained")
	}

	byLabel, ok := c.centroids[s.TestCode]
	if !ok {
		return c.fallback, nil
	}

	bestLabel := ""
	bestDist := math.Inf(1)
	for label, mean := range byLabel {
		d := math.Abs(s.Value - mean)
		if d < bestDist || (d == bestDist && label < bestLabel) {
			bestLabel = label
			bestDist = d
		}
	}
	return bestLabel, nil
}
