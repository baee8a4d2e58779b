package distsensor

import (
	"context"
	"math/rand/v2"
	"time"
)

// MockDistanceReader returns bounded random readings, optionally after a
// fixed delay per reading to simulate sensor latency. Grounded on the
// original's MockDistanceReader.
type MockDistanceReader struct {
	Min, Max uint32
	Delay    time.Duration
}

// NewMockDistanceReader creates a mock sensor bounded to [min, max).
func NewMockDistanceReader(min, max uint32) *MockDistanceReader {
	return &MockDistanceReader{Min: min, Max: max}
}

// GetReading returns a uniformly random reading in [Min, Max), waiting Delay
// first if set, or returns early if ctx is cancelled.
func (m *MockDistanceReader) GetReading(ctx context.Context) (DistanceReading, error) {
	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return DistanceReading{}, ctx.Err()
		case <-t.C:
		}
	}

	span := m.Max - m.Min
	if span == 0 {
		return DistanceReading{DistMM: m.Min}, nil
	}
	return DistanceReading{DistMM: m.Min + rand.Uint32N(span)}, nil
}
