// Package trigger turns a noisy stream of distance readings into debounced
// "vehicle passed" events, per spec §4.B.
package trigger

import (
	"context"
	"time"

	"github.com/timebay/timebay/internal/distsensor"
)

const zeroSamples = 100

// Detector wraps a DistanceSensor with a calibrated baseline and emits one
// DistanceReading per debounced vehicle pass.
type Detector struct {
	sensor distsensor.DistanceSensor

	zero      uint32
	threshold uint32
	debounce  time.Duration

	lastEmit     time.Time
	haveLastEmit bool
}

// Config configures a Detector.
type Config struct {
	DefaultZeroMM uint32
	ThresholdMM   uint32
	// DebounceMS defaults to 2000 if zero.
	DebounceMS uint32
}

// New creates a Detector over sensor using the given configuration.
func New(sensor distsensor.DistanceSensor, cfg Config) *Detector {
	debounce := time.Duration(cfg.DebounceMS) * time.Millisecond
	if debounce == 0 {
		debounce = 2000 * time.Millisecond
	}
	return &Detector{
		sensor:    sensor,
		zero:      cfg.DefaultZeroMM,
		threshold: cfg.ThresholdMM,
		debounce:  debounce,
	}
}

// Zero takes 100 consecutive successful readings and sets their integer
// mean as the new baseline. Any read error aborts the routine without a
// partial update; the previous zero is left untouched.
func (d *Detector) Zero(ctx context.Context) (uint32, error) {
	var sum uint64
	for i := 0; i < zeroSamples; i++ {
		r, err := d.sensor.GetReading(ctx)
		if err != nil {
			return 0, err
		}
		sum += uint64(r.DistMM)
	}

	zero := uint32(sum / zeroSamples)
	d.zero = zero
	return zero, nil
}

// ShouldTrigger reports whether reading counts as the vehicle passing: the
// sensor has to report a distance strictly closer than zero by at least
// threshold. Pure function per spec §8's testable property table.
func ShouldTrigger(zero, threshold, reading uint32) bool {
	closerThanZero := reading < zero
	return closerThanZero && zero-reading >= threshold
}

// NextTrigger spins until a debounced trigger occurs, returning the
// triggering reading. Readings that trigger but arrive before the debounce
// window has elapsed still reset the debounce timer (source behavior,
// preserved intentionally per spec §9: this correctly debounces a
// slow-moving object still in range, at the cost of a spurious spike
// masking a real event for up to the debounce window).
func (d *Detector) NextTrigger(ctx context.Context) (distsensor.DistanceReading, error) {
	for {
		if err := ctx.Err(); err != nil {
			return distsensor.DistanceReading{}, err
		}

		r, err := d.sensor.GetReading(ctx)
		if err != nil {
			return distsensor.DistanceReading{}, err
		}

		if !ShouldTrigger(d.zero, d.threshold, r.DistMM) {
			continue
		}

		now := time.Now()
		if d.haveLastEmit && now.Sub(d.lastEmit) < d.debounce {
			d.lastEmit = now
			continue
		}

		d.lastEmit = now
		d.haveLastEmit = true
		return r, nil
	}
}
