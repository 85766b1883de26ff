// Package telemetry wraps armon/go-metrics' in-memory sink to back the
// per-kind finding counters that engine status snapshots expose, without
// pulling in a full metrics backend. Ring drops are counted by the rings
// themselves; polls and fetches are not counted.
package telemetry

import (
	"time"

	gometrics "github.com/armon/go-metrics"
)

// Recorder counts named events, read back via Counter for snapshot_status.
type Recorder struct {
	sink *gometrics.InmemSink
}

// NewRecorder returns a Recorder backed by a single retained interval, since
// the engine only ever reads cumulative counts, never rate history.
func NewRecorder() *Recorder {
	return &Recorder{sink: gometrics.NewInmemSink(time.Hour, time.Hour)}
}

// Incr increments a named counter by one.
func (r *Recorder) Incr(name string) {
	r.sink.IncrCounter([]string{name}, 1)
}

// IncrBy increments a named counter by delta.
func (r *Recorder) IncrBy(name string, delta float64) {
	r.sink.IncrCounter([]string{name}, float32(delta))
}

// Counter returns the cumulative value recorded for name across every
// retained interval.
func (r *Recorder) Counter(name string) float64 {
	var total float64
	for _, interval := range r.sink.Data() {
		interval.RLock()
		if sample, ok := interval.Counters[name]; ok {
			total += sample.Sum
		}
		interval.RUnlock()
	}
	return total
}
