package metrics

import "time"

// Window accumulates step counts between two progress reports.
type Window struct {
	start    time.Time
	samples  int
	steps    int
	lastLoss float64
}

// Reset starts a new window at now.
func (w *Window) Reset(now time.Time) {
	w.start = now
	w.samples = 0
	w.steps = 0
}

// Record adds a finished step to the window.
func (w *Window) Record(batchSize int, loss float64) {
	w.samples += batchSize
	w.steps++
	w.lastLoss = loss
}

// Snapshot returns throughput since the last reset and starts a new window
// at now. Timing is taken at the report boundary rather than per step.
func (w *Window) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{Steps: w.steps, LastLoss: w.lastLoss}
	elapsed := now.Sub(w.start)
	if elapsed > 0 {
		snap.ExamplesPerSec = float64(w.samples) / elapsed.Seconds()
	}
	if w.steps > 0 {
		snap.SecPerBatch = elapsed.Seconds() / float64(w.steps)
	}
	w.Reset(now)
	return snap
}

// Snapshot represents loggable throughput.
type Snapshot struct {
	Steps          int
	ExamplesPerSec float64
	SecPerBatch    float64
	LastLoss       float64
}
