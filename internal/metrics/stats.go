// Package metrics aggregates per-step timing and evaluation accuracy.
package metrics

import "time"

// Window accumulates timing and loss across the steps between two log lines.
type Window struct {
	samples  int
	data     time.Duration
	compute  time.Duration
	steps    int
	lossSum  float64
	lastLoss float64
	penalty  float64
}

// Step is one training step as seen by the window.
type Step struct {
	BatchSize int
	Data      time.Duration
	Compute   time.Duration
	Loss      float64
	// Penalty is the sparsity term added on top of Loss.
	Penalty float64
}

// Record adds a new measurement to the window.
func (w *Window) Record(s Step) {
	w.samples += s.BatchSize
	w.data += s.Data
	w.compute += s.Compute
	w.steps++
	w.lossSum += s.Loss
	w.lastLoss = s.Loss
	w.penalty = s.Penalty
}

// Steps reports how many steps were recorded since the last snapshot.
func (w *Window) Steps() int {
	return w.steps
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Steps: w.steps}
	total := w.data + w.compute
	if total > 0 {
		snap.ImagesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.steps > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
		snap.AvgLoss = w.lossSum / float64(w.steps)
	}
	snap.LastLoss = w.lastLoss
	snap.Penalty = w.penalty

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Steps        int
	ImagesPerSec float64
	AvgDataMS    float64
	AvgComputeMS float64
	AvgLoss      float64
	LastLoss     float64
	Penalty      float64
}

// Tally counts correct predictions during evaluation.
type Tally struct {
	Correct int
	Total   int
}

// Add records one prediction.
func (t *Tally) Add(predicted, label int) {
	t.Total++
	if predicted == label {
		t.Correct++
	}
}

// Accuracy returns the fraction of correct predictions, 0 when empty.
func (t Tally) Accuracy() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total)
}
