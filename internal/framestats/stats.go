// Package framestats computes frame-rate and jitter statistics over a sliding
// window of frame arrival times.
package framestats

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultWindow is the number of recent frames kept for statistics
	DefaultWindow = 120

	// fpsStabilityThreshold is the maximum FPS standard deviation as a fraction of mean FPS.
	// Example: 30 FPS mean → stable if stddev < 4.5 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of the expected interval.
	// Example: 30 FPS (33ms interval) → stable if jitter < 6.6ms
	jitterStabilityThreshold = 0.20
)

// FPSStats summarizes frame arrival times
type FPSStats struct {
	Frames       int
	Duration     time.Duration
	FPSMean      float64
	FPSStdDev    float64
	FPSMin       float64
	FPSMax       float64
	IsStable     bool
	JitterMean   float64 // seconds
	JitterStdDev float64 // seconds
	JitterMax    float64 // seconds
}

// Calculate computes FPS statistics from frame timestamps
//
// Mean FPS is frames over totalDuration. Instantaneous FPS is taken per
// interval, jitter is the deviation of each interval from 1/mean. A stream is
// stable when FPS stddev < 15% of mean AND mean jitter < 20% of the expected
// interval.
func Calculate(frameTimes []time.Time, totalDuration time.Duration) FPSStats {
	n := len(frameTimes)
	if n == 0 || totalDuration <= 0 {
		return FPSStats{Frames: n, Duration: totalDuration}
	}

	fpsMean := float64(n) / totalDuration.Seconds()

	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}

	if len(instantaneous) == 0 {
		return FPSStats{Frames: n, Duration: totalDuration, FPSMean: fpsMean}
	}

	fpsMin, fpsMax := instantaneous[0], instantaneous[0]
	var sumSquares float64
	for _, fps := range instantaneous {
		fpsMin = math.Min(fpsMin, fps)
		fpsMax = math.Max(fpsMax, fps)
		diff := fps - fpsMean
		sumSquares += diff * diff
	}
	fpsStdDev := math.Sqrt(sumSquares / float64(len(instantaneous)))

	expectedInterval := 1.0 / fpsMean

	jitters := make([]float64, 0, n-1)
	var jitterSum, jitterMax float64
	for i := 1; i < n; i++ {
		j := math.Abs(frameTimes[i].Sub(frameTimes[i-1]).Seconds() - expectedInterval)
		jitters = append(jitters, j)
		jitterSum += j
		jitterMax = math.Max(jitterMax, j)
	}
	jitterMean := jitterSum / float64(len(jitters))

	var jitterSumSquares float64
	for _, j := range jitters {
		diff := j - jitterMean
		jitterSumSquares += diff * diff
	}
	jitterStdDev := math.Sqrt(jitterSumSquares / float64(len(jitters)))

	fpsStable := fpsStdDev < fpsMean*fpsStabilityThreshold
	jitterStable := jitterMean < expectedInterval*jitterStabilityThreshold

	return FPSStats{
		Frames:       n,
		Duration:     totalDuration,
		FPSMean:      fpsMean,
		FPSStdDev:    fpsStdDev,
		FPSMin:       fpsMin,
		FPSMax:       fpsMax,
		IsStable:     fpsStable && jitterStable,
		JitterMean:   jitterMean,
		JitterStdDev: jitterStdDev,
		JitterMax:    jitterMax,
	}
}

// Window is a fixed-size ring of recent frame arrival times, safe for
// concurrent use.
type Window struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	full  bool
}

// NewWindow returns a window keeping the last size timestamps
func NewWindow(size int) *Window {
	if size < 2 {
		size = 2
	}
	return &Window{times: make([]time.Time, size)}
}

// Add records a frame arrival
func (w *Window) Add(t time.Time) {
	w.mu.Lock()
	w.times[w.next] = t
	w.next++
	if w.next == len(w.times) {
		w.next = 0
		w.full = true
	}
	w.mu.Unlock()
}

// Snapshot returns the recorded timestamps, oldest first
func (w *Window) Snapshot() []time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.full {
		out := make([]time.Time, w.next)
		copy(out, w.times[:w.next])
		return out
	}
	out := make([]time.Time, 0, len(w.times))
	out = append(out, w.times[w.next:]...)
	out = append(out, w.times[:w.next]...)
	return out
}

// Stats computes statistics over the window, measuring duration from the
// oldest to the newest frame plus one mean interval.
func (w *Window) Stats() FPSStats {
	times := w.Snapshot()
	n := len(times)
	if n < 2 {
		return FPSStats{Frames: n}
	}
	span := times[n-1].Sub(times[0])
	if span <= 0 {
		return FPSStats{Frames: n}
	}
	// n timestamps bound n-1 intervals; extend by one interval so that
	// n/duration is the arrival rate.
	duration := span + span/time.Duration(n-1)
	return Calculate(times, duration)
}
