package screencapture

import (
	"time"

	"github.com/e7canasta/screen-capture/internal/framestats"
)

// FPSStats summarizes video frame arrival over the most recent frames
type FPSStats struct {
	// Frames is the number of frames the statistics were computed over
	Frames int
	// Duration is the time span those frames cover
	Duration time.Duration
	// FPSMean is the mean FPS across the window
	FPSMean float64
	// FPSStdDev is the standard deviation of instantaneous FPS
	FPSStdDev float64
	// FPSMin is the minimum instantaneous FPS
	FPSMin float64
	// FPSMax is the maximum instantaneous FPS
	FPSMax float64
	// IsStable is true if stddev < 15% of mean AND jitter < 20% of the interval
	IsStable bool
	// JitterMean is the mean deviation from the expected interval (seconds)
	JitterMean float64
	// JitterStdDev is the standard deviation of jitter (seconds)
	JitterStdDev float64
	// JitterMax is the largest deviation from the expected interval (seconds)
	JitterMax float64
}

// Stats is a snapshot of stream counters
type Stats struct {
	ID string
	// VideoFrames and AudioFrames count delivered frames
	VideoFrames uint64
	AudioFrames uint64
	IdleEvents  uint64
	Errors      uint64
	// Suppressed counts native events dropped because the stream had stopped
	Suppressed uint64
	Running    bool
	Uptime     time.Duration
	// FPS covers the last framestats.DefaultWindow video frames
	FPS FPSStats
}

// CalculateFPSStats computes FPS statistics from frame timestamps
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) FPSStats {
	return fromInternal(framestats.Calculate(frameTimes, totalDuration))
}

func fromInternal(s framestats.FPSStats) FPSStats {
	return FPSStats{
		Frames:       s.Frames,
		Duration:     s.Duration,
		FPSMean:      s.FPSMean,
		FPSStdDev:    s.FPSStdDev,
		FPSMin:       s.FPSMin,
		FPSMax:       s.FPSMax,
		IsStable:     s.IsStable,
		JitterMean:   s.JitterMean,
		JitterStdDev: s.JitterStdDev,
		JitterMax:    s.JitterMax,
	}
}
