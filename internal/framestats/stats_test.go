package framestats

import (
	"math"
	"math/rand"
	"testing"
	"testing/quick"
	"time"
)

// TestCalculate_StabilityThresholds tests the stability criteria
//
// Property: FPS stddev < 15% of mean AND jitter < 20% of expected interval → IsStable = true
func TestCalculate_StabilityThresholds(t *testing.T) {
	t.Run("stable stream", func(t *testing.T) {
		frameTimes := generateFrameTimes(60, 30, 0.05)
		stats := Calculate(frameTimes, 2*time.Second)

		if !stats.IsStable {
			t.Errorf("Expected stable stream, got IsStable=false (FPS stddev: %.2f%%, jitter: %.2f%%)",
				(stats.FPSStdDev/stats.FPSMean)*100,
				(stats.JitterMean/(1.0/stats.FPSMean))*100,
			)
		}
	})

	t.Run("unstable stream", func(t *testing.T) {
		frameTimes := generateFrameTimes(60, 30, 0.6)
		stats := Calculate(frameTimes, 2*time.Second)

		if stats.IsStable {
			t.Errorf("Expected unstable stream (high jitter), got IsStable=true (jitter: %.2f%%)",
				(stats.JitterMean/(1.0/stats.FPSMean))*100,
			)
		}
	})
}

func TestCalculate_EdgeCases(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		frameTimes []time.Time
		duration   time.Duration
		wantFrames int
		wantStable bool
	}{
		{name: "zero frames", frameTimes: []time.Time{}, duration: time.Second},
		{name: "one frame", frameTimes: []time.Time{base}, duration: time.Second, wantFrames: 1},
		{
			name:       "two frames",
			frameTimes: []time.Time{base, base.Add(time.Second)},
			duration:   time.Second,
			wantFrames: 2,
		},
		{
			name:       "identical timestamps",
			frameTimes: []time.Time{base, base, base},
			duration:   time.Second,
			wantFrames: 3,
		},
		{name: "zero duration", frameTimes: []time.Time{base, base.Add(time.Second)}, wantFrames: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := Calculate(tt.frameTimes, tt.duration)

			if stats.Frames != tt.wantFrames {
				t.Errorf("Frames = %d, want %d", stats.Frames, tt.wantFrames)
			}
			if stats.FPSStdDev < 0 || stats.JitterMean < 0 || stats.JitterMax < 0 {
				t.Errorf("negative statistic: %+v", stats)
			}
			if stats.IsStable != tt.wantStable {
				t.Errorf("Expected IsStable=%v, got %v", tt.wantStable, stats.IsStable)
			}
		})
	}
}

// Property: jitter metrics are non-negative and max >= mean
func TestCalculate_JitterBounds(t *testing.T) {
	f := func(fps float64, numFrames uint8) bool {
		if fps < 0.1 || fps > 60.0 || numFrames < 2 || numFrames > 120 {
			return true
		}

		frameTimes := generateFrameTimes(int(numFrames), fps, 0.1)
		duration := time.Duration(float64(numFrames) / fps * float64(time.Second))
		stats := Calculate(frameTimes, duration)

		if stats.JitterMean < 0 || stats.JitterStdDev < 0 || stats.JitterMax < 0 {
			t.Logf("FAIL: negative jitter %+v with fps=%.2f, frames=%d", stats, fps, numFrames)
			return false
		}
		if stats.JitterMax < stats.JitterMean {
			t.Logf("FAIL: JitterMax (%.6f) < JitterMean (%.6f)", stats.JitterMax, stats.JitterMean)
			return false
		}
		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 100}); err != nil {
		t.Errorf("Property violated: %v", err)
	}
}

// Property: mean FPS is frame count over duration
func TestCalculate_DurationConsistency(t *testing.T) {
	f := func(fps float64, numFrames uint8) bool {
		if fps < 0.1 || fps > 60.0 || numFrames < 10 || numFrames > 120 {
			return true
		}

		frameTimes := generateFrameTimes(int(numFrames), fps, 0.05)
		duration := time.Duration(float64(numFrames) / fps * float64(time.Second))
		stats := Calculate(frameTimes, duration)

		if math.Abs(stats.FPSMean-fps) > fps*0.01 {
			t.Logf("FAIL: FPSMean (%.2f) deviates from expected (%.2f)", stats.FPSMean, fps)
			return false
		}
		return true
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 50}); err != nil {
		t.Errorf("Property violated: %v", err)
	}
}

func TestWindow_KeepsMostRecent(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	w := NewWindow(3)

	if got := w.Snapshot(); len(got) != 0 {
		t.Fatalf("empty window snapshot has %d entries", len(got))
	}

	for i := 0; i < 5; i++ {
		w.Add(base.Add(time.Duration(i) * 100 * time.Millisecond))
	}

	got := w.Snapshot()
	if len(got) != 3 {
		t.Fatalf("snapshot has %d entries, want 3", len(got))
	}
	for i, ts := range got {
		want := base.Add(time.Duration(i+2) * 100 * time.Millisecond)
		if !ts.Equal(want) {
			t.Errorf("snapshot[%d] = %v, want %v", i, ts, want)
		}
	}
}

func TestWindow_Stats(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	w := NewWindow(DefaultWindow)

	if s := w.Stats(); s.Frames != 0 || s.FPSMean != 0 {
		t.Fatalf("empty window stats = %+v", s)
	}

	for i := 0; i < 200; i++ {
		w.Add(base.Add(time.Duration(i) * 100 * time.Millisecond))
	}

	s := w.Stats()
	if s.Frames != DefaultWindow {
		t.Errorf("Frames = %d, want %d", s.Frames, DefaultWindow)
	}
	if math.Abs(s.FPSMean-10) > 1e-6 {
		t.Errorf("FPSMean = %.6f, want 10", s.FPSMean)
	}
	if !s.IsStable {
		t.Errorf("evenly spaced frames should be stable: %+v", s)
	}
}

// generateFrameTimes generates timestamps at targetFPS with uniform jitter of
// ±jitterFraction of the inter-frame interval
func generateFrameTimes(numFrames int, targetFPS float64, jitterFraction float64) []time.Time {
	if numFrames < 1 {
		return []time.Time{}
	}

	expected := 1.0 / targetFPS
	frameTimes := make([]time.Time, numFrames)
	frameTimes[0] = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rng := rand.New(rand.NewSource(42))
	for i := 1; i < numFrames; i++ {
		jitter := (rng.Float64()*2 - 1) * jitterFraction * expected
		frameTimes[i] = frameTimes[i-1].Add(time.Duration((expected + jitter) * float64(time.Second)))
	}
	return frameTimes
}

func BenchmarkCalculate(b *testing.B) {
	frameTimes := generateFrameTimes(DefaultWindow, 30, 0.1)
	duration := 4 * time.Second

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Calculate(frameTimes, duration)
	}
}
