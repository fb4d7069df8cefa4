package viz

import (
	"strings"
	"testing"
)

func TestSparklineEmpty(t *testing.T) {
	if got := Sparkline(nil, 8); got != strings.Repeat("─", 8) {
		t.Errorf("empty series: got %q", got)
	}
}

func TestSparklineSpansRange(t *testing.T) {
	values := make([]float64, 10)
	for i := range values {
		values[i] = float64(i)
	}
	out := Sparkline(values, 10)
	if !strings.ContainsRune(out, '▁') {
		t.Error("minimum glyph missing from ramp")
	}
	if !strings.ContainsRune(out, '█') {
		t.Error("maximum glyph missing from ramp")
	}
}

func TestSparklineFlatSeries(t *testing.T) {
	out := Sparkline([]float64{3, 3, 3, 3}, 4)
	if out == "" {
		t.Fatal("flat series produced no output")
	}
}

func TestProgressBarClamps(t *testing.T) {
	for _, pct := range []float64{-0.5, 0, 0.5, 1, 1.7} {
		out := ProgressBar(pct, 10)
		filled := strings.Count(out, "█")
		empty := strings.Count(out, "░")
		if filled+empty != 10 {
			t.Errorf("percent %g: %d filled + %d empty, want 10 total", pct, filled, empty)
		}
		if filled < 0 || filled > 10 {
			t.Errorf("percent %g: filled %d out of range", pct, filled)
		}
	}
}
