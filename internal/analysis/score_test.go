package analysis

import (
	"math"
	"testing"
	"time"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		total      time.Duration
		productive time.Duration
		want       float64
	}{
		{"empty", 0, 0, 0},
		{"full short session", 10 * time.Minute, 10 * time.Minute, 100 + 10.0/60*5 - 10},
		{"full at cutoff", 15 * time.Minute, 15 * time.Minute, 100},
		{"full one hour", time.Hour, time.Hour, 100},
		{"full four hours", 4 * time.Hour, 4 * time.Hour, 100},
		{"half one hour", time.Hour, 30 * time.Minute, 55},
		{"half five hours capped bonus", 5 * time.Hour, 150 * time.Minute, 70},
		{"none short", 5 * time.Minute, 0, 0},
		{"none two hours", 2 * time.Hour, 0, 10},
		{"quarter ten minutes", 10 * time.Minute, 150 * time.Second, 25 + 10.0/60*5 - 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.total, tt.productive)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score(%v, %v) = %v, want %v", tt.total, tt.productive, got, tt.want)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	for total := time.Minute; total <= 6*time.Hour; total += 7 * time.Minute {
		for _, share := range []float64{0, 0.1, 0.5, 0.9, 1} {
			productive := time.Duration(float64(total) * share)
			got := Score(total, productive)
			if got < 0 || got > 100 {
				t.Fatalf("Score(%v, %v) = %v out of range", total, productive, got)
			}
		}
	}
}

func TestScoreUnproductiveShortSessionNeverNegative(t *testing.T) {
	for d := time.Minute; d < 15*time.Minute; d += time.Minute {
		want := math.Max(0, d.Hours()*5-10)
		if got := Score(d, 0); got != want {
			t.Errorf("Score(%v, 0) = %v, want %v", d, got, want)
		}
	}
}
