package services

import (
	"testing"
	"time"
)

func journeyPoint(lat, lon float64, hour, minute int) JourneyPoint {
	return JourneyPoint{
		Latitude:  lat,
		Longitude: lon,
		Timestamp: time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC),
	}
}

func TestJourneyEscalating(t *testing.T) {
	tracker := NewJourneyTracker(testEngine(t, true))

	// Daytime empty area, then night empty area, then the night hotspot:
	// medium, high, critical with an always-risky classifier.
	res := tracker.Track("user-1", []JourneyPoint{
		journeyPoint(12.5, 77.5, 14, 0),
		journeyPoint(12.5, 77.5, 23, 0),
		journeyPoint(11.005, 76.955, 23, 30),
	})

	if len(res.Assessments) != 3 {
		t.Fatalf("got %d assessments, want 3", len(res.Assessments))
	}
	wantLevels := []string{RiskMedium, RiskHigh, RiskCritical}
	for i, want := range wantLevels {
		if got := res.Assessments[i].FinalRiskLevel; got != want {
			t.Errorf("point %d: level = %q, want %q", i, got, want)
		}
	}
	if res.Trend != TrendEscalating {
		t.Errorf("trend = %q, want %q", res.Trend, TrendEscalating)
	}
	if res.FirstCriticalIndex == nil {
		t.Fatal("expected a first critical index")
	}
	if *res.FirstCriticalIndex != 2 {
		t.Errorf("first critical index = %d, want 2", *res.FirstCriticalIndex)
	}
}

func TestJourneyDeEscalating(t *testing.T) {
	tracker := NewJourneyTracker(testEngine(t, true))

	res := tracker.Track("user-1", []JourneyPoint{
		journeyPoint(11.005, 76.955, 23, 30),
		journeyPoint(12.5, 77.5, 23, 45),
		journeyPoint(12.5, 77.5, 14, 0),
	})

	if res.Trend != TrendDeEscalating {
		t.Errorf("trend = %q, want %q", res.Trend, TrendDeEscalating)
	}
	if res.FirstCriticalIndex == nil || *res.FirstCriticalIndex != 0 {
		t.Errorf("first critical index = %v, want 0", res.FirstCriticalIndex)
	}
}

func TestJourneyStable(t *testing.T) {
	tracker := NewJourneyTracker(testEngine(t, false))

	tests := []struct {
		name   string
		points []JourneyPoint
	}{
		{
			"flat sequence",
			[]JourneyPoint{
				journeyPoint(12.5, 77.5, 14, 0),
				journeyPoint(12.5, 77.5, 14, 10),
				journeyPoint(12.5, 77.5, 14, 20),
			},
		},
		{
			"non-monotonic sequence",
			[]JourneyPoint{
				journeyPoint(12.5, 77.5, 14, 0),
				journeyPoint(11.105, 76.955, 14, 10), // medium cell
				journeyPoint(12.5, 77.5, 14, 20),
			},
		},
		{
			"single point",
			[]JourneyPoint{journeyPoint(12.5, 77.5, 14, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tracker.Track("user-1", tt.points)
			if res.Trend != TrendStable {
				t.Errorf("trend = %q, want %q", res.Trend, TrendStable)
			}
			if res.FirstCriticalIndex != nil {
				t.Errorf("unexpected critical index %d", *res.FirstCriticalIndex)
			}
		})
	}
}

func TestTrendOf(t *testing.T) {
	mk := func(levels ...string) []RiskAssessment {
		out := make([]RiskAssessment, len(levels))
		for i, l := range levels {
			out[i] = RiskAssessment{FinalRiskLevel: l}
		}
		return out
	}

	tests := []struct {
		name   string
		levels []RiskAssessment
		want   string
	}{
		{"strictly increasing", mk(RiskLow, RiskMedium, RiskCritical), TrendEscalating},
		{"strictly decreasing", mk(RiskCritical, RiskHigh, RiskLow), TrendDeEscalating},
		{"plateau breaks escalation", mk(RiskLow, RiskMedium, RiskMedium), TrendStable},
		{"all equal", mk(RiskHigh, RiskHigh), TrendStable},
		{"zigzag", mk(RiskLow, RiskHigh, RiskLow), TrendStable},
		{"empty", nil, TrendStable},
		{"single", mk(RiskCritical), TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trendOf(tt.levels); got != tt.want {
				t.Errorf("trendOf = %q, want %q", got, tt.want)
			}
		})
	}
}
