package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"safety-prediction-api/config"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{NightStartHour: 22, NightEndHour: 6}
}

// fixedLabelSnapshot builds a snapshot whose prediction is forced by the
// bias alone, so fusion behavior can be tested independently of training.
func fixedLabelSnapshot(risky bool) *ClassifierSnapshot {
	enc := NewFeatureEncoder(DefaultCrimeTypes, []string{DefaultStation})
	enc.FitScaler(nil)

	bias := -4.0
	if risky {
		bias = 4.0
	}
	return &ClassifierSnapshot{
		Encoder:   enc,
		Weights:   make([]float64, FeatureCount),
		Bias:      bias,
		Accuracy:  0.95,
		TrainedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// testEngine wires a grid with one high cell (around 11.005, 76.955), one
// medium cell (around 11.105, 76.955) and empty space everywhere else.
func testEngine(t *testing.T, risky bool) *RiskEngine {
	t.Helper()

	grid := NewGridIndex(testGridConfig(), testRiskConfig())
	incidents := append(
		makeIncidents(11.005, 76.955, 15, 3, "14:00"),
		makeIncidents(11.105, 76.955, 5, 2, "14:00")...,
	)
	grid.Rebuild(incidents)

	store := NewModelStore(nil, nil)
	if err := store.Publish(context.Background(), fixedLabelSnapshot(risky)); err != nil {
		t.Fatalf("publish snapshot: %v", err)
	}
	return NewRiskEngine(grid, store, testRiskConfig())
}

func TestFuseLevelDecisionTable(t *testing.T) {
	tests := []struct {
		name       string
		classifier string
		grid       string
		night      bool
		want       string
	}{
		{"risky high night", LabelRisky, RiskHigh, true, RiskCritical},
		{"risky high day", LabelRisky, RiskHigh, false, RiskHigh},
		{"risky medium night", LabelRisky, RiskMedium, true, RiskHigh},
		{"risky low night", LabelRisky, RiskLow, true, RiskHigh},
		{"risky medium day", LabelRisky, RiskMedium, false, RiskMedium},
		{"risky low day", LabelRisky, RiskLow, false, RiskMedium},
		{"safe high night", LabelSafe, RiskHigh, true, RiskLow},
		{"safe high day", LabelSafe, RiskHigh, false, RiskLow},
		{"safe medium night", LabelSafe, RiskMedium, true, RiskMedium},
		{"safe medium day", LabelSafe, RiskMedium, false, RiskMedium},
		{"safe low night", LabelSafe, RiskLow, true, RiskLow},
		{"safe low day", LabelSafe, RiskLow, false, RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fuseLevel(tt.classifier, tt.grid, tt.night); got != tt.want {
				t.Errorf("fuseLevel(%q, %q, %v) = %q, want %q",
					tt.classifier, tt.grid, tt.night, got, tt.want)
			}
		})
	}
}

func TestDegradedLevelDecisionTable(t *testing.T) {
	tests := []struct {
		grid  string
		night bool
		want  string
	}{
		{RiskHigh, true, RiskHigh},
		{RiskHigh, false, RiskMedium},
		{RiskMedium, true, RiskLow},
		{RiskMedium, false, RiskLow},
		{RiskLow, true, RiskLow},
		{RiskLow, false, RiskLow},
	}

	for _, tt := range tests {
		if got := degradedLevel(tt.grid, tt.night); got != tt.want {
			t.Errorf("degradedLevel(%q, %v) = %q, want %q", tt.grid, tt.night, got, tt.want)
		}
	}
}

func TestAssessCriticalAtNightInHotspot(t *testing.T) {
	engine := testEngine(t, true)

	out := engine.Assess(AssessRequest{
		Latitude:  11.005,
		Longitude: 76.955,
		Time:      "23:30",
		Severity:  4,
		CrimeType: "Assault",
	})

	if !out.IsNight {
		t.Error("23:30 should be night")
	}
	if out.GridRisk != RiskHigh {
		t.Errorf("grid risk = %q, want %q", out.GridRisk, RiskHigh)
	}
	if out.Prediction != LabelRisky {
		t.Errorf("prediction = %q, want %q", out.Prediction, LabelRisky)
	}
	if out.FinalRiskLevel != RiskCritical {
		t.Errorf("final level = %q, want %q", out.FinalRiskLevel, RiskCritical)
	}
	if !strings.Contains(out.Message, "CRITICAL") {
		t.Errorf("critical message = %q, should name the alert", out.Message)
	}
	if len(out.Recommendations) <= len(baseRecommendations) {
		t.Error("critical level should add recommendations beyond the base set")
	}
	if out.Degraded {
		t.Error("assessment with a loaded model should not be degraded")
	}
	if out.ModelVersion == 0 {
		t.Error("model version should be reported")
	}
}

func TestAssessSafeAreaDaytime(t *testing.T) {
	engine := testEngine(t, false)

	out := engine.Assess(AssessRequest{
		Latitude:  12.5, // far from any aggregated cell
		Longitude: 77.5,
		Time:      "10:00",
	})

	if out.IsNight {
		t.Error("10:00 should not be night")
	}
	if out.GridStats.InGrid {
		t.Error("point should be outside the grid")
	}
	if out.FinalRiskLevel != RiskLow {
		t.Errorf("final level = %q, want %q", out.FinalRiskLevel, RiskLow)
	}
	if !strings.Contains(out.Message, "safe area") {
		t.Errorf("low-risk message = %q", out.Message)
	}
}

func TestAssessAppliesDefaults(t *testing.T) {
	engine := testEngine(t, false)

	// Severity 0 and empty crime type mean "not provided"; the assessment
	// must still complete.
	out := engine.Assess(AssessRequest{
		Latitude:  11.105,
		Longitude: 76.955,
		Time:      "14:00",
	})

	if out.GridRisk != RiskMedium {
		t.Errorf("grid risk = %q, want %q", out.GridRisk, RiskMedium)
	}
	if out.FinalRiskLevel != RiskMedium {
		t.Errorf("safe classifier + medium grid should fuse to medium, got %q", out.FinalRiskLevel)
	}
}

func TestAssessDegradedWithoutModel(t *testing.T) {
	grid := NewGridIndex(testGridConfig(), testRiskConfig())
	grid.Rebuild(makeIncidents(11.005, 76.955, 15, 3, "14:00"))
	engine := NewRiskEngine(grid, NewModelStore(nil, nil), testRiskConfig())

	tests := []struct {
		name string
		lat  float64
		tod  string
		want string
	}{
		{"high cell at night", 11.005, "23:00", RiskHigh},
		{"high cell at day", 11.005, "14:00", RiskMedium},
		{"empty cell at night", 12.5, "23:00", RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := engine.Assess(AssessRequest{Latitude: tt.lat, Longitude: 76.955, Time: tt.tod})
			if !out.Degraded {
				t.Error("assessment without a model should be degraded")
			}
			if out.Prediction != "unknown" {
				t.Errorf("prediction = %q, want unknown", out.Prediction)
			}
			if out.RiskScore != 0.5 || out.SafeScore != 0.5 {
				t.Errorf("scores = %.2f/%.2f, want 0.5/0.5", out.RiskScore, out.SafeScore)
			}
			if out.FinalRiskLevel != tt.want {
				t.Errorf("final level = %q, want %q", out.FinalRiskLevel, tt.want)
			}
		})
	}
}

func TestIsNightBoundaries(t *testing.T) {
	engine := NewRiskEngine(NewGridIndex(testGridConfig(), testRiskConfig()), NewModelStore(nil, nil), testRiskConfig())

	tests := []struct {
		tod  string
		want bool
	}{
		{"22:00", true},
		{"21:59", false},
		{"06:59", true}, // the whole 6 o'clock hour counts as night
		{"07:00", false},
		{"00:00", true},
	}

	for _, tt := range tests {
		out := engine.Assess(AssessRequest{Latitude: 11.0, Longitude: 76.9, Time: tt.tod})
		if out.IsNight != tt.want {
			t.Errorf("IsNight at %s = %v, want %v", tt.tod, out.IsNight, tt.want)
		}
	}
}
