package services

import (
	"time"

	"safety-prediction-api/config"
)

const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// RiskOrdinal orders the final risk levels for trend comparison.
func RiskOrdinal(level string) int {
	switch level {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// AssessRequest is a fully validated assessment input. Severity 0 and an
// empty CrimeType mean "not provided"; Assess fills in the documented
// defaults rather than failing.
type AssessRequest struct {
	Latitude  float64
	Longitude float64
	Time      string
	Severity  int
	CrimeType string
	UserID    string
	Date      time.Time
}

// RiskAssessment is the ephemeral per-request result. It is recomputed on
// every query and never persisted.
type RiskAssessment struct {
	Prediction      string    `json:"prediction"`
	Confidence      float64   `json:"confidence"`
	RiskScore       float64   `json:"risk_score"`
	SafeScore       float64   `json:"safe_score"`
	GridRisk        string    `json:"grid_risk"`
	GridStats       CellStats `json:"grid_stats"`
	IsNight         bool      `json:"is_night"`
	FinalRiskLevel  string    `json:"final_risk_level"`
	Message         string    `json:"message"`
	Recommendations []string  `json:"recommendations"`
	ModelVersion    int64     `json:"model_version,omitempty"`
	Degraded        bool      `json:"degraded"`
}

// RiskEngine fuses the grid aggregate, the classifier output and the
// temporal context into one final risk level. Assess is a pure function of
// the two snapshots it captures at entry, so it is safe under unlimited
// parallel invocation.
type RiskEngine struct {
	grid   *GridIndex
	models *ModelStore
	cfg    config.RiskConfig
}

func NewRiskEngine(grid *GridIndex, models *ModelStore, cfg config.RiskConfig) *RiskEngine {
	return &RiskEngine{grid: grid, models: models, cfg: cfg}
}

func (e *RiskEngine) isNight(hour int) bool {
	return e.cfg.IsNight(hour)
}

// Assess runs the full fusion pipeline for one point and time. Each of the
// two snapshot pointers is captured exactly once; the rest of the call
// works only on those captures.
func (e *RiskEngine) Assess(req AssessRequest) RiskAssessment {
	gridSnap := e.grid.Snapshot()
	modelSnap := e.models.Active()

	hour, minute, err := ParseClock(req.Time)
	if err != nil {
		// Callers validate Time at the boundary; fall back to noon for
		// internal misuse rather than crashing the assessment path.
		hour, minute = 12, 0
	}
	night := e.isNight(hour)

	stats := gridSnap.Classify(req.Latitude, req.Longitude)

	out := RiskAssessment{
		GridRisk:  stats.RiskLabel,
		GridStats: stats,
		IsNight:   night,
	}

	if modelSnap == nil {
		out.Degraded = true
		out.Prediction = "unknown"
		out.RiskScore = 0.5
		out.SafeScore = 0.5
		out.FinalRiskLevel = degradedLevel(stats.RiskLabel, night)
	} else {
		severity := req.Severity
		if severity == 0 {
			severity = DefaultSeverity
		}
		crimeType := req.CrimeType
		if crimeType == "" {
			crimeType = DefaultCrimeType
		}
		date := req.Date
		if date.IsZero() {
			date = time.Now().UTC()
		}

		vec := modelSnap.Encoder.Vector(RecordInput{
			Lat:       req.Latitude,
			Lon:       req.Longitude,
			Severity:  severity,
			CrimeType: crimeType,
			Station:   DefaultStation,
			Date:      date,
			Hour:      hour,
			Minute:    minute,
		})
		p := modelSnap.Predict(vec)

		out.Prediction = p.Label
		out.Confidence = p.Confidence
		out.RiskScore = p.RiskScore
		out.SafeScore = p.SafeScore
		out.ModelVersion = modelSnap.Version
		out.FinalRiskLevel = fuseLevel(p.Label, stats.RiskLabel, night)
	}

	out.Message = riskMessage(out.FinalRiskLevel, night)
	out.Recommendations = riskRecommendations(out.FinalRiskLevel, night)
	return out
}

// fuseLevel is the fusion decision table, first match wins.
func fuseLevel(classifierLabel, gridLabel string, night bool) string {
	risky := classifierLabel == LabelRisky
	switch {
	case risky && gridLabel == RiskHigh && night:
		return RiskCritical
	case risky && (gridLabel == RiskHigh || night):
		return RiskHigh
	case risky || gridLabel == RiskMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// degradedLevel is the grid-only reduced table used when no classifier
// snapshot is loaded.
func degradedLevel(gridLabel string, night bool) string {
	switch {
	case gridLabel == RiskHigh && night:
		return RiskHigh
	case gridLabel == RiskHigh:
		return RiskMedium
	default:
		return RiskLow
	}
}

func riskMessage(level string, night bool) string {
	switch level {
	case RiskCritical:
		return "CRITICAL ALERT: You're in a high-risk area during night hours. Consider leaving immediately or finding a safe location."
	case RiskHigh:
		if night {
			return "CAUTION: Elevated risk detected during night hours. Stay vigilant and avoid isolated areas."
		}
		return "CAUTION: You're in an area with elevated safety concerns. Stay alert."
	case RiskMedium:
		return "ADVISORY: Medium risk detected for this area and time. Stay with groups if possible."
	default:
		if night {
			return "Safe area, but take standard night-time precautions."
		}
		return "You're in a safe area. Enjoy your time!"
	}
}

var baseRecommendations = []string{
	"Keep your phone charged and accessible",
	"Share your location with trusted contacts",
	"Stay in well-lit, populated areas",
}

func riskRecommendations(level string, night bool) []string {
	switch level {
	case RiskCritical:
		return append(append([]string(nil), baseRecommendations...),
			"Leave the area immediately if possible",
			"Call emergency services if you feel threatened",
			"Find the nearest police station or safe building",
			"Avoid walking alone",
		)
	case RiskHigh:
		return append(append([]string(nil), baseRecommendations...),
			"Consider changing your route",
			"Stay with groups if possible",
			"Avoid displaying valuables",
			"Trust your instincts",
		)
	case RiskMedium:
		return append(append([]string(nil), baseRecommendations...),
			"Be extra vigilant",
			"Avoid shortcuts through isolated areas",
		)
	default:
		if night {
			return append(append([]string(nil), baseRecommendations...),
				"Take standard night-time precautions",
			)
		}
		return []string{
			"Enjoy your time while staying aware",
			"Standard safety practices apply",
		}
	}
}
