package services

import "time"

const (
	TrendEscalating   = "escalating"
	TrendDeEscalating = "de-escalating"
	TrendStable       = "stable"
)

type JourneyPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

type JourneyResult struct {
	Assessments        []RiskAssessment `json:"assessments"`
	Trend              string           `json:"trend"`
	FirstCriticalIndex *int             `json:"first_critical_index"`
}

// JourneyTracker assesses an ordered sequence of points and derives a
// trend from the ordinal ranks of the per-point risk levels. It carries no
// state of its own beyond the snapshots the engine reads.
type JourneyTracker struct {
	engine *RiskEngine
}

func NewJourneyTracker(engine *RiskEngine) *JourneyTracker {
	return &JourneyTracker{engine: engine}
}

// Track computes one assessment per point, preserving point order.
func (t *JourneyTracker) Track(userID string, points []JourneyPoint) JourneyResult {
	result := JourneyResult{
		Assessments: make([]RiskAssessment, 0, len(points)),
		Trend:       TrendStable,
	}

	for i, p := range points {
		a := t.engine.Assess(AssessRequest{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Time:      p.Timestamp.Format("15:04"),
			UserID:    userID,
			Date:      p.Timestamp,
		})
		result.Assessments = append(result.Assessments, a)

		if a.FinalRiskLevel == RiskCritical && result.FirstCriticalIndex == nil {
			idx := i
			result.FirstCriticalIndex = &idx
		}
	}

	result.Trend = trendOf(result.Assessments)
	return result
}

// trendOf reports escalating for a strictly increasing level sequence,
// de-escalating for strictly decreasing, stable otherwise (including
// single-point journeys).
func trendOf(assessments []RiskAssessment) string {
	if len(assessments) < 2 {
		return TrendStable
	}

	increasing, decreasing := true, true
	for i := 1; i < len(assessments); i++ {
		prev := RiskOrdinal(assessments[i-1].FinalRiskLevel)
		cur := RiskOrdinal(assessments[i].FinalRiskLevel)
		if cur <= prev {
			increasing = false
		}
		if cur >= prev {
			decreasing = false
		}
	}

	switch {
	case increasing:
		return TrendEscalating
	case decreasing:
		return TrendDeEscalating
	default:
		return TrendStable
	}
}
