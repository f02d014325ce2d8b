package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"safety-prediction-api/services"

	"github.com/gin-gonic/gin"
)

// AlertChannel carries high and critical assessments to websocket
// subscribers via Redis pub/sub.
const AlertChannel = "safety:alerts"

type AssessHandler struct {
	engine  *services.RiskEngine
	cache   *services.CacheService
	tracker *services.JourneyTracker
}

func NewAssessHandler(engine *services.RiskEngine, tracker *services.JourneyTracker, cache *services.CacheService) *AssessHandler {
	return &AssessHandler{engine: engine, cache: cache, tracker: tracker}
}

type PredictRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Time      string   `json:"time" binding:"required"`
	Severity  *int     `json:"severity"`
	CrimeType string   `json:"crime_type"`
	UserID    string   `json:"user_id"`
}

// validate rejects bad input before any fusion work happens.
func (r *PredictRequest) validate() error {
	if *r.Latitude < -90 || *r.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if *r.Longitude < -180 || *r.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	if _, _, err := services.ParseClock(r.Time); err != nil {
		return fmt.Errorf("time must be HH:MM")
	}
	if r.Severity != nil && (*r.Severity < 1 || *r.Severity > 5) {
		return fmt.Errorf("severity must be between 1 and 5")
	}
	return nil
}

func (h *AssessHandler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	severity := 0
	if req.Severity != nil {
		severity = *req.Severity
	}

	cacheKey := fmt.Sprintf("assess:%.4f:%.4f:%s:%d:%s",
		*req.Latitude, *req.Longitude, req.Time, severity, req.CrimeType)

	var cached services.RiskAssessment
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.FinalRiskLevel != "" {
		c.JSON(http.StatusOK, cached)
		return
	}

	start := time.Now()
	assessment := h.engine.Assess(services.AssessRequest{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Time:      req.Time,
		Severity:  severity,
		CrimeType: req.CrimeType,
		UserID:    req.UserID,
	})
	services.AssessDuration.Observe(time.Since(start).Seconds())
	services.AssessmentsTotal.WithLabelValues(assessment.FinalRiskLevel).Inc()
	if assessment.Degraded {
		services.DegradedAssessmentsTotal.Inc()
	}

	go h.cache.Set(context.Background(), cacheKey, assessment, 30*time.Second)

	if assessment.FinalRiskLevel == services.RiskHigh || assessment.FinalRiskLevel == services.RiskCritical {
		go h.cache.Publish(context.Background(), AlertChannel, gin.H{
			"user_id":          req.UserID,
			"latitude":         *req.Latitude,
			"longitude":        *req.Longitude,
			"final_risk_level": assessment.FinalRiskLevel,
			"message":          assessment.Message,
		})
	}

	c.JSON(http.StatusOK, assessment)
}

type JourneyRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Points []struct {
		Latitude  *float64  `json:"latitude" binding:"required"`
		Longitude *float64  `json:"longitude" binding:"required"`
		Timestamp time.Time `json:"timestamp" binding:"required"`
	} `json:"points" binding:"required,min=1"`
}

func (h *AssessHandler) Journey(c *gin.Context) {
	var req JourneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	points := make([]services.JourneyPoint, 0, len(req.Points))
	for i, p := range req.Points {
		if *p.Latitude < -90 || *p.Latitude > 90 || *p.Longitude < -180 || *p.Longitude > 180 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("point %d: coordinates out of range", i)})
			return
		}
		points = append(points, services.JourneyPoint{
			Latitude:  *p.Latitude,
			Longitude: *p.Longitude,
			Timestamp: p.Timestamp,
		})
	}

	result := h.tracker.Track(req.UserID, points)

	for _, a := range result.Assessments {
		services.AssessmentsTotal.WithLabelValues(a.FinalRiskLevel).Inc()
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":              req.UserID,
		"assessments":          result.Assessments,
		"trend":                result.Trend,
		"first_critical_index": result.FirstCriticalIndex,
	})
}
