package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"safety-prediction-api/models"
	"safety-prediction-api/services"

	"github.com/gin-gonic/gin"
)

type FeedbackHandler struct {
	ingestor *services.FeedbackIngestor
	updater  *services.ModelUpdater
}

func NewFeedbackHandler(ingestor *services.FeedbackIngestor, updater *services.ModelUpdater) *FeedbackHandler {
	return &FeedbackHandler{ingestor: ingestor, updater: updater}
}

type FeedbackRequest struct {
	Feedback   string   `json:"feedback" binding:"required,oneof=Good Bad"`
	Suggestion string   `json:"suggestion"`
	Lat        *float64 `json:"lat" binding:"required"`
	Lon        *float64 `json:"lon" binding:"required"`
	Time       string   `json:"time" binding:"required"`
	CrimeType  string   `json:"crime_type"`
}

// Submit validates and queues a feedback event. A full queue answers 429
// so the client can back off and retry.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Lat < -90 || *req.Lat > 90 || *req.Lon < -180 || *req.Lon > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates out of range"})
		return
	}
	if _, _, err := services.ParseClock(req.Time); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time must be HH:MM"})
		return
	}

	userID := ""
	if claims, ok := c.Get("claims"); ok {
		if cl, ok := claims.(*services.Claims); ok {
			userID = cl.Email
		}
	}

	ev := models.FeedbackEvent{
		ID:         fmt.Sprintf("ev-%d", time.Now().UnixNano()),
		UserID:     userID,
		Feedback:   req.Feedback,
		Suggestion: req.Suggestion,
		Lat:        *req.Lat,
		Lon:        *req.Lon,
		Time:       req.Time,
		CrimeType:  req.CrimeType,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.ingestor.Enqueue(ev); err != nil {
		if errors.Is(err, services.ErrQueueFull) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "feedback queue full, retry later"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue feedback"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "event_id": ev.ID})
}

// Retrain lets an operator force a retraining run with an empty batch.
func (h *FeedbackHandler) Retrain(c *gin.Context) {
	res, err := h.updater.Apply(c.Request.Context(), nil)
	if errors.Is(err, services.ErrRetrainRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": "retraining job already running"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
