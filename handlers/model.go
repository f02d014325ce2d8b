package handlers

import (
	"net/http"

	"safety-prediction-api/services"

	"github.com/gin-gonic/gin"
)

type ModelHandler struct {
	store *services.ModelStore
}

func NewModelHandler(store *services.ModelStore) *ModelHandler {
	return &ModelHandler{store: store}
}

func (h *ModelHandler) GetInfo(c *gin.Context) {
	snap := h.store.Active()
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no classifier snapshot loaded"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"model_type":    "logistic_regression",
		"version":       snap.Version,
		"accuracy":      snap.Accuracy,
		"trained_at":    snap.TrainedAt,
		"feature_count": services.FeatureCount,
		"crime_types":   len(snap.Encoder.CrimeTypes),
		"stations":      len(snap.Encoder.Stations),
	})
}
