package handlers

import (
	"context"
	"net/http"
	"time"

	"safety-prediction-api/services"

	"github.com/gin-gonic/gin"
)

type GridHandler struct {
	grid            *services.GridIndex
	cache           *services.CacheService
	defaultRadiusKm float64
}

func NewGridHandler(grid *services.GridIndex, cache *services.CacheService, defaultRadiusKm float64) *GridHandler {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = 2.0
	}
	return &GridHandler{grid: grid, cache: cache, defaultRadiusKm: defaultRadiusKm}
}

type ZoneRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

func (h *GridHandler) CheckZone(c *gin.Context) {
	var req ZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates out of range"})
		return
	}

	stats := h.grid.Snapshot().Classify(*req.Latitude, *req.Longitude)
	c.JSON(http.StatusOK, gin.H{
		"location": gin.H{"latitude": *req.Latitude, "longitude": *req.Longitude},
		"grid":     stats,
	})
}

type NearbyRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	RadiusKm  float64  `json:"radius_km"`
}

func (h *GridHandler) Nearby(c *gin.Context) {
	var req NearbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates out of range"})
		return
	}
	radius := req.RadiusKm
	if radius <= 0 {
		radius = h.defaultRadiusKm
	}

	cells := h.grid.Snapshot().Nearby(*req.Latitude, *req.Longitude, radius)
	c.JSON(http.StatusOK, gin.H{
		"location":  gin.H{"latitude": *req.Latitude, "longitude": *req.Longitude},
		"radius_km": radius,
		"zones":     cells,
		"count":     len(cells),
	})
}

func (h *GridHandler) Summary(c *gin.Context) {
	const cacheKey = "grid:summary"

	var cached services.GridSummary
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.TotalCells > 0 {
		c.JSON(http.StatusOK, gin.H{"grid_summary": cached})
		return
	}

	summary := h.grid.Snapshot().Summary()
	go h.cache.Set(context.Background(), cacheKey, summary, 60*time.Second)

	c.JSON(http.StatusOK, gin.H{"grid_summary": summary})
}
