package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"safety-prediction-api/models"
	"safety-prediction-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type IncidentsHandler struct {
	db    *gorm.DB
	cache *services.CacheService
}

func NewIncidentsHandler(db *gorm.DB, cache *services.CacheService) *IncidentsHandler {
	return &IncidentsHandler{db: db, cache: cache}
}

func (h *IncidentsHandler) GetIncidents(c *gin.Context) {
	p := ParsePagination(c)
	crimeType := c.Query("crime_type")
	station := c.Query("police_station")

	beforeStr := ""
	if p.Before != nil {
		beforeStr = p.Before.Format(time.RFC3339Nano)
	}
	cacheKey := fmt.Sprintf("incidents:%s:%s:%d:%s", crimeType, station, p.Limit, beforeStr)

	var cached CursorResponse
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.Data != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	query := h.db.Model(&models.Incident{}).Order("occurred_at DESC").Limit(p.Limit + 1)
	if p.Before != nil {
		query = query.Where("occurred_at < ?", *p.Before)
	}
	if crimeType != "" {
		query = query.Where("crime_type = ?", crimeType)
	}
	if station != "" {
		query = query.Where("police_station = ?", station)
	}

	var rows []models.Incident
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}

	var nextCursor string
	if hasMore && len(rows) > 0 {
		nextCursor = rows[len(rows)-1].OccurredAt.Format(time.RFC3339Nano)
	}

	resp := CursorResponse{Data: rows, NextCursor: nextCursor, HasMore: hasMore}
	go h.cache.Set(context.Background(), cacheKey, resp, 60*time.Second)

	c.JSON(http.StatusOK, resp)
}
