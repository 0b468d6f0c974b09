package api

import (
	"net/http"
	"strconv"

	"crm-backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ActivityHandler struct {
	db *gorm.DB
}

func NewActivityHandler(db *gorm.DB) *ActivityHandler {
	return &ActivityHandler{db: db}
}

// GetActivities lists activity records, newest first, with optional lead
// filter and limit/offset pagination.
func (h *ActivityHandler) GetActivities(c *gin.Context) {
	query := h.db.Model(&models.Activity{})
	if leadID := c.Query("lead_id"); leadID != "" {
		query = query.Where("lead_id = ?", leadID)
	}
	if activityType := c.Query("type"); activityType != "" {
		query = query.Where("type = ?", activityType)
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var activities []models.Activity
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&activities).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, activities)
}
