package api

import (
	"net/http"
	"time"

	"crm-backend/internal/auth"
	"crm-backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// GetStats returns headline counts for the dashboard, scoped to the caller's
// visibility.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	user := auth.CurrentUser(c)

	scoped := func(model interface{}) *gorm.DB {
		q := h.db.Model(model)
		if user != nil && user.Role == models.RoleAgent {
			q = q.Where("assigned_to = ?", user.ID)
		}
		return q
	}

	var totalLeads int64
	scoped(&models.Lead{}).Count(&totalLeads)

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var byStatus []statusCount
	scoped(&models.Lead{}).Select("status, COUNT(*) as count").Group("status").Scan(&byStatus)

	startOfDay := time.Now().Truncate(24 * time.Hour)
	var dueToday int64
	scoped(&models.Task{}).Where("status = ? AND due_date BETWEEN ? AND ?",
		models.TaskStatusPending, startOfDay, startOfDay.Add(24*time.Hour)).Count(&dueToday)

	var missedTasks int64
	h.db.Model(&models.Task{}).Where("status = ?", models.TaskStatusMissed).Count(&missedTasks)

	var recent []models.Activity
	h.db.Order("created_at DESC").Limit(10).Find(&recent)

	c.JSON(http.StatusOK, gin.H{
		"total_leads":       totalLeads,
		"leads_by_status":   byStatus,
		"tasks_due_today":   dueToday,
		"tasks_missed":      missedTasks,
		"recent_activities": recent,
	})
}
