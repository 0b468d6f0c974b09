package api

import (
	"net/http"
	"time"

	"crm-backend/internal/activity"
	"crm-backend/internal/auth"
	"crm-backend/internal/automation"
	"crm-backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CallLogHandler struct {
	db       *gorm.DB
	engine   *automation.Engine
	activity *activity.Recorder
}

func NewCallLogHandler(db *gorm.DB, engine *automation.Engine, recorder *activity.Recorder) *CallLogHandler {
	return &CallLogHandler{db: db, engine: engine, activity: recorder}
}

// GetCallLogs lists call logs, optionally per lead.
func (h *CallLogHandler) GetCallLogs(c *gin.Context) {
	query := h.db.Model(&models.CallLog{})
	if leadID := c.Query("lead_id"); leadID != "" {
		query = query.Where("lead_id = ?", leadID)
	}
	if user := auth.CurrentUser(c); user != nil && user.Role == models.RoleAgent {
		query = query.Where("user_id = ?", user.ID)
	}

	var logs []models.CallLog
	if err := query.Order("called_at DESC").Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}

// CreateCallLog records a call, bumps the lead's last contact time and
// fires the call_outcome trigger.
func (h *CallLogHandler) CreateCallLog(c *gin.Context) {
	var req struct {
		LeadID          uint   `json:"lead_id" binding:"required"`
		Outcome         string `json:"outcome" binding:"required"`
		DurationSeconds int    `json:"duration_seconds"`
		Notes           string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var lead models.Lead
	if err := h.db.First(&lead, req.LeadID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}

	user := auth.CurrentUser(c)
	now := time.Now()
	callLog := models.CallLog{
		LeadID:          req.LeadID,
		UserID:          user.ID,
		Outcome:         req.Outcome,
		DurationSeconds: req.DurationSeconds,
		Notes:           req.Notes,
		CalledAt:        now,
	}
	if err := h.db.Create(&callLog).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.db.Model(&lead).Update("last_contacted_at", now)
	lead.LastContactedAt = &now

	h.activity.CallLogged(&lead, req.Outcome, &user.ID)
	h.engine.Run(automation.TriggerCallOutcome, &automation.Context{
		Lead:    &lead,
		Outcome: req.Outcome,
		ActorID: &user.ID,
	})

	c.JSON(http.StatusCreated, callLog)
}
