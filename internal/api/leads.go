package api

import (
	"log"
	"net/http"
	"time"

	"crm-backend/internal/activity"
	"crm-backend/internal/auth"
	"crm-backend/internal/automation"
	"crm-backend/internal/models"
	"crm-backend/internal/notify"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type LeadHandler struct {
	db       *gorm.DB
	engine   *automation.Engine
	activity *activity.Recorder
	notifier *notify.Service
}

func NewLeadHandler(db *gorm.DB, engine *automation.Engine, recorder *activity.Recorder, notifier *notify.Service) *LeadHandler {
	return &LeadHandler{db: db, engine: engine, activity: recorder, notifier: notifier}
}

// leadScope narrows queries to the caller's visibility: agents only see
// leads assigned to them.
func leadScope(c *gin.Context, db *gorm.DB) *gorm.DB {
	user := auth.CurrentUser(c)
	if user != nil && user.Role == models.RoleAgent {
		return db.Where("assigned_to = ?", user.ID)
	}
	return db
}

// GetLeads lists leads with optional status/source filters.
func (h *LeadHandler) GetLeads(c *gin.Context) {
	query := leadScope(c, h.db.Model(&models.Lead{}))
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}

	var leads []models.Lead
	if err := query.Order("created_at DESC").Find(&leads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, leads)
}

// GetLead returns one lead.
func (h *LeadHandler) GetLead(c *gin.Context) {
	var lead models.Lead
	if err := leadScope(c, h.db).First(&lead, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}
	c.JSON(http.StatusOK, lead)
}

// CreateLead creates a lead and fires the lead_created trigger.
func (h *LeadHandler) CreateLead(c *gin.Context) {
	var req struct {
		Name       string  `json:"name" binding:"required"`
		Phone      string  `json:"phone"`
		Email      string  `json:"email"`
		Source     string  `json:"source"`
		Budget     float64 `json:"budget"`
		Notes      string  `json:"notes"`
		AssignedTo *uint   `json:"assigned_to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := auth.CurrentUser(c)
	lead := models.Lead{
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Source:     req.Source,
		Status:     models.LeadStatusNew,
		Budget:     req.Budget,
		Notes:      req.Notes,
		AssignedTo: req.AssignedTo,
		CreatedBy:  user.ID,
	}
	if err := h.db.Create(&lead).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.activity.LeadCreated(&lead, &user.ID)
	h.engine.Run(automation.TriggerLeadCreated, &automation.Context{Lead: &lead, ActorID: &user.ID})

	c.JSON(http.StatusCreated, lead)
}

// UpdateLead updates basic lead fields (not status or assignment, which have
// their own endpoints so triggers fire consistently).
func (h *LeadHandler) UpdateLead(c *gin.Context) {
	var lead models.Lead
	if err := leadScope(c, h.db).First(&lead, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}

	var req struct {
		Name   *string  `json:"name"`
		Phone  *string  `json:"phone"`
		Email  *string  `json:"email"`
		Source *string  `json:"source"`
		Budget *float64 `json:"budget"`
		Notes  *string  `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	changes := map[string]interface{}{}
	if req.Name != nil {
		changes["name"] = *req.Name
	}
	if req.Phone != nil {
		changes["phone"] = *req.Phone
	}
	if req.Email != nil {
		changes["email"] = *req.Email
	}
	if req.Source != nil {
		changes["source"] = *req.Source
	}
	if req.Budget != nil {
		changes["budget"] = *req.Budget
	}
	if req.Notes != nil {
		changes["notes"] = *req.Notes
	}
	if len(changes) == 0 {
		c.JSON(http.StatusOK, lead)
		return
	}

	if err := h.db.Model(&lead).Updates(changes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	user := auth.CurrentUser(c)
	h.activity.LeadUpdated(&lead, &user.ID, changes)
	c.JSON(http.StatusOK, lead)
}

// UpdateStatus changes a lead's status and fires lead_status_changed.
func (h *LeadHandler) UpdateStatus(c *gin.Context) {
	var lead models.Lead
	if err := leadScope(c, h.db).First(&lead, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	oldStatus := lead.Status
	if req.Status == oldStatus {
		c.JSON(http.StatusOK, lead)
		return
	}

	if err := h.db.Model(&lead).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	lead.Status = req.Status

	user := auth.CurrentUser(c)
	h.activity.LeadStatusChanged(&lead, oldStatus, req.Status, &user.ID)
	h.engine.Run(automation.TriggerLeadStatusChanged, &automation.Context{
		Lead:      &lead,
		OldStatus: oldStatus,
		NewStatus: req.Status,
		ActorID:   &user.ID,
	})

	c.JSON(http.StatusOK, lead)
}

// AssignLead reassigns a lead to an agent and fires lead_assigned.
func (h *LeadHandler) AssignLead(c *gin.Context) {
	var lead models.Lead
	if err := h.db.First(&lead, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}

	var req struct {
		AgentID uint `json:"agent_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var agent models.User
	if err := h.db.Where("id = ? AND is_active = ?", req.AgentID, true).First(&agent).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent not found or inactive"})
		return
	}

	oldAgent := lead.AssignedTo
	if err := h.db.Model(&lead).Update("assigned_to", agent.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	lead.AssignedTo = &agent.ID

	user := auth.CurrentUser(c)
	h.activity.LeadAssigned(&lead, oldAgent, agent.ID, &user.ID)
	if err := h.notifier.LeadAssigned(&lead, agent.ID); err != nil {
		log.Printf("Failed to notify agent #%d: %v", agent.ID, err)
	}
	h.engine.Run(automation.TriggerLeadAssigned, &automation.Context{Lead: &lead, ActorID: &user.ID})

	c.JSON(http.StatusOK, lead)
}

// AddNote appends a note to the lead and records the activity.
func (h *LeadHandler) AddNote(c *gin.Context) {
	var lead models.Lead
	if err := leadScope(c, h.db).First(&lead, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
		return
	}

	var req struct {
		Note string `json:"note" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notes := lead.Notes
	if notes != "" {
		notes += "\n"
	}
	notes += time.Now().Format("2006-01-02 15:04") + ": " + req.Note

	if err := h.db.Model(&lead).Update("notes", notes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	user := auth.CurrentUser(c)
	h.activity.NoteAdded(&lead, req.Note, &user.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Note added"})
}

// DeleteLead removes a lead (admin/manager only, wired in routes).
func (h *LeadHandler) DeleteLead(c *gin.Context) {
	if err := h.db.Delete(&models.Lead{}, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Lead deleted"})
}
