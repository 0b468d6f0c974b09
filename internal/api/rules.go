package api

import (
	"encoding/json"
	"net/http"

	"crm-backend/internal/auth"
	"crm-backend/internal/automation"
	"crm-backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RuleHandler struct {
	db *gorm.DB
}

func NewRuleHandler(db *gorm.DB) *RuleHandler {
	return &RuleHandler{db: db}
}

// GetRules returns all automation rules.
func (h *RuleHandler) GetRules(c *gin.Context) {
	var rules []models.AutomationRule
	if err := h.db.Order("id").Find(&rules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

// CreateRule validates and creates an automation rule.
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req struct {
		Name        string          `json:"name" binding:"required"`
		Description string          `json:"description"`
		TriggerType string          `json:"trigger_type" binding:"required"`
		Conditions  json.RawMessage `json:"conditions"`
		Actions     json.RawMessage `json:"actions" binding:"required"`
		IsActive    *bool           `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := automation.ValidateRule(req.TriggerType, req.Conditions, req.Actions); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	conditions := "[]"
	if len(req.Conditions) > 0 {
		conditions = string(req.Conditions)
	}

	user := auth.CurrentUser(c)
	rule := models.AutomationRule{
		Name:        req.Name,
		Description: req.Description,
		TriggerType: req.TriggerType,
		Conditions:  conditions,
		Actions:     string(req.Actions),
		IsActive:    isActive,
		CreatedBy:   user.ID,
	}
	if err := h.db.Create(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// UpdateRule updates a rule, re-validating the full definition.
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	var rule models.AutomationRule
	if err := h.db.First(&rule, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	var req struct {
		Name        string          `json:"name"`
		Description *string         `json:"description"`
		TriggerType string          `json:"trigger_type"`
		Conditions  json.RawMessage `json:"conditions"`
		Actions     json.RawMessage `json:"actions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	triggerType := rule.TriggerType
	if req.TriggerType != "" {
		triggerType = req.TriggerType
	}
	conditions := []byte(rule.Conditions)
	if len(req.Conditions) > 0 {
		conditions = req.Conditions
	}
	actions := []byte(rule.Actions)
	if len(req.Actions) > 0 {
		actions = req.Actions
	}

	if err := automation.ValidateRule(triggerType, conditions, actions); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{
		"trigger_type": triggerType,
		"conditions":   string(conditions),
		"actions":      string(actions),
	}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}

	if err := h.db.Model(&rule).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule updated successfully"})
}

// ToggleRule flips or sets a rule's active flag.
func (h *RuleHandler) ToggleRule(c *gin.Context) {
	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.db.Model(&models.AutomationRule{}).
		Where("id = ?", c.Param("id")).
		Update("is_active", req.IsActive).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule toggled successfully"})
}

// DeleteRule removes a rule.
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	if err := h.db.Delete(&models.AutomationRule{}, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted successfully"})
}
