package api

import (
	"net/http"
	"time"

	"crm-backend/internal/activity"
	"crm-backend/internal/auth"
	"crm-backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TaskHandler struct {
	db       *gorm.DB
	activity *activity.Recorder
}

func NewTaskHandler(db *gorm.DB, recorder *activity.Recorder) *TaskHandler {
	return &TaskHandler{db: db, activity: recorder}
}

func taskScope(c *gin.Context, db *gorm.DB) *gorm.DB {
	user := auth.CurrentUser(c)
	if user != nil && user.Role == models.RoleAgent {
		return db.Where("assigned_to = ?", user.ID)
	}
	return db
}

// GetTasks lists tasks with optional status and lead filters.
func (h *TaskHandler) GetTasks(c *gin.Context) {
	query := taskScope(c, h.db.Model(&models.Task{}))
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if leadID := c.Query("lead_id"); leadID != "" {
		query = query.Where("lead_id = ?", leadID)
	}

	var tasks []models.Task
	if err := query.Order("due_date").Find(&tasks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// CreateTask creates a task against a lead.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req struct {
		LeadID      uint      `json:"lead_id" binding:"required"`
		AssignedTo  uint      `json:"assigned_to" binding:"required"`
		Type        string    `json:"type"`
		Title       string    `json:"title" binding:"required"`
		Description string    `json:"description"`
		DueDate     time.Time `json:"due_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Type == "" {
		req.Type = "follow_up"
	}

	user := auth.CurrentUser(c)
	task := models.Task{
		LeadID:      req.LeadID,
		AssignedTo:  req.AssignedTo,
		CreatedBy:   user.ID,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Status:      models.TaskStatusPending,
	}
	if err := h.db.Create(&task).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.activity.TaskCreated(&task, &user.ID)
	c.JSON(http.StatusCreated, task)
}

// CompleteTask marks a pending task completed.
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	var task models.Task
	if err := taskScope(c, h.db).First(&task, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if task.Status != models.TaskStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "task is not pending"})
		return
	}

	now := time.Now()
	err := h.db.Model(&task).Updates(map[string]interface{}{
		"status":       models.TaskStatusCompleted,
		"completed_at": now,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now

	user := auth.CurrentUser(c)
	h.activity.TaskCompleted(&task, &user.ID)
	c.JSON(http.StatusOK, task)
}

// DeleteTask removes a task.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := taskScope(c, h.db).Delete(&models.Task{}, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}
