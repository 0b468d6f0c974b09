package api

import (
	"net/http"
	"time"

	"crm-backend/internal/auth"
	"crm-backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type NotificationHandler struct {
	db *gorm.DB
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{db: db}
}

// GetNotifications lists the caller's notifications, unread first.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	user := auth.CurrentUser(c)

	var notifications []models.Notification
	err := h.db.Where("user_id = ?", user.ID).
		Order("read_at IS NOT NULL, created_at DESC").
		Limit(100).Find(&notifications).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// MarkRead marks one of the caller's notifications read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	user := auth.CurrentUser(c)

	err := h.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", c.Param("id"), user.ID).
		Update("read_at", time.Now()).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marked read"})
}

// MarkAllRead marks all of the caller's notifications read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	user := auth.CurrentUser(c)

	err := h.db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", user.ID).
		Update("read_at", time.Now()).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All marked read"})
}
