package api

import (
	"net/http"

	"crm-backend/internal/activity"
	"crm-backend/internal/auth"
	"crm-backend/internal/models"
	"crm-backend/internal/queue"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type WhatsAppHandler struct {
	db         *gorm.DB
	dispatcher *queue.Dispatcher
	activity   *activity.Recorder
}

func NewWhatsAppHandler(db *gorm.DB, dispatcher *queue.Dispatcher, recorder *activity.Recorder) *WhatsAppHandler {
	return &WhatsAppHandler{db: db, dispatcher: dispatcher, activity: recorder}
}

// SendMessage enqueues an outbound message to a lead. Delivery is
// asynchronous; the caller gets an accepted response once queued.
func (h *WhatsAppHandler) SendMessage(c *gin.Context) {
	var req struct {
		LeadID  uint   `json:"lead_id" binding:"required"`
		Message string `json:"message" binding:"required"`
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
	if lead.Phone == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "lead has no phone number"})
		return
	}

	user := auth.CurrentUser(c)
	if !h.dispatcher.EnqueueMessage(lead.ID, req.Message, &user.ID) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "outbound queue is full"})
		return
	}

	h.activity.MessageSent(&lead, req.Message, &user.ID)
	c.JSON(http.StatusAccepted, gin.H{"message": "Message queued"})
}

// GetConversation returns the message history with a lead.
func (h *WhatsAppHandler) GetConversation(c *gin.Context) {
	var messages []models.WhatsAppMessage
	err := h.db.Where("lead_id = ?", c.Param("id")).
		Order("sent_at").Find(&messages).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, messages)
}
