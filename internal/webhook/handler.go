package webhook

import (
	"log"
	"net/http"
	"time"

	"crm-backend/internal/config"
	"crm-backend/internal/models"
	"crm-backend/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Payload mirrors the WhatsApp Cloud API webhook envelope, trimmed to the
// fields the CRM consumes.
type Payload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []InboundMessage `json:"messages"`
				Statuses []StatusUpdate   `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type InboundMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

type StatusUpdate struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Handler struct {
	db     *gorm.DB
	config *config.Config
}

func NewHandler(db *gorm.DB, cfg *config.Config) *Handler {
	return &Handler{db: db, config: cfg}
}

// Verify answers the WhatsApp webhook subscription challenge.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	if mode == "subscribe" && token == h.config.VerifyToken {
		log.Println("Webhook verified successfully")
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

// Receive ingests inbound messages and delivery status updates.
func (h *Handler) Receive(c *gin.Context) {
	var payload Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Printf("Error binding webhook payload: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				h.handleInbound(msg)
			}
			for _, status := range change.Value.Statuses {
				h.updateStatus(status)
			}
		}
	}

	c.Status(http.StatusOK)
}

// handleInbound records an inbound message against the lead whose phone
// matches the sender. Messages from unknown numbers are dropped.
func (h *Handler) handleInbound(msg InboundMessage) {
	if msg.From == "" {
		return
	}

	suffix := msg.From
	if len(suffix) > 9 {
		suffix = suffix[len(suffix)-9:]
	}

	var lead models.Lead
	if err := h.db.Where("phone LIKE ?", "%"+suffix).First(&lead).Error; err != nil {
		log.Printf("Inbound message from unknown number %s", msg.From)
		return
	}

	record := models.WhatsAppMessage{
		LeadID:            lead.ID,
		Direction:         "inbound",
		Message:           msg.Text.Body,
		Status:            whatsapp.StatusDelivered,
		WhatsAppMessageID: msg.ID,
		SentAt:            time.Now(),
	}
	if err := h.db.Create(&record).Error; err != nil {
		log.Printf("Failed to record inbound message: %v", err)
	}
}

func (h *Handler) updateStatus(status StatusUpdate) {
	if status.ID == "" || status.Status == "" {
		return
	}
	err := h.db.Model(&models.WhatsAppMessage{}).
		Where("whatsapp_message_id = ?", status.ID).
		Update("status", status.Status).Error
	if err != nil {
		log.Printf("Failed to update message status: %v", err)
	}
}
