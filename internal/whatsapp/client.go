package whatsapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"crm-backend/internal/config"
	"crm-backend/internal/models"

	"gorm.io/gorm"
)

// Message statuses
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

type Client struct {
	db     *gorm.DB
	config *config.Config
	http   *http.Client
}

func NewClient(db *gorm.DB, cfg *config.Config) *Client {
	return &Client{
		db:     db,
		config: cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Message Structures ---

type TextMessage struct {
	MessagingProduct string  `json:"messaging_product"`
	To               string  `json:"to"`
	Type             string  `json:"type"`
	Text             TextObj `json:"text"`
}

type TextObj struct {
	Body string `json:"body"`
}

type SendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText records an outbound message for the lead and posts it to the
// WhatsApp Cloud API. The record starts as pending and ends as sent or
// failed; the record is returned either way.
func (c *Client) SendText(lead *models.Lead, message string, sentBy *uint) (*models.WhatsAppMessage, error) {
	record := models.WhatsAppMessage{
		LeadID:    lead.ID,
		SentBy:    sentBy,
		Direction: "outbound",
		Message:   message,
		Status:    StatusPending,
		SentAt:    time.Now(),
	}
	if err := c.db.Create(&record).Error; err != nil {
		return nil, err
	}

	payload := TextMessage{
		MessagingProduct: "whatsapp",
		To:               NormalizePhone(lead.Phone),
		Type:             "text",
		Text:             TextObj{Body: message},
	}

	respBody, err := c.post(fmt.Sprintf("%s/%s/messages", c.config.WhatsAppAPIURL, c.config.PhoneNumberID), payload)
	if err != nil {
		c.db.Model(&record).Updates(map[string]interface{}{
			"status":   StatusFailed,
			"metadata": string(respBody),
		})
		return &record, err
	}

	var resp SendResponse
	messageID := ""
	if err := json.Unmarshal(respBody, &resp); err == nil && len(resp.Messages) > 0 {
		messageID = resp.Messages[0].ID
	}

	c.db.Model(&record).Updates(map[string]interface{}{
		"status":              StatusSent,
		"whatsapp_message_id": messageID,
		"metadata":            string(respBody),
	})
	record.Status = StatusSent
	record.WhatsAppMessageID = messageID
	return &record, nil
}

// Send implements the queue.Sender contract: resolve the lead, then SendText.
func (c *Client) Send(leadID uint, message string, sentBy *uint) error {
	var lead models.Lead
	if err := c.db.First(&lead, leadID).Error; err != nil {
		return fmt.Errorf("lead #%d not found: %w", leadID, err)
	}
	if lead.Phone == "" {
		log.Printf("Lead #%d has no phone, dropping outbound message", leadID)
		return nil
	}
	_, err := c.SendText(&lead, message, sentBy)
	return err
}

func (c *Client) post(url string, body interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.WhatsAppToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}

	return respBody, nil
}

var phoneJunk = regexp.MustCompile(`[\s\-()]`)

// NormalizePhone strips spaces, dashes and leading zeros; keeps a + prefix.
func NormalizePhone(phone string) string {
	phone = phoneJunk.ReplaceAllString(phone, "")
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + strings.TrimLeft(phone, "0")
	}
	return phone
}
