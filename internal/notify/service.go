package notify

import (
	"encoding/json"
	"fmt"

	"crm-backend/internal/models"
	"crm-backend/internal/ws"

	"gorm.io/gorm"
)

// Service persists in-app notifications and pushes them to connected
// websocket clients. The hub may be nil (e.g. in batch tools); persistence
// still happens.
type Service struct {
	db  *gorm.DB
	hub *ws.Hub
}

func NewService(db *gorm.DB, hub *ws.Hub) *Service {
	return &Service{db: db, hub: hub}
}

func (s *Service) Notify(userID uint, notifType, title, body string, data map[string]any) error {
	raw := "{}"
	if len(data) > 0 {
		if b, err := json.Marshal(data); err == nil {
			raw = string(b)
		}
	}

	n := models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   raw,
	}
	if err := s.db.Create(&n).Error; err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.SendToUser(userID, "notification", n)
	}
	return nil
}

func (s *Service) TaskReminder(task *models.Task) error {
	return s.Notify(task.AssignedTo, "task_reminder",
		"Task due soon",
		fmt.Sprintf("Task '%s' is due at %s", task.Title, task.DueDate.Format("15:04")),
		map[string]any{"task_id": task.ID, "lead_id": task.LeadID})
}

func (s *Service) TaskOverdue(task *models.Task) error {
	return s.Notify(task.AssignedTo, "task_overdue",
		"Task missed",
		fmt.Sprintf("Task '%s' was due at %s and is now overdue", task.Title, task.DueDate.Format("Jan 2 15:04")),
		map[string]any{"task_id": task.ID, "lead_id": task.LeadID})
}

func (s *Service) LeadAssigned(lead *models.Lead, agentID uint) error {
	return s.Notify(agentID, "lead_assigned",
		"Lead assigned to you",
		fmt.Sprintf("Lead '%s' has been assigned to you", lead.Name),
		map[string]any{"lead_id": lead.ID})
}
