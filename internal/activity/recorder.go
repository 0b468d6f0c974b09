package activity

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"crm-backend/internal/models"

	"gorm.io/gorm"
)

// Recorder writes append-only activity records for domain events.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Log writes one activity record. Marshalling or insert failures are logged
// and swallowed so audit trouble never fails the calling operation.
func (r *Recorder) Log(activityType, description string, leadID, actorID *uint, properties map[string]any) {
	props := "{}"
	if len(properties) > 0 {
		if raw, err := json.Marshal(properties); err == nil {
			props = string(raw)
		}
	}

	entry := models.Activity{
		LeadID:      leadID,
		UserID:      actorID,
		Type:        activityType,
		Description: description,
		Properties:  props,
	}

	if err := r.db.Create(&entry).Error; err != nil {
		log.Printf("Failed to record %s activity: %v", activityType, err)
	}
}

func (r *Recorder) LeadCreated(lead *models.Lead, actorID *uint) {
	r.Log("lead_created", fmt.Sprintf("Lead '%s' was created", lead.Name), &lead.ID, actorID, map[string]any{
		"lead_name": lead.Name,
		"source":    lead.Source,
	})
}

func (r *Recorder) LeadUpdated(lead *models.Lead, actorID *uint, changes map[string]any) {
	r.Log("lead_updated", fmt.Sprintf("Lead '%s' was updated", lead.Name), &lead.ID, actorID, map[string]any{
		"changes": changes,
	})
}

func (r *Recorder) LeadStatusChanged(lead *models.Lead, oldStatus, newStatus string, actorID *uint) {
	r.Log("lead_status_changed",
		fmt.Sprintf("Lead '%s' status changed from '%s' to '%s'", lead.Name, oldStatus, newStatus),
		&lead.ID, actorID, map[string]any{
			"old_status": oldStatus,
			"new_status": newStatus,
		})
}

func (r *Recorder) LeadAssigned(lead *models.Lead, oldAgentID *uint, newAgentID uint, actorID *uint) {
	r.Log("lead_assigned", fmt.Sprintf("Lead '%s' assigned to agent #%d", lead.Name, newAgentID),
		&lead.ID, actorID, map[string]any{
			"old_agent_id": oldAgentID,
			"new_agent_id": newAgentID,
		})
}

func (r *Recorder) CallLogged(lead *models.Lead, outcome string, actorID *uint) {
	r.Log("call_logged", fmt.Sprintf("Call logged for lead '%s' - outcome: %s", lead.Name, outcome),
		&lead.ID, actorID, map[string]any{
			"outcome": outcome,
		})
}

func (r *Recorder) TaskCreated(task *models.Task, actorID *uint) {
	r.Log("task_created", fmt.Sprintf("Task '%s' created for lead", task.Title), &task.LeadID, actorID, map[string]any{
		"task_id":   task.ID,
		"task_type": task.Type,
		"due_date":  task.DueDate.Format(time.RFC3339),
	})
}

func (r *Recorder) TaskCompleted(task *models.Task, actorID *uint) {
	r.Log("task_completed", fmt.Sprintf("Task '%s' was completed", task.Title), &task.LeadID, actorID, map[string]any{
		"task_id": task.ID,
	})
}

func (r *Recorder) TaskMissed(task *models.Task) {
	r.Log("task_missed", fmt.Sprintf("Task '%s' was missed (overdue)", task.Title), &task.LeadID, nil, map[string]any{
		"task_id":  task.ID,
		"due_date": task.DueDate.Format(time.RFC3339),
	})
}

func (r *Recorder) NoteAdded(lead *models.Lead, note string, actorID *uint) {
	preview := note
	if len(preview) > 100 {
		preview = preview[:100]
	}
	r.Log("note_added", fmt.Sprintf("Note added to lead '%s'", lead.Name), &lead.ID, actorID, map[string]any{
		"note_preview": preview,
	})
}

func (r *Recorder) MessageSent(lead *models.Lead, message string, actorID *uint) {
	preview := message
	if len(preview) > 100 {
		preview = preview[:100]
	}
	r.Log("whatsapp_sent", fmt.Sprintf("WhatsApp message sent to lead '%s'", lead.Name), &lead.ID, actorID, map[string]any{
		"message_preview": preview,
	})
}
