package automation

import (
	"log"
	"time"

	"crm-backend/internal/metrics"
	"crm-backend/internal/models"
)

// ActionType is the closed set of automation action types.
type ActionType string

const (
	ActionCreateTask   ActionType = "create_task"
	ActionAssignLead   ActionType = "assign_lead"
	ActionChangeStatus ActionType = "change_status"
	ActionSendMessage  ActionType = "send_message"
)

var actionTypes = map[ActionType]bool{
	ActionCreateTask:   true,
	ActionAssignLead:   true,
	ActionChangeStatus: true,
	ActionSendMessage:  true,
}

// Action is one side-effecting operation of a matched rule. Only the fields
// relevant to its Type are read.
type Action struct {
	Type        ActionType `json:"type"`
	AssignedTo  *uint      `json:"assigned_to,omitempty"`
	TaskType    string     `json:"task_type,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	DelayHours  *int       `json:"delay_hours,omitempty"`
	Strategy    string     `json:"strategy,omitempty"`
	AgentID     *uint      `json:"agent_id,omitempty"`
	Status      string     `json:"status,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// executeActions applies the actions of one matched rule in order. An error
// aborts the remaining actions of this rule; the engine isolates the failure
// at rule granularity so later rules still run. An unknown action type is a
// warning, not an error.
func (e *Engine) executeActions(actions []Action, ctx *Context) error {
	for _, action := range actions {
		var err error

		switch action.Type {
		case ActionCreateTask:
			err = e.createTask(action, ctx)
		case ActionAssignLead:
			err = e.assignLead(action, ctx)
		case ActionChangeStatus:
			err = e.changeLeadStatus(action, ctx)
		case ActionSendMessage:
			err = e.sendMessage(action, ctx)
		default:
			log.Printf("Unknown automation action: %s", action.Type)
			metrics.ActionsExecuted.WithLabelValues(string(action.Type), "unknown").Inc()
			continue
		}

		if err != nil {
			metrics.ActionsExecuted.WithLabelValues(string(action.Type), "failed").Inc()
			return err
		}
		metrics.ActionsExecuted.WithLabelValues(string(action.Type), "ok").Inc()
	}
	return nil
}

func (e *Engine) createTask(action Action, ctx *Context) error {
	lead := ctx.Lead
	if lead == nil {
		return nil
	}

	assignedTo := action.AssignedTo
	if assignedTo == nil {
		assignedTo = lead.AssignedTo
	}
	if assignedTo == nil {
		return nil
	}

	delayHours := 24
	if action.DelayHours != nil {
		delayHours = *action.DelayHours
	}
	taskType := action.TaskType
	if taskType == "" {
		taskType = "follow_up"
	}
	title := action.Title
	if title == "" {
		title = "Follow up"
	}

	task := models.Task{
		LeadID:      lead.ID,
		AssignedTo:  *assignedTo,
		CreatedBy:   lead.CreatedBy,
		Type:        taskType,
		Title:       title,
		Description: action.Description,
		DueDate:     time.Now().Add(time.Duration(delayHours) * time.Hour),
		Status:      models.TaskStatusPending,
	}
	if err := e.db.Create(&task).Error; err != nil {
		return err
	}

	e.activity.TaskCreated(&task, ctx.ActorID)
	return nil
}

func (e *Engine) assignLead(action Action, ctx *Context) error {
	lead := ctx.Lead
	if lead == nil {
		return nil
	}

	var agent models.User
	if action.Strategy == "round_robin" {
		err := e.db.Where("role = ? AND is_active = ?", models.RoleAgent, true).
			Order("RANDOM()").First(&agent).Error
		if err != nil {
			return nil // no active agents, nothing to do
		}
	} else {
		if action.AgentID == nil {
			return nil
		}
		if err := e.db.First(&agent, *action.AgentID).Error; err != nil {
			return nil
		}
	}

	oldAgent := lead.AssignedTo
	if err := e.db.Model(lead).Update("assigned_to", agent.ID).Error; err != nil {
		return err
	}
	lead.AssignedTo = &agent.ID

	e.activity.LeadAssigned(lead, oldAgent, agent.ID, ctx.ActorID)
	if e.notifier != nil {
		if err := e.notifier.LeadAssigned(lead, agent.ID); err != nil {
			log.Printf("Failed to notify agent #%d of lead assignment: %v", agent.ID, err)
		}
	}

	cascade := ctx.cascade()
	cascade.Lead = lead
	e.Run(TriggerLeadAssigned, cascade)
	return nil
}

func (e *Engine) changeLeadStatus(action Action, ctx *Context) error {
	lead := ctx.Lead
	if lead == nil {
		return nil
	}

	oldStatus := lead.Status
	newStatus := action.Status
	if newStatus == "" || newStatus == oldStatus {
		return nil
	}

	if err := e.db.Model(lead).Update("status", newStatus).Error; err != nil {
		return err
	}
	lead.Status = newStatus

	e.activity.LeadStatusChanged(lead, oldStatus, newStatus, ctx.ActorID)

	cascade := ctx.cascade()
	cascade.Lead = lead
	cascade.OldStatus = oldStatus
	cascade.NewStatus = newStatus
	e.Run(TriggerLeadStatusChanged, cascade)
	return nil
}

func (e *Engine) sendMessage(action Action, ctx *Context) error {
	lead := ctx.Lead
	if lead == nil || lead.Phone == "" {
		return nil
	}
	if e.outbound == nil {
		log.Printf("No outbound dispatcher configured, skipping message for lead #%d", lead.ID)
		return nil
	}

	e.outbound.EnqueueMessage(lead.ID, action.Message, ctx.ActorID)
	return nil
}
