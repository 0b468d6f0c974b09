package automation

import (
	"strings"

	"crm-backend/internal/models"
)

// TriggerType enumerates the domain events that fire rule evaluation.
type TriggerType string

const (
	TriggerLeadCreated       TriggerType = "lead_created"
	TriggerLeadStatusChanged TriggerType = "lead_status_changed"
	TriggerTaskMissed        TriggerType = "task_missed"
	TriggerLeadAssigned      TriggerType = "lead_assigned"
	TriggerNoContactDays     TriggerType = "no_contact_days"
	TriggerCallOutcome       TriggerType = "call_outcome"
)

var triggerTypes = map[TriggerType]bool{
	TriggerLeadCreated:       true,
	TriggerLeadStatusChanged: true,
	TriggerTaskMissed:        true,
	TriggerLeadAssigned:      true,
	TriggerNoContactDays:     true,
	TriggerCallOutcome:       true,
}

func ValidTrigger(t string) bool {
	return triggerTypes[TriggerType(t)]
}

// Context is the value bag for one trigger invocation. It is built fresh by
// the caller that fired the trigger, read by condition evaluation and by the
// action executor. ActorID identifies the user whose request caused the
// trigger; automation fired from background jobs leaves it nil.
type Context struct {
	Lead      *models.Lead
	Task      *models.Task
	OldStatus string
	NewStatus string
	Outcome   string
	Count     int
	ActorID   *uint

	depth  int
	execID string
}

// cascade derives a child context for a trigger fired by an action of this
// invocation. Depth increases so runaway rule loops can be cut off; the
// execution id is inherited for log correlation.
func (c *Context) cascade() *Context {
	return &Context{
		ActorID: c.ActorID,
		depth:   c.depth + 1,
		execID:  c.execID,
	}
}

// Resolve looks up a dot-path such as "lead.budget" or "outcome". A missing
// path or an unknown field yields (nil, false).
func (c *Context) Resolve(field string) (interface{}, bool) {
	head, rest, _ := strings.Cut(field, ".")

	switch head {
	case "lead":
		return c.resolveLead(rest)
	case "task":
		return c.resolveTask(rest)
	case "old_status":
		return c.OldStatus, c.OldStatus != ""
	case "new_status":
		return c.NewStatus, c.NewStatus != ""
	case "outcome":
		return c.Outcome, c.Outcome != ""
	case "count":
		return c.Count, true
	default:
		return nil, false
	}
}

func (c *Context) resolveLead(field string) (interface{}, bool) {
	if c.Lead == nil {
		return nil, false
	}
	switch field {
	case "", "id":
		return c.Lead.ID, true
	case "name":
		return c.Lead.Name, true
	case "phone":
		return c.Lead.Phone, true
	case "email":
		return c.Lead.Email, true
	case "source":
		return c.Lead.Source, true
	case "status":
		return c.Lead.Status, true
	case "budget":
		return c.Lead.Budget, true
	case "assigned_to":
		if c.Lead.AssignedTo == nil {
			return nil, false
		}
		return *c.Lead.AssignedTo, true
	case "created_by":
		return c.Lead.CreatedBy, true
	default:
		return nil, false
	}
}

func (c *Context) resolveTask(field string) (interface{}, bool) {
	if c.Task == nil {
		return nil, false
	}
	switch field {
	case "", "id":
		return c.Task.ID, true
	case "lead_id":
		return c.Task.LeadID, true
	case "type":
		return c.Task.Type, true
	case "title":
		return c.Task.Title, true
	case "status":
		return c.Task.Status, true
	case "assigned_to":
		return c.Task.AssignedTo, true
	default:
		return nil, false
	}
}
