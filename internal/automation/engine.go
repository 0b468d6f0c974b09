package automation

import (
	"encoding/json"
	"fmt"
	"log"

	"crm-backend/internal/metrics"
	"crm-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxCascadeDepth bounds trigger re-entrancy: an action may fire another
// trigger (change_status -> lead_status_changed), and a rule loop would
// otherwise recurse forever.
const MaxCascadeDepth = 5

// ActivityRecorder is the audit collaborator consumed by actions.
type ActivityRecorder interface {
	TaskCreated(task *models.Task, actorID *uint)
	LeadAssigned(lead *models.Lead, oldAgentID *uint, newAgentID uint, actorID *uint)
	LeadStatusChanged(lead *models.Lead, oldStatus, newStatus string, actorID *uint)
}

// Outbound enqueues an asynchronous outbound message send.
type Outbound interface {
	EnqueueMessage(leadID uint, message string, sentBy *uint) bool
}

// Notifier pushes in-app notifications for automation side effects.
type Notifier interface {
	LeadAssigned(lead *models.Lead, agentID uint) error
}

// Engine evaluates automation rules for domain events. It is stateless per
// call: rules are loaded fresh on every Run.
type Engine struct {
	db       *gorm.DB
	activity ActivityRecorder
	outbound Outbound
	notifier Notifier
}

func NewEngine(db *gorm.DB, activity ActivityRecorder, outbound Outbound, notifier Notifier) *Engine {
	return &Engine{
		db:       db,
		activity: activity,
		outbound: outbound,
		notifier: notifier,
	}
}

// Run fires automation for one domain event. One rule's failure never blocks
// the others and never propagates to the caller; failures are observable only
// through logs, metrics and activity records.
func (e *Engine) Run(trigger TriggerType, ctx *Context) {
	if ctx == nil {
		ctx = &Context{}
	}
	if ctx.execID == "" {
		ctx.execID = uuid.NewString()
	}
	if ctx.depth > MaxCascadeDepth {
		log.Printf("[%s] Automation cascade depth exceeded at trigger %s, stopping", ctx.execID, trigger)
		return
	}

	metrics.AutomationRuns.WithLabelValues(string(trigger)).Inc()

	var rules []models.AutomationRule
	err := e.db.Where("is_active = ? AND trigger_type = ?", true, string(trigger)).
		Order("id").Find(&rules).Error
	if err != nil {
		log.Printf("[%s] Failed to load automation rules for %s: %v", ctx.execID, trigger, err)
		return
	}

	for i := range rules {
		e.runRule(&rules[i], trigger, ctx)
	}
}

// runRule evaluates and executes one rule, isolating its failures.
func (e *Engine) runRule(rule *models.AutomationRule, trigger TriggerType, ctx *Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RuleFailures.Inc()
			log.Printf("[%s] Automation rule #%d (%s) panicked: %v", ctx.execID, rule.ID, rule.Name, r)
		}
	}()

	conditions, actions, err := ParseRule(rule)
	if err != nil {
		metrics.RuleFailures.Inc()
		log.Printf("[%s] Automation rule #%d has malformed definition: %v", ctx.execID, rule.ID, err)
		return
	}

	if !EvaluateConditions(conditions, ctx) {
		return
	}

	metrics.RulesMatched.WithLabelValues(string(trigger)).Inc()
	log.Printf("[%s] Automation rule #%d (%s) matched for trigger %s", ctx.execID, rule.ID, rule.Name, trigger)

	if err := e.executeActions(actions, ctx); err != nil {
		metrics.RuleFailures.Inc()
		log.Printf("[%s] Automation rule #%d failed: %v", ctx.execID, rule.ID, err)
	}
}

// ParseRule decodes a rule's persisted JSON condition and action lists.
func ParseRule(rule *models.AutomationRule) ([]Condition, []Action, error) {
	var conditions []Condition
	if rule.Conditions != "" {
		if err := json.Unmarshal([]byte(rule.Conditions), &conditions); err != nil {
			return nil, nil, fmt.Errorf("conditions: %w", err)
		}
	}

	var actions []Action
	if rule.Actions != "" {
		if err := json.Unmarshal([]byte(rule.Actions), &actions); err != nil {
			return nil, nil, fmt.Errorf("actions: %w", err)
		}
	}
	return conditions, actions, nil
}

// ValidateRule rejects malformed rule definitions at authoring time so they
// never reach the engine: unknown triggers, empty action lists, unknown
// action types, and `in` conditions without a sequence value.
func ValidateRule(triggerType string, conditionsJSON, actionsJSON []byte) error {
	if !ValidTrigger(triggerType) {
		return fmt.Errorf("unknown trigger type %q", triggerType)
	}

	var conditions []Condition
	if len(conditionsJSON) > 0 {
		if err := json.Unmarshal(conditionsJSON, &conditions); err != nil {
			return fmt.Errorf("invalid conditions: %w", err)
		}
	}
	for i, cond := range conditions {
		if cond.Field == "" {
			return fmt.Errorf("condition %d: field is required", i)
		}
		switch cond.Operator {
		case OpEqual, OpNotEqual, OpGreater, OpLess, OpContains:
		case OpIn:
			if _, ok := cond.Value.([]interface{}); !ok {
				return fmt.Errorf("condition %d: 'in' requires a sequence value", i)
			}
		default:
			return fmt.Errorf("condition %d: unknown operator %q", i, cond.Operator)
		}
	}

	var actions []Action
	if err := json.Unmarshal(actionsJSON, &actions); err != nil {
		return fmt.Errorf("invalid actions: %w", err)
	}
	if len(actions) == 0 {
		return fmt.Errorf("at least one action is required")
	}
	for i, action := range actions {
		if !actionTypes[action.Type] {
			return fmt.Errorf("action %d: unknown action type %q", i, action.Type)
		}
	}
	return nil
}
