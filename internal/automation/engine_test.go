package automation

import (
	"fmt"
	"testing"
	"time"

	"crm-backend/internal/activity"
	"crm-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Lead{},
		&models.Task{},
		&models.Activity{},
		&models.AutomationRule{},
	))
	return db
}

type fakeOutbound struct {
	sent []string
}

func (f *fakeOutbound) EnqueueMessage(leadID uint, message string, sentBy *uint) bool {
	f.sent = append(f.sent, message)
	return true
}

func testEngine(t *testing.T) (*Engine, *gorm.DB, *fakeOutbound) {
	t.Helper()
	db := testDB(t)
	outbound := &fakeOutbound{}
	engine := NewEngine(db, activity.NewRecorder(db), outbound, nil)
	return engine, db, outbound
}

func createRule(t *testing.T, db *gorm.DB, trigger, conditions, actions string) models.AutomationRule {
	t.Helper()
	rule := models.AutomationRule{
		Name:        "test rule",
		TriggerType: trigger,
		Conditions:  conditions,
		Actions:     actions,
		IsActive:    true,
	}
	require.NoError(t, db.Create(&rule).Error)
	return rule
}

func TestRunCreatesTaskForNewLead(t *testing.T) {
	engine, db, _ := testEngine(t)

	createRule(t, db, "lead_created", "[]",
		`[{"type":"create_task","delay_hours":2,"task_type":"call"}]`)

	lead := models.Lead{Name: "Acme", Status: "new", AssignedTo: uintPtr(7), CreatedBy: 1}
	require.NoError(t, db.Create(&lead).Error)

	engine.Run(TriggerLeadCreated, &Context{Lead: &lead})

	var tasks []models.Task
	require.NoError(t, db.Find(&tasks).Error)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, uint(7), task.AssignedTo)
	assert.Equal(t, "call", task.Type)
	assert.Equal(t, "Follow up", task.Title)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), task.DueDate, time.Minute)

	var created models.Activity
	require.NoError(t, db.Where("type = ?", "task_created").First(&created).Error)
}

func TestRunSkipsInactiveAndOtherTriggers(t *testing.T) {
	engine, db, _ := testEngine(t)

	inactive := createRule(t, db, "lead_created", "[]", `[{"type":"create_task"}]`)
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)
	createRule(t, db, "call_outcome", "[]", `[{"type":"create_task"}]`)

	lead := models.Lead{Name: "Acme", AssignedTo: uintPtr(1)}
	require.NoError(t, db.Create(&lead).Error)

	engine.Run(TriggerLeadCreated, &Context{Lead: &lead})

	var count int64
	db.Model(&models.Task{}).Count(&count)
	assert.Zero(t, count)
}

func TestConditionsGateActions(t *testing.T) {
	engine, db, _ := testEngine(t)

	createRule(t, db, "call_outcome",
		`[{"field":"outcome","operator":"=","value":"interested"}]`,
		`[{"type":"change_status","status":"interested"}]`)

	lead := models.Lead{Name: "Acme", Status: "contacted"}
	require.NoError(t, db.Create(&lead).Error)

	engine.Run(TriggerCallOutcome, &Context{Lead: &lead, Outcome: "not_interested"})
	var fresh models.Lead
	require.NoError(t, db.First(&fresh, lead.ID).Error)
	assert.Equal(t, "contacted", fresh.Status)

	engine.Run(TriggerCallOutcome, &Context{Lead: &lead, Outcome: "interested"})
	require.NoError(t, db.First(&fresh, lead.ID).Error)
	assert.Equal(t, "interested", fresh.Status)

	var statusActivities int64
	db.Model(&models.Activity{}).Where("type = ?", "lead_status_changed").Count(&statusActivities)
	assert.EqualValues(t, 1, statusActivities)
}

func TestRuleFailureIsIsolated(t *testing.T) {
	engine, db, _ := testEngine(t)

	// first rule has malformed actions and fails during parsing
	createRule(t, db, "lead_created", "[]", `{"type":"create_task"`)
	createRule(t, db, "lead_created", "[]", `[{"type":"create_task"}]`)

	lead := models.Lead{Name: "Acme", AssignedTo: uintPtr(2)}
	require.NoError(t, db.Create(&lead).Error)

	engine.Run(TriggerLeadCreated, &Context{Lead: &lead})

	var count int64
	db.Model(&models.Task{}).Count(&count)
	assert.EqualValues(t, 1, count, "second rule must still run")
}

func TestPanicDuringActionIsIsolated(t *testing.T) {
	db := testDB(t)
	outbound := &fakeOutbound{}
	// nil recorder makes create_task panic after inserting the task
	engine := NewEngine(db, nil, outbound, nil)

	createRule(t, db, "lead_created", "[]", `[{"type":"create_task"}]`)
	createRule(t, db, "lead_created", "[]", `[{"type":"send_message","message":"still here"}]`)

	lead := models.Lead{Name: "Acme", Phone: "+10000000001", AssignedTo: uintPtr(2)}
	require.NoError(t, db.Create(&lead).Error)

	engine.Run(TriggerLeadCreated, &Context{Lead: &lead})

	assert.Equal(t, []string{"still here"}, outbound.sent, "second rule must run despite the panic")
}

func TestUnknownActionTypeIsSkipped(t *testing.T) {
	engine, db, _ := testEngine(t)

	createRule(t, db, "lead_created", "[]",
		`[{"type":"launch_rocket"},{"type":"create_task"}]`)

	lead := models.Lead{Name: "Acme", AssignedTo: uintPtr(2)}
	require.NoError(t, db.Create(&lead).Error)

	engine.Run(TriggerLeadCreated, &Context{Lead: &lead})

	var count int64
	db.Model(&models.Task{}).Count(&count)
	assert.EqualValues(t, 1, count, "unknown action must not abort the rule")
}

func TestRoundRobinWithNoAgentsIsNoop(t *testing.T) {
	engine, db, _ := testEngine(t)

	createRule(t, db, "lead_created", "[]",
		`[{"type":"assign_lead","strategy":"round_robin"}]`)

	lead := models.Lead{Name: "Acme"}
	require.NoError(t, db.Create(&lead).Error)

	engine.Run(TriggerLeadCreated, &Context{Lead: &lead})

	var fresh models.Lead
	require.NoError(t, db.First(&fresh, lead.ID).Error)
	assert.Nil(t, fresh.AssignedTo)
}

func TestRoundRobinPicksActiveAgent(t *testing.T) {
	engine, db, _ := testEngine(t)

	agent := models.User{Name: "Agent", Email: "a@x", Password: "x", Role: models.RoleAgent, IsActive: true}
	require.NoError(t, db.Create(&agent).Error)
	inactive := models.User{Name: "Gone", Email: "g@x", Password: "x", Role: models.RoleAgent, IsActive: false}
	require.NoError(t, db.Create(&inactive).Error)

	createRule(t, db, "lead_created", "[]",
		`[{"type":"assign_lead","strategy":"round_robin"}]`)

	lead := models.Lead{Name: "Acme"}
	require.NoError(t, db.Create(&lead).Error)

	engine.Run(TriggerLeadCreated, &Context{Lead: &lead})

	var fresh models.Lead
	require.NoError(t, db.First(&fresh, lead.ID).Error)
	require.NotNil(t, fresh.AssignedTo)
	assert.Equal(t, agent.ID, *fresh.AssignedTo)

	var assigned models.Activity
	require.NoError(t, db.Where("type = ?", "lead_assigned").First(&assigned).Error)
}

func TestSendMessageRequiresPhone(t *testing.T) {
	engine, db, outbound := testEngine(t)

	createRule(t, db, "lead_created", "[]",
		`[{"type":"send_message","message":"hello"}]`)

	noPhone := models.Lead{Name: "Silent"}
	require.NoError(t, db.Create(&noPhone).Error)
	engine.Run(TriggerLeadCreated, &Context{Lead: &noPhone})
	assert.Empty(t, outbound.sent)

	withPhone := models.Lead{Name: "Chatty", Phone: "+10000000001"}
	require.NoError(t, db.Create(&withPhone).Error)
	engine.Run(TriggerLeadCreated, &Context{Lead: &withPhone})
	assert.Equal(t, []string{"hello"}, outbound.sent)
}

func TestStatusChangeCascadesToStatusTrigger(t *testing.T) {
	engine, db, _ := testEngine(t)

	createRule(t, db, "call_outcome",
		`[{"field":"outcome","operator":"=","value":"interested"}]`,
		`[{"type":"change_status","status":"interested"}]`)
	createRule(t, db, "lead_status_changed",
		`[{"field":"new_status","operator":"=","value":"interested"}]`,
		`[{"type":"create_task","task_type":"meeting","title":"Book a demo"}]`)

	lead := models.Lead{Name: "Acme", Status: "contacted", AssignedTo: uintPtr(3)}
	require.NoError(t, db.Create(&lead).Error)

	engine.Run(TriggerCallOutcome, &Context{Lead: &lead, Outcome: "interested"})

	var task models.Task
	require.NoError(t, db.Where("title = ?", "Book a demo").First(&task).Error)
	assert.Equal(t, "meeting", task.Type)
}

func TestCascadeDepthGuardStopsRuleLoops(t *testing.T) {
	engine, db, _ := testEngine(t)

	// two rules that flip the status back and forth forever
	createRule(t, db, "lead_status_changed",
		`[{"field":"new_status","operator":"=","value":"interested"}]`,
		`[{"type":"change_status","status":"follow_up"}]`)
	createRule(t, db, "lead_status_changed",
		`[{"field":"new_status","operator":"=","value":"follow_up"}]`,
		`[{"type":"change_status","status":"interested"}]`)

	lead := models.Lead{Name: "Acme", Status: "new"}
	require.NoError(t, db.Create(&lead).Error)

	done := make(chan struct{})
	go func() {
		engine.Run(TriggerLeadStatusChanged, &Context{
			Lead: &lead, OldStatus: "new", NewStatus: "interested",
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cascade did not terminate")
	}

	var changes int64
	db.Model(&models.Activity{}).Where("type = ?", "lead_status_changed").Count(&changes)
	assert.LessOrEqual(t, changes, int64(MaxCascadeDepth+1))
	assert.Positive(t, changes)
}

func TestValidateRule(t *testing.T) {
	valid := []byte(`[{"type":"create_task"}]`)

	assert.NoError(t, ValidateRule("lead_created", nil, valid))
	assert.NoError(t, ValidateRule("call_outcome",
		[]byte(`[{"field":"outcome","operator":"in","value":["interested","callback"]}]`), valid))

	assert.Error(t, ValidateRule("lead_teleported", nil, valid), "unknown trigger")
	assert.Error(t, ValidateRule("lead_created", nil, []byte(`[]`)), "empty actions")
	assert.Error(t, ValidateRule("lead_created", nil, []byte(`[{"type":"launch_rocket"}]`)), "unknown action")
	assert.Error(t, ValidateRule("lead_created",
		[]byte(`[{"field":"outcome","operator":"in","value":"interested"}]`), valid), "in without sequence")
	assert.Error(t, ValidateRule("lead_created",
		[]byte(`[{"operator":"=","value":"x"}]`), valid), "missing field")
	assert.Error(t, ValidateRule("lead_created",
		[]byte(`[{"field":"outcome","operator":"~","value":"x"}]`), valid), "unknown operator")
}
