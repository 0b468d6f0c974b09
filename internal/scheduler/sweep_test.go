package scheduler

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"crm-backend/internal/activity"
	"crm-backend/internal/automation"
	"crm-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeNotifier struct {
	reminders []uint
	overdue   []uint
	failFor   map[uint]bool
}

func (f *fakeNotifier) TaskReminder(task *models.Task) error {
	if f.failFor[task.ID] {
		return errors.New("delivery failed")
	}
	f.reminders = append(f.reminders, task.ID)
	return nil
}

func (f *fakeNotifier) TaskOverdue(task *models.Task) error {
	if f.failFor[task.ID] {
		return errors.New("delivery failed")
	}
	f.overdue = append(f.overdue, task.ID)
	return nil
}

func testSweeper(t *testing.T) (*Sweeper, *gorm.DB, *fakeNotifier) {
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

	recorder := activity.NewRecorder(db)
	engine := automation.NewEngine(db, recorder, nil, nil)
	notifier := &fakeNotifier{failFor: map[uint]bool{}}
	return NewSweeper(db, notifier, recorder, engine), db, notifier
}

func createTask(t *testing.T, db *gorm.DB, due time.Time, status string) models.Task {
	t.Helper()
	task := models.Task{
		LeadID:     1,
		AssignedTo: 1,
		Type:       "call",
		Title:      "Call back",
		DueDate:    due,
		Status:     status,
	}
	require.NoError(t, db.Create(&task).Error)
	return task
}

func TestSweepRemindersSendsOnceWithinWindow(t *testing.T) {
	sweeper, db, notifier := testSweeper(t)

	base := time.Now()
	dueAt := base.Add(20 * time.Minute)
	task := createTask(t, db, dueAt, models.TaskStatusPending)

	// run at T-20min: inside the 30 minute window
	sweeper.now = func() time.Time { return base }
	assert.Equal(t, 1, sweeper.SweepReminders())
	assert.Equal(t, []uint{task.ID}, notifier.reminders)

	var fresh models.Task
	require.NoError(t, db.First(&fresh, task.ID).Error)
	assert.True(t, fresh.ReminderSent)

	// run again at T-15min: already reminded, must be a no-op
	sweeper.now = func() time.Time { return base.Add(5 * time.Minute) }
	assert.Equal(t, 0, sweeper.SweepReminders())
	assert.Len(t, notifier.reminders, 1)
}

func TestSweepRemindersSkipsOutsideWindow(t *testing.T) {
	sweeper, db, notifier := testSweeper(t)

	now := time.Now()
	sweeper.now = func() time.Time { return now }

	createTask(t, db, now.Add(2*time.Hour), models.TaskStatusPending)   // too far out
	createTask(t, db, now.Add(-time.Hour), models.TaskStatusPending)    // already past
	createTask(t, db, now.Add(10*time.Minute), models.TaskStatusMissed) // wrong status

	assert.Equal(t, 0, sweeper.SweepReminders())
	assert.Empty(t, notifier.reminders)
}

func TestSweepReminderFailureIsolated(t *testing.T) {
	sweeper, db, notifier := testSweeper(t)

	now := time.Now()
	sweeper.now = func() time.Time { return now }

	failing := createTask(t, db, now.Add(10*time.Minute), models.TaskStatusPending)
	healthy := createTask(t, db, now.Add(15*time.Minute), models.TaskStatusPending)
	notifier.failFor[failing.ID] = true

	assert.Equal(t, 1, sweeper.SweepReminders())
	assert.Equal(t, []uint{healthy.ID}, notifier.reminders)

	// the failed task keeps reminder_sent=false so the next run retries it
	var fresh models.Task
	require.NoError(t, db.First(&fresh, failing.ID).Error)
	assert.False(t, fresh.ReminderSent)
}

func TestSweepOverdueMarksAndIsIdempotent(t *testing.T) {
	sweeper, db, notifier := testSweeper(t)

	now := time.Now()
	sweeper.now = func() time.Time { return now }

	overdue := createTask(t, db, now.Add(-time.Hour), models.TaskStatusPending)
	inGrace := createTask(t, db, now.Add(-2*time.Minute), models.TaskStatusPending)

	assert.Equal(t, 1, sweeper.SweepOverdue())
	assert.Equal(t, []uint{overdue.ID}, notifier.overdue)

	var fresh models.Task
	require.NoError(t, db.First(&fresh, overdue.ID).Error)
	assert.Equal(t, models.TaskStatusMissed, fresh.Status)

	var untouched models.Task
	require.NoError(t, db.First(&untouched, inGrace.ID).Error)
	assert.Equal(t, models.TaskStatusPending, untouched.Status)

	var missedActivities int64
	db.Model(&models.Activity{}).Where("type = ?", "task_missed").Count(&missedActivities)
	assert.EqualValues(t, 1, missedActivities)

	// second run: the missed task is excluded by the status filter
	assert.Equal(t, 0, sweeper.SweepOverdue())
	assert.Len(t, notifier.overdue, 1)
}

func TestSweepOverdueFiresTaskMissedTrigger(t *testing.T) {
	sweeper, db, notifier := testSweeper(t)

	now := time.Now()
	sweeper.now = func() time.Time { return now }

	lead := models.Lead{Name: "Acme", Status: "contacted"}
	require.NoError(t, db.Create(&lead).Error)

	rule := models.AutomationRule{
		Name:        "flag unresponsive leads",
		TriggerType: "task_missed",
		Conditions:  `[]`,
		Actions:     `[{"type":"change_status","status":"follow_up"}]`,
		IsActive:    true,
	}
	require.NoError(t, db.Create(&rule).Error)

	task := models.Task{
		LeadID:     lead.ID,
		AssignedTo: 1,
		Title:      "Call back",
		DueDate:    now.Add(-time.Hour),
		Status:     models.TaskStatusPending,
	}
	require.NoError(t, db.Create(&task).Error)

	assert.Equal(t, 1, sweeper.SweepOverdue())
	assert.Equal(t, []uint{task.ID}, notifier.overdue)

	var fresh models.Lead
	require.NoError(t, db.First(&fresh, lead.ID).Error)
	assert.Equal(t, "follow_up", fresh.Status)
}

func TestSweepStaleLeadsFiresNoContactTrigger(t *testing.T) {
	sweeper, db, _ := testSweeper(t)

	now := time.Now()
	sweeper.now = func() time.Time { return now }

	rule := models.AutomationRule{
		Name:        "revive silent leads",
		TriggerType: "no_contact_days",
		Conditions:  `[{"field":"count","operator":">","value":7}]`,
		Actions:     `[{"type":"create_task","task_type":"call","title":"Re-engage"}]`,
		IsActive:    true,
	}
	require.NoError(t, db.Create(&rule).Error)

	agent := uint(4)
	staleAt := now.Add(-10 * 24 * time.Hour)
	recentAt := now.Add(-2 * 24 * time.Hour)
	stale := models.Lead{Name: "Cold", Status: "contacted", AssignedTo: &agent, LastContactedAt: &staleAt}
	recent := models.Lead{Name: "Warm", Status: "contacted", AssignedTo: &agent, LastContactedAt: &recentAt}
	converted := models.Lead{Name: "Done", Status: models.LeadStatusConverted, AssignedTo: &agent, LastContactedAt: &staleAt}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Create(&recent).Error)
	require.NoError(t, db.Create(&converted).Error)

	processed := sweeper.SweepStaleLeads()
	assert.Equal(t, 2, processed, "stale and recent scanned, converted excluded")

	// only the lead over the 7 day threshold gets a task
	var tasks []models.Task
	require.NoError(t, db.Where("title = ?", "Re-engage").Find(&tasks).Error)
	require.Len(t, tasks, 1)
	assert.Equal(t, stale.ID, tasks[0].LeadID)
}
