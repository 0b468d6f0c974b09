package scheduler

import (
	"log"
	"time"

	"crm-backend/internal/automation"
	"crm-backend/internal/metrics"
	"crm-backend/internal/models"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	reminderWindow = 30 * time.Minute
	overdueGrace   = 5 * time.Minute
)

// TaskNotifier delivers task reminder and overdue notifications.
type TaskNotifier interface {
	TaskReminder(task *models.Task) error
	TaskOverdue(task *models.Task) error
}

// ActivityRecorder records the audit entry for a missed task.
type ActivityRecorder interface {
	TaskMissed(task *models.Task)
}

// Sweeper runs the periodic task scans: upcoming reminders, overdue marking
// and stale-lead detection. Each scan isolates per-record failures.
type Sweeper struct {
	db       *gorm.DB
	notifier TaskNotifier
	activity ActivityRecorder
	engine   *automation.Engine

	// now is swappable for tests.
	now func() time.Time
}

func NewSweeper(db *gorm.DB, notifier TaskNotifier, activity ActivityRecorder, engine *automation.Engine) *Sweeper {
	return &Sweeper{
		db:       db,
		notifier: notifier,
		activity: activity,
		engine:   engine,
		now:      time.Now,
	}
}

// Start registers the sweeps with the cron scheduler: task scans every five
// minutes, stale-lead scan daily.
func (s *Sweeper) Start(c *cron.Cron) error {
	if _, err := c.AddFunc("@every 5m", func() {
		s.SweepReminders()
		s.SweepOverdue()
	}); err != nil {
		return err
	}
	_, err := c.AddFunc("@daily", func() {
		s.SweepStaleLeads()
	})
	return err
}

// SweepReminders notifies assignees of pending tasks due within the next 30
// minutes and marks them reminder_sent so a re-run cannot double-send.
// Returns the number of tasks processed.
func (s *Sweeper) SweepReminders() int {
	now := s.now()

	var upcoming []models.Task
	err := s.db.Where("status = ? AND reminder_sent = ? AND due_date BETWEEN ? AND ?",
		models.TaskStatusPending, false, now, now.Add(reminderWindow)).
		Find(&upcoming).Error
	if err != nil {
		log.Printf("Reminder sweep query failed: %v", err)
		return 0
	}

	processed := 0
	for i := range upcoming {
		task := &upcoming[i]
		if err := s.notifier.TaskReminder(task); err != nil {
			log.Printf("Failed to send reminder for task #%d: %v", task.ID, err)
			continue
		}
		if err := s.db.Model(task).Update("reminder_sent", true).Error; err != nil {
			log.Printf("Failed to mark reminder_sent for task #%d: %v", task.ID, err)
			continue
		}
		metrics.RemindersSent.Inc()
		log.Printf("Reminder sent for task #%d: %s", task.ID, task.Title)
		processed++
	}

	log.Printf("Processed %d upcoming task reminders", processed)
	return processed
}

// SweepOverdue marks pending tasks past due (with a 5 minute grace period)
// as missed, notifies the assignee, records the activity and fires the
// task_missed trigger. The status transition makes re-runs no-ops.
// Returns the number of tasks processed.
func (s *Sweeper) SweepOverdue() int {
	now := s.now()

	var overdue []models.Task
	err := s.db.Where("status = ? AND due_date < ?",
		models.TaskStatusPending, now.Add(-overdueGrace)).
		Find(&overdue).Error
	if err != nil {
		log.Printf("Overdue sweep query failed: %v", err)
		return 0
	}

	processed := 0
	for i := range overdue {
		task := &overdue[i]
		if err := s.db.Model(task).Update("status", models.TaskStatusMissed).Error; err != nil {
			log.Printf("Failed to mark task #%d missed: %v", task.ID, err)
			continue
		}
		task.Status = models.TaskStatusMissed

		if err := s.notifier.TaskOverdue(task); err != nil {
			log.Printf("Failed to notify overdue task #%d: %v", task.ID, err)
		}
		s.activity.TaskMissed(task)

		ctx := &automation.Context{Task: task}
		var lead models.Lead
		if err := s.db.First(&lead, task.LeadID).Error; err == nil {
			ctx.Lead = &lead
		}
		s.engine.Run(automation.TriggerTaskMissed, ctx)

		metrics.TasksMarkedMissed.Inc()
		log.Printf("Task #%d marked as missed", task.ID)
		processed++
	}

	log.Printf("Processed %d overdue tasks", processed)
	return processed
}

// SweepStaleLeads fires the no_contact_days trigger for open leads whose
// last contact is more than a day old. The context count carries the number
// of days without contact so rules can threshold on it.
func (s *Sweeper) SweepStaleLeads() int {
	now := s.now()

	var leads []models.Lead
	err := s.db.Where("status NOT IN ? AND last_contacted_at IS NOT NULL AND last_contacted_at < ?",
		[]string{models.LeadStatusConverted, models.LeadStatusLost}, now.Add(-24*time.Hour)).
		Find(&leads).Error
	if err != nil {
		log.Printf("Stale lead sweep query failed: %v", err)
		return 0
	}

	for i := range leads {
		lead := &leads[i]
		days := int(now.Sub(*lead.LastContactedAt).Hours() / 24)
		s.engine.Run(automation.TriggerNoContactDays, &automation.Context{
			Lead:  lead,
			Count: days,
		})
	}

	log.Printf("Processed %d stale leads", len(leads))
	return len(leads)
}
