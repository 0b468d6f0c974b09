package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AutomationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_automation_runs_total",
		Help: "Total number of automation engine invocations, labelled by trigger.",
	}, []string{"trigger"})

	RulesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_automation_rules_matched_total",
		Help: "Total number of rule matches, labelled by trigger.",
	}, []string{"trigger"})

	RuleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_automation_rule_failures_total",
		Help: "Total number of rule executions that failed and were isolated.",
	})

	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_automation_actions_executed_total",
		Help: "Total number of actions executed, labelled by type and status.",
	}, []string{"action_type", "status"})

	RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_task_reminders_sent_total",
		Help: "Total number of task reminders sent by the sweep.",
	})

	TasksMarkedMissed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_tasks_marked_missed_total",
		Help: "Total number of tasks marked missed by the overdue sweep.",
	})

	OutboundEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_outbound_messages_enqueued_total",
		Help: "Total number of outbound messages placed on the send queue.",
	})

	OutboundDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_outbound_messages_dropped_total",
		Help: "Total number of outbound messages rejected due to a full queue.",
	})

	OutboundSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_outbound_message_sends_total",
		Help: "Total number of outbound send attempts, labelled by result.",
	}, []string{"result"})
)
