package models

import (
	"time"
)

// User roles
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleAgent   = "agent"
)

// Lead statuses
const (
	LeadStatusNew        = "new"
	LeadStatusContacted  = "contacted"
	LeadStatusFollowUp   = "follow_up"
	LeadStatusInterested = "interested"
	LeadStatusConverted  = "converted"
	LeadStatusLost       = "lost"
)

// Task statuses
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusMissed    = "missed"
)

// User represents a CRM user (admin, manager or agent)
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Role      string    `gorm:"type:varchar(20);not null;default:agent" json:"role"`
	Phone     string    `gorm:"type:varchar(30)" json:"phone"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Lead represents a sales lead
type Lead struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"type:varchar(255);not null" json:"name"`
	Phone           string     `gorm:"type:varchar(30);index" json:"phone"`
	Email           string     `gorm:"type:varchar(255)" json:"email"`
	Source          string     `gorm:"type:varchar(100)" json:"source"`
	Status          string     `gorm:"type:varchar(30);index;default:new" json:"status"`
	Budget          float64    `json:"budget"`
	Notes           string     `gorm:"type:text" json:"notes"`
	AssignedTo      *uint      `gorm:"index" json:"assigned_to"`
	CreatedBy       uint       `json:"created_by"`
	LastContactedAt *time.Time `json:"last_contacted_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// Task represents a follow-up task attached to a lead
type Task struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	LeadID       uint       `gorm:"index;not null" json:"lead_id"`
	AssignedTo   uint       `gorm:"index;not null" json:"assigned_to"`
	CreatedBy    uint       `json:"created_by"`
	Type         string     `gorm:"type:varchar(30);default:follow_up" json:"type"`
	Title        string     `gorm:"type:varchar(255);not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	DueDate      time.Time  `gorm:"index;not null" json:"due_date"`
	Status       string     `gorm:"type:varchar(20);index;default:pending" json:"status"`
	ReminderSent bool       `gorm:"default:false" json:"reminder_sent"`
	CompletedAt  *time.Time `json:"completed_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

// CallLog represents a logged call against a lead
type CallLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	LeadID          uint      `gorm:"index;not null" json:"lead_id"`
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	Outcome         string    `gorm:"type:varchar(30);not null" json:"outcome"`
	DurationSeconds int       `json:"duration_seconds"`
	Notes           string    `gorm:"type:text" json:"notes"`
	CalledAt        time.Time `gorm:"not null" json:"called_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CallLog) TableName() string {
	return "call_logs"
}

// Activity is an append-only audit record of a domain event
type Activity struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	LeadID      *uint     `gorm:"index" json:"lead_id"`
	UserID      *uint     `gorm:"index" json:"user_id"`
	Type        string    `gorm:"type:varchar(50);index;not null" json:"type"`
	Description string    `gorm:"type:text" json:"description"`
	Properties  string    `gorm:"type:text" json:"properties"` // JSON
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Activity) TableName() string {
	return "activities"
}

// AutomationRule represents a trigger/condition/action automation rule
type AutomationRule struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	TriggerType string    `gorm:"type:varchar(50);index;not null" json:"trigger_type"`
	Conditions  string    `gorm:"type:text" json:"conditions"` // JSON conditions
	Actions     string    `gorm:"type:text" json:"actions"`    // JSON actions
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedBy   uint      `json:"created_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AutomationRule) TableName() string {
	return "automation_rules"
}

// WhatsAppMessage represents an inbound or outbound WhatsApp message
type WhatsAppMessage struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	LeadID            uint      `gorm:"index;not null" json:"lead_id"`
	SentBy            *uint     `json:"sent_by"`
	Direction         string    `gorm:"type:varchar(10);not null" json:"direction"`
	Message           string    `gorm:"type:text" json:"message"`
	Status            string    `gorm:"type:varchar(20);default:pending" json:"status"`
	WhatsAppMessageID string    `gorm:"column:whatsapp_message_id;type:varchar(255);index" json:"whatsapp_message_id"`
	Metadata          string    `gorm:"type:text" json:"metadata"` // JSON
	SentAt            time.Time `json:"sent_at"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (WhatsAppMessage) TableName() string {
	return "whatsapp_messages"
}

// Notification is an in-app notification for a user
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	Type      string     `gorm:"type:varchar(50);not null" json:"type"`
	Title     string     `gorm:"type:varchar(255);not null" json:"title"`
	Body      string     `gorm:"type:text" json:"body"`
	Data      string     `gorm:"type:text" json:"data"` // JSON
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
