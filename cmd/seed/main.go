package main

import (
	"log"

	"crm-backend/internal/auth"
	"crm-backend/internal/config"
	"crm-backend/internal/database"
	"crm-backend/internal/models"
)

// Seeds the default accounts and a starter automation rule set.
func main() {
	cfg := config.LoadConfig()
	database.Init(cfg)
	db := database.DB

	users := []struct {
		Name     string
		Email    string
		Password string
		Role     string
	}{
		{"Admin", "admin@crm.local", "password123", models.RoleAdmin},
		{"Sales Manager", "manager@crm.local", "password123", models.RoleManager},
		{"Agent One", "agent1@crm.local", "password123", models.RoleAgent},
		{"Agent Two", "agent2@crm.local", "password123", models.RoleAgent},
	}

	for _, u := range users {
		var existing models.User
		if err := db.Where("email = ?", u.Email).First(&existing).Error; err == nil {
			continue
		}
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		user := models.User{
			Name:     u.Name,
			Email:    u.Email,
			Password: hash,
			Role:     u.Role,
			IsActive: true,
		}
		if err := db.Create(&user).Error; err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.Email, err)
		}
		log.Printf("Seeded user %s (%s)", u.Email, u.Role)
	}

	rules := []models.AutomationRule{
		{
			Name:        "Follow up on new leads",
			Description: "Create a follow-up call task whenever a lead is created",
			TriggerType: "lead_created",
			Conditions:  `[]`,
			Actions:     `[{"type":"create_task","task_type":"call","title":"First contact call","delay_hours":2}]`,
			IsActive:    true,
		},
		{
			Name:        "Promote interested callers",
			Description: "Move leads to interested when a call ends with that outcome",
			TriggerType: "call_outcome",
			Conditions:  `[{"field":"outcome","operator":"=","value":"interested"}]`,
			Actions:     `[{"type":"change_status","status":"interested"}]`,
			IsActive:    true,
		},
		{
			Name:        "Revive silent leads",
			Description: "Ping leads that have had no contact for a week",
			TriggerType: "no_contact_days",
			Conditions:  `[{"field":"count","operator":">","value":7}]`,
			Actions:     `[{"type":"send_message","message":"Hi! Just checking in - are you still interested?"},{"type":"create_task","task_type":"call","title":"Re-engage lead"}]`,
			IsActive:    true,
		},
	}

	for _, rule := range rules {
		var existing models.AutomationRule
		if err := db.Where("name = ?", rule.Name).First(&existing).Error; err == nil {
			continue
		}
		if err := db.Create(&rule).Error; err != nil {
			log.Fatalf("Failed to seed rule %q: %v", rule.Name, err)
		}
		log.Printf("Seeded automation rule %q", rule.Name)
	}

	log.Println("Seeding complete")
}
