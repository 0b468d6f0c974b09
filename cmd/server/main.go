package main

import (
	"log"

	"crm-backend/internal/activity"
	"crm-backend/internal/api"
	"crm-backend/internal/auth"
	"crm-backend/internal/automation"
	"crm-backend/internal/config"
	"crm-backend/internal/database"
	"crm-backend/internal/models"
	"crm-backend/internal/notify"
	"crm-backend/internal/queue"
	"crm-backend/internal/scheduler"
	"crm-backend/internal/webhook"
	"crm-backend/internal/whatsapp"
	"crm-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.LoadConfig()
	database.Init(cfg)
	db := database.DB

	hub := ws.NewHub()
	go hub.Run()

	recorder := activity.NewRecorder(db)
	notifier := notify.NewService(db, hub)
	waClient := whatsapp.NewClient(db, cfg)

	dispatcher := queue.NewDispatcher(waClient, cfg.QueueSize, cfg.SendAttempts)
	dispatcher.Start(1)
	defer dispatcher.Stop()

	engine := automation.NewEngine(db, recorder, dispatcher, notifier)

	sweeper := scheduler.NewSweeper(db, notifier, recorder, engine)
	c := cron.New()
	if err := sweeper.Start(c); err != nil {
		log.Fatalf("Failed to register sweeps: %v", err)
	}
	c.Start()
	defer c.Stop()

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	authHandler := api.NewAuthHandler(db, cfg.JWTSecret)
	leadHandler := api.NewLeadHandler(db, engine, recorder, notifier)
	taskHandler := api.NewTaskHandler(db, recorder)
	callHandler := api.NewCallLogHandler(db, engine, recorder)
	ruleHandler := api.NewRuleHandler(db)
	activityHandler := api.NewActivityHandler(db)
	userHandler := api.NewUserHandler(db)
	notificationHandler := api.NewNotificationHandler(db)
	whatsappHandler := api.NewWhatsAppHandler(db, dispatcher, recorder)
	dashboardHandler := api.NewDashboardHandler(db)
	webhookHandler := webhook.NewHandler(db, cfg)

	// Webhook Routes (unauthenticated, verified by token)
	r.GET("/webhook", webhookHandler.Verify)
	r.POST("/webhook", webhookHandler.Receive)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/api/auth/login", authHandler.Login)

	apiGroup := r.Group("/api")
	apiGroup.Use(auth.RequireAuth(db, cfg.JWTSecret))
	{
		apiGroup.POST("/auth/logout", authHandler.Logout)
		apiGroup.GET("/auth/me", authHandler.Me)

		apiGroup.GET("/leads", leadHandler.GetLeads)
		apiGroup.POST("/leads", leadHandler.CreateLead)
		apiGroup.GET("/leads/:id", leadHandler.GetLead)
		apiGroup.PUT("/leads/:id", leadHandler.UpdateLead)
		apiGroup.POST("/leads/:id/status", leadHandler.UpdateStatus)
		apiGroup.POST("/leads/:id/notes", leadHandler.AddNote)
		apiGroup.GET("/leads/:id/messages", whatsappHandler.GetConversation)

		apiGroup.GET("/tasks", taskHandler.GetTasks)
		apiGroup.POST("/tasks", taskHandler.CreateTask)
		apiGroup.POST("/tasks/:id/complete", taskHandler.CompleteTask)
		apiGroup.DELETE("/tasks/:id", taskHandler.DeleteTask)

		apiGroup.GET("/calls", callHandler.GetCallLogs)
		apiGroup.POST("/calls", callHandler.CreateCallLog)

		apiGroup.GET("/activities", activityHandler.GetActivities)

		apiGroup.GET("/notifications", notificationHandler.GetNotifications)
		apiGroup.POST("/notifications/:id/read", notificationHandler.MarkRead)
		apiGroup.POST("/notifications/read-all", notificationHandler.MarkAllRead)

		apiGroup.POST("/whatsapp/send", whatsappHandler.SendMessage)

		apiGroup.GET("/dashboard/stats", dashboardHandler.GetStats)

		apiGroup.GET("/users/agents", userHandler.GetAgents)

		apiGroup.GET("/ws", func(c *gin.Context) {
			user := auth.CurrentUser(c)
			hub.ServeWs(c.Writer, c.Request, user.ID)
		})

		// Manager and admin surfaces
		managerGroup := apiGroup.Group("")
		managerGroup.Use(auth.RequireRole(models.RoleAdmin, models.RoleManager))
		{
			managerGroup.POST("/leads/:id/assign", leadHandler.AssignLead)
			managerGroup.DELETE("/leads/:id", leadHandler.DeleteLead)

			managerGroup.GET("/automation/rules", ruleHandler.GetRules)
			managerGroup.POST("/automation/rules", ruleHandler.CreateRule)
			managerGroup.PUT("/automation/rules/:id", ruleHandler.UpdateRule)
			managerGroup.POST("/automation/rules/:id/toggle", ruleHandler.ToggleRule)
			managerGroup.DELETE("/automation/rules/:id", ruleHandler.DeleteRule)
		}

		adminGroup := apiGroup.Group("/users")
		adminGroup.Use(auth.RequireRole(models.RoleAdmin))
		{
			adminGroup.GET("", userHandler.GetUsers)
			adminGroup.POST("", userHandler.CreateUser)
			adminGroup.PUT("/:id", userHandler.UpdateUser)
		}
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
