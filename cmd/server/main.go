package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskhub/backend/internal/auth"
	"github.com/taskhub/backend/internal/config"
	"github.com/taskhub/backend/internal/database"
	"github.com/taskhub/backend/internal/handlers"
	"github.com/taskhub/backend/internal/mailer"
	"github.com/taskhub/backend/internal/middleware"
	"github.com/taskhub/backend/internal/repository"
	"github.com/taskhub/backend/internal/scheduler"
	"github.com/taskhub/backend/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Initialize logger
	var logger *zap.Logger
	var err error
	if cfg.GinMode == gin.ReleaseMode {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Connect to database and run migrations
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Repositories
	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Services
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiration, cfg.JWTIssuer)
	notifier := mailer.NewSMTPMailer(cfg)
	authService := services.NewAuthService(userRepo, jwtService)
	userService := services.NewUserService(userRepo)
	taskService := services.NewTaskService(taskRepo, userRepo, notifier, logger)
	analyticsService := services.NewAnalyticsService(taskRepo, userRepo)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	taskHandler := handlers.NewTaskHandler(taskService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)

	// Deadline reminder scheduler
	reminders := scheduler.NewReminderScheduler(taskRepo, userRepo, notifier, logger)
	if err := reminders.Start(cfg.ReminderSchedule); err != nil {
		logger.Fatal("failed to start reminder scheduler", zap.Error(err))
	}
	defer reminders.Stop()

	// Initialize Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API routes
	api := r.Group("/api")
	{
		users := api.Group("/users")
		{
			users.POST("/login", authHandler.Login)
			// OptionalAuth keeps the first-admin bootstrap path open while
			// the user table is empty; the handler enforces admin otherwise.
			users.POST("", middleware.OptionalAuth(authService), userHandler.CreateUser)

			authed := users.Group("", middleware.RequireAuth(authService))
			{
				authed.GET("/me", authHandler.Me)
				authed.PATCH("/update-me", userHandler.UpdateMe)
				authed.PATCH("/update-password", userHandler.UpdatePassword)
				authed.DELETE("/delete-me", userHandler.DeleteMe)

				admin := authed.Group("", middleware.RequireAdmin())
				{
					admin.GET("", userHandler.ListUsers)
					admin.GET("/:id", userHandler.GetUser)
					admin.PATCH("/:id", userHandler.UpdateUser)
					admin.DELETE("/:id", userHandler.DeactivateUser)
				}
			}
		}

		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth(authService))
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.GET("/calendar", taskHandler.Calendar)
			tasks.GET("/stats", taskHandler.TaskStats)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PATCH("/:id", taskHandler.UpdateTask)
			tasks.POST("/:id/comments", taskHandler.AddComment)
			tasks.POST("", middleware.RequireAdmin(), taskHandler.CreateTask)
			tasks.DELETE("/:id", middleware.RequireAdmin(), taskHandler.DeleteTask)
		}

		analytics := api.Group("/analytics")
		analytics.Use(middleware.RequireAuth(authService), middleware.RequireAdmin())
		{
			analytics.GET("/completion-stats", analyticsHandler.CompletionStats)
			analytics.GET("/task-trends", analyticsHandler.TaskTrends)
			analytics.GET("/workload-distribution", analyticsHandler.WorkloadDistribution)
			analytics.GET("/department-performance", analyticsHandler.DepartmentPerformance)
			analytics.GET("/user-performance", analyticsHandler.UserPerformance)
			analytics.GET("/priority-distribution", analyticsHandler.PriorityDistribution)
			analytics.GET("/overdue-analysis", analyticsHandler.OverdueAnalysis)
		}
	}

	// Start server
	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
