package main

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/yukikurage/content-pipeline/internal/config"
	"github.com/yukikurage/content-pipeline/internal/constants"
	"github.com/yukikurage/content-pipeline/internal/database"
	"github.com/yukikurage/content-pipeline/internal/handlers"
	"github.com/yukikurage/content-pipeline/internal/lock"
	"github.com/yukikurage/content-pipeline/internal/logging"
	"github.com/yukikurage/content-pipeline/internal/middleware"
	"github.com/yukikurage/content-pipeline/internal/realtime"
	"github.com/yukikurage/content-pipeline/internal/repository"
	"github.com/yukikurage/content-pipeline/internal/services"
	"gorm.io/gorm"
)

// app holds the wired services of one process
type app struct {
	cfg       *config.Config
	hub       *realtime.Hub
	auth      *services.AuthService
	channels  *services.ChannelService
	tasks     *services.TaskService
	analytics *services.AnalyticsService
}

func newApp(cfg *config.Config, db *gorm.DB) *app {
	database.SetDB(db)

	userRepo := repository.NewUserRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	locks := lock.NewRegistry()

	// Initialize AI service
	var generator services.TaskGenerator
	if cfg.OpenAIAPIKey != "" {
		generator = services.NewAIService(cfg.OpenAIAPIKey)
	}

	a := &app{
		cfg:  cfg,
		hub:  realtime.NewHub(),
		auth: services.NewAuthService(userRepo),
		channels: services.NewChannelService(
			channelRepo,
			taskRepo,
			userRepo,
			locks,
		),
		tasks: services.NewTaskService(
			taskRepo,
			channelRepo,
			repository.NewStageEventRepository(db),
			repository.NewCompletedTaskRepository(db),
			locks,
			generator,
		),
		analytics: services.NewAnalyticsService(repository.NewSnapshotRepository(db)),
	}
	a.channels.SetNotifier(a.hub)
	a.tasks.SetNotifier(a.hub)

	return a
}

// sessionStore uses Redis when REDIS_HOST is set and signed cookies otherwise
func (a *app) sessionStore() (sessions.Store, error) {
	var store sessions.Store
	if a.cfg.RedisHost != "" {
		redisAddr := a.cfg.RedisHost + ":" + a.cfg.RedisPort
		rs, err := redisStore.NewStore(
			10,        // Redis pool size
			"tcp",     // network type
			redisAddr, // Redis address from config
			"",        // username (empty for default user)
			"",        // password (empty = no password)
			[]byte(a.cfg.SessionSecret),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
		store = rs
	} else {
		logging.Logger.Warn("REDIS_HOST not set, using cookie sessions")
		store = cookie.NewStore([]byte(a.cfg.SessionSecret))
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   a.cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

// handler builds the router wrapped in CORS
func (a *app) handler() (http.Handler, error) {
	store, err := a.sessionStore()
	if err != nil {
		return nil, err
	}

	gin.SetMode(a.cfg.GinMode)
	r := a.router(store)

	c := cors.New(cors.Options{
		AllowedOrigins:   a.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(r), nil
}

func (a *app) router(store sessions.Store) *gin.Engine {
	r := gin.Default()
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(a.auth)
	channelHandler := handlers.NewChannelHandler(a.channels)
	taskHandler := handlers.NewTaskHandler(a.tasks, a.channels)
	analyticsHandler := handlers.NewAnalyticsHandler(a.analytics)
	wsHandler := handlers.NewWSHandler(a.hub, realtime.NewUpgrader(a.cfg.CORSOrigins), a.channels)

	requireAuth := middleware.RequireAuth(a.auth)
	channelAccess := middleware.RequireChannelAccess(a.channels)
	channelManager := middleware.RequireChannelManager()
	taskAccess := middleware.RequireTaskAccess(a.tasks, a.channels)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Content Pipeline API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", requireAuth, authHandler.GetCurrentUser)
		}

		api.PATCH("/users/:id/role", requireAuth, authHandler.SetRole)

		// Channel routes (protected)
		channels := api.Group("/channels")
		channels.Use(requireAuth)
		{
			channels.POST("", channelHandler.CreateChannel)
			channels.GET("", channelHandler.ListChannels)
			channels.GET("/:id", channelAccess, channelHandler.GetChannel)
			channels.PATCH("/:id", channelAccess, channelManager, channelHandler.UpdateChannel)
			channels.DELETE("/:id", channelAccess, channelManager, channelHandler.DeleteChannel)

			channels.POST("/:id/columns", channelAccess, channelManager, channelHandler.AddColumn)
			channels.PUT("/:id/columns/order", channelAccess, channelManager, channelHandler.ReorderColumns)
			channels.PATCH("/:id/columns/:column_id", channelAccess, channelManager, channelHandler.RenameColumn)
			channels.DELETE("/:id/columns/:column_id", channelAccess, channelManager, channelHandler.DeleteColumn)

			channels.POST("/:id/fields", channelAccess, channelManager, channelHandler.AddCustomField)
			channels.PATCH("/:id/fields/:field_id", channelAccess, channelManager, channelHandler.UpdateCustomField)
			channels.DELETE("/:id/fields/:field_id", channelAccess, channelManager, channelHandler.DeleteCustomField)

			channels.PUT("/:id/assignments", channelAccess, channelManager, channelHandler.SetColumnAssignments)
			channels.POST("/:id/members", channelAccess, channelManager, channelHandler.AddMember)
			channels.DELETE("/:id/members/:user_id", channelAccess, channelManager, channelHandler.RemoveMember)

			channels.GET("/:id/tasks", channelAccess, taskHandler.ListTasks)
			channels.POST("/:id/tasks", channelAccess, taskHandler.CreateTask)
			channels.POST("/:id/tasks/generate", channelAccess, taskHandler.GenerateTasks)
			channels.GET("/:id/completed", channelAccess, taskHandler.ListCompletedTasks)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("/:id", taskAccess, taskHandler.GetTask)
			tasks.PATCH("/:id", taskAccess, taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskAccess, taskHandler.DeleteTask)
			tasks.POST("/:id/advance", taskAccess, taskHandler.AdvanceTask)
			tasks.POST("/:id/move", taskAccess, taskHandler.MoveTask)
			tasks.POST("/:id/complete", taskAccess, taskHandler.CompleteTask)
			// History outlives the task, so access is checked in the handler
			tasks.GET("/:id/events", taskHandler.ListStageEvents)
		}

		api.GET("/analytics", requireAuth, analyticsHandler.GetAnalytics)
		api.GET("/ws", requireAuth, wsHandler.Subscribe)
	}

	return r
}
