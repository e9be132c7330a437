package main

import (
	"context"

	"github.com/classtask/taskmaster/backend/internal/config"
	"github.com/classtask/taskmaster/backend/internal/handlers"
	"github.com/classtask/taskmaster/backend/internal/models"
	"github.com/classtask/taskmaster/backend/internal/services"
	"github.com/classtask/taskmaster/backend/internal/storage"
	"github.com/classtask/taskmaster/backend/internal/utils"
	"github.com/classtask/taskmaster/backend/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg       *config.Config
	store     storage.BlobStore
	taskQueue services.TaskQueue
	worker    *services.Worker
	scheduler *services.SchedulerService

	authHandler        *handlers.AuthHandler
	projectHandler     *handlers.ProjectHandler
	submissionHandler  *handlers.SubmissionHandler
	groupHandler       *handlers.GroupHandler
	leaderboardHandler *handlers.LeaderboardHandler
	eventsHandler      *handlers.EventsHandler
	systemLogHandler   *handlers.SystemLogHandler
}

// bootstrap initializes all application dependencies: database, storage,
// queue, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	db := models.GetDB()

	// Initialize system logger
	services.InitSystemLogger(db)

	// Blob storage for file submissions
	store, err := storage.New(context.Background(), &cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize blob storage: %v", err)
	}

	// Submission processing queue (Redis if enabled, otherwise sync mode)
	processor := services.ProcessSubmissionJob(db)
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(processor)
	}

	// Start async worker if Redis is enabled
	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(processor)
			worker.Start()
		}
	}

	// Due-date reminders and log retention
	scheduler := services.NewSchedulerService(db, cfg.Log.RetentionDays)
	scheduler.StartScheduler()

	return &appServices{
		cfg:       cfg,
		store:     store,
		taskQueue: taskQueue,
		worker:    worker,
		scheduler: scheduler,

		authHandler:        handlers.NewAuthHandler(db, cfg),
		projectHandler:     handlers.NewProjectHandler(db),
		submissionHandler:  handlers.NewSubmissionHandler(db, store, taskQueue),
		groupHandler:       handlers.NewGroupHandler(db),
		leaderboardHandler: handlers.NewLeaderboardHandler(db),
		eventsHandler:      handlers.NewEventsHandler(services.GetEventHub()),
		systemLogHandler:   handlers.NewSystemLogHandler(db),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.StopScheduler()
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
