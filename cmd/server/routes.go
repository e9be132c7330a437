package main

import (
	"github.com/classtask/taskmaster/backend/internal/middleware"
	"github.com/classtask/taskmaster/backend/internal/storage"
	"github.com/classtask/taskmaster/backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for credential endpoints
	authLimiter := middleware.NewCredentialLimiter()

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "taskmaster"})
	})

	// Local storage downloads
	if local, ok := svc.store.(*storage.LocalStore); ok {
		r.Static("/uploads", local.Dir())
	}

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// SSE change events (public route with internal token validation)
		api.GET("/events", svc.eventsHandler.Stream)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			// Session
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.PUT("/auth/me", svc.authHandler.UpdateProfile)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.PUT("/auth/password", svc.authHandler.ChangePassword)

			// Projects and tasks (role-scoped reads inside the service)
			protected.GET("/projects", svc.projectHandler.List)
			protected.GET("/projects/:id", svc.projectHandler.Get)
			protected.POST("/tasks/:id/toggle", svc.projectHandler.ToggleTask)

			// Submissions
			protected.POST("/tasks/:id/submissions", svc.submissionHandler.Submit)
			protected.GET("/tasks/:id/submissions", svc.submissionHandler.List)

			// Groups (read)
			protected.GET("/groups", svc.groupHandler.List)
			protected.GET("/groups/mine", svc.groupHandler.Mine)
			protected.GET("/groups/:id", svc.groupHandler.Get)

			// Leaderboard
			protected.GET("/leaderboard", svc.leaderboardHandler.Ranking)
			protected.GET("/leaderboard/activity", svc.leaderboardHandler.Activity)
		}

		// Teacher only routes
		teacher := api.Group("")
		teacher.Use(middleware.AuthRequired(), middleware.TeacherRequired(), middleware.AuditLog())
		{
			// Projects (write)
			teacher.POST("/projects", svc.projectHandler.Create)
			teacher.PUT("/projects/:id", svc.projectHandler.Update)
			teacher.DELETE("/projects/:id", svc.projectHandler.Delete)

			// Tasks (write)
			teacher.POST("/projects/:id/tasks", svc.projectHandler.AddTask)
			teacher.PUT("/tasks/:id", svc.projectHandler.UpdateTask)
			teacher.DELETE("/tasks/:id", svc.projectHandler.DeleteTask)

			// Reviews
			teacher.PUT("/submissions/:id/review", svc.submissionHandler.Review)
			teacher.PUT("/submissions/:id/feedback", svc.submissionHandler.AddFeedback)

			// Groups (write)
			teacher.POST("/groups", svc.groupHandler.Create)
			teacher.PUT("/groups/:id", svc.groupHandler.Rename)
			teacher.DELETE("/groups/:id", svc.groupHandler.Delete)
			teacher.POST("/groups/:id/members", svc.groupHandler.AddMember)
			teacher.DELETE("/groups/:id/members/:studentId", svc.groupHandler.RemoveMember)

			// Student roster
			teacher.GET("/students", svc.authHandler.ListStudents)

			// Audit trail
			teacher.GET("/logs", svc.systemLogHandler.List)
			teacher.GET("/logs/modules", svc.systemLogHandler.Modules)
		}
	}
}
