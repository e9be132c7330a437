package services

import (
	"fmt"
	"time"

	"github.com/classtask/taskmaster/backend/internal/models"
	"github.com/classtask/taskmaster/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SchedulerService runs the periodic background jobs: due-date reminder
// scans every hour and audit-log cleanup overnight.
type SchedulerService struct {
	db            *gorm.DB
	logService    *SystemLogService
	retentionDays int
	cronScheduler *cron.Cron
}

func NewSchedulerService(db *gorm.DB, retentionDays int) *SchedulerService {
	return &SchedulerService{
		db:            db,
		logService:    NewSystemLogService(db),
		retentionDays: retentionDays,
	}
}

func (s *SchedulerService) StartScheduler() {
	s.cronScheduler = cron.New()

	if _, err := s.cronScheduler.AddFunc("0 * * * *", s.ScanDueTasks); err != nil {
		logger.Errorf("[Scheduler] Failed to add due-task scan: %v", err)
	}

	if _, err := s.cronScheduler.AddFunc("0 3 * * *", s.cleanupLogs); err != nil {
		logger.Errorf("[Scheduler] Failed to add log cleanup: %v", err)
	}

	s.cronScheduler.Start()
	logger.Infof("[Scheduler] Started")
}

func (s *SchedulerService) StopScheduler() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
	}
}

// ScanDueTasks finds incomplete tasks due within the next 24 hours and
// records a reminder for each, at most once per task.
func (s *SchedulerService) ScanDueTasks() {
	now := time.Now()
	cutoff := now.Add(24 * time.Hour)

	var tasks []models.Task
	if err := s.db.
		Where("is_completed = ? AND due_date IS NOT NULL AND due_date > ? AND due_date <= ?", false, now, cutoff).
		Find(&tasks).Error; err != nil {
		logger.Errorf("[Scheduler] Due-task scan failed: %v", err)
		return
	}

	for _, task := range tasks {
		if s.reminderExists(task.ID) {
			continue
		}

		var project models.Project
		if err := s.db.First(&project, task.ProjectID).Error; err != nil {
			continue
		}

		LogInfo("Project", "DueSoon",
			fmt.Sprintf("task %q is due at %s", task.Title, task.DueDate.Format(time.RFC3339)),
			nil, "", "", map[string]uint{"task_id": task.ID, "project_id": project.ID})

		PublishChange("tasks", "update", task.ID, project.ID, project.GroupID)
	}
}

// reminderExists reports whether a due-soon reminder was already logged
// for this task in the last 24 hours.
func (s *SchedulerService) reminderExists(taskID uint) bool {
	var count int64
	since := time.Now().Add(-24 * time.Hour)
	s.db.Model(&models.SystemLog{}).
		Where("module = ? AND action = ? AND extra LIKE ? AND created_at > ?",
			"Project", "DueSoon", fmt.Sprintf("%%\"task_id\":%d%%", taskID), since).
		Count(&count)
	return count > 0
}

func (s *SchedulerService) cleanupLogs() {
	deleted, err := s.logService.CleanupOldLogs(s.retentionDays)
	if err != nil {
		logger.Errorf("[Scheduler] Log cleanup failed: %v", err)
		return
	}
	if deleted > 0 {
		logger.Infof("[Scheduler] Removed %d audit entries older than %d days", deleted, s.retentionDays)
	}
}
