package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/classtask/taskmaster/backend/internal/config"
	"github.com/classtask/taskmaster/backend/internal/models"
	"github.com/classtask/taskmaster/backend/pkg/logger"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

// Worker processes async jobs from the queue
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor func(context.Context, *SubmissionJob) error
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewWorker creates a new worker instance
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Infof("[Worker] Error processing job %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

// SetProcessor sets the function to process submission jobs
func (w *Worker) SetProcessor(processor func(context.Context, *SubmissionJob) error) {
	w.processor = processor
}

// Start begins processing jobs
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeSubmission, w.handleSubmissionJob)

	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Infof("[Worker] Starting async worker...")
		if err := w.server.Run(w.mux); err != nil {
			logger.Infof("[Worker] Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Infof("[Worker] Shutdown complete")
}

// handleSubmissionJob processes a single submission job
func (w *Worker) handleSubmissionJob(ctx context.Context, t *asynq.Task) error {
	var job SubmissionJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		logger.Infof("[Worker] Failed to unmarshal job: %v", err)
		return err
	}

	logger.Infof("[Worker] Processing submission job: submission_id=%d", job.SubmissionID)

	if w.processor == nil {
		logger.Infof("[Worker] Warning: no processor set")
		return nil
	}

	return w.processor(ctx, &job)
}

// ProcessSubmissionJob records the arrival of a submission in the audit
// trail and warns when the submission row has disappeared before the
// job ran. Shared by the async worker and the sync fallback.
func ProcessSubmissionJob(db *gorm.DB) func(context.Context, *SubmissionJob) error {
	return func(ctx context.Context, job *SubmissionJob) error {
		var submission models.Submission
		if err := db.WithContext(ctx).First(&submission, job.SubmissionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				LogWarning("Submission", "Process",
					fmt.Sprintf("submission %d no longer exists", job.SubmissionID),
					nil, "", "", nil)
				return nil
			}
			return err
		}

		var task models.Task
		if err := db.WithContext(ctx).First(&task, submission.TaskID).Error; err != nil {
			return err
		}

		LogInfo("Submission", "Received",
			fmt.Sprintf("group %d submitted %s work for task %q", submission.GroupID, submission.ContentType, task.Title),
			nil, "", "", map[string]uint{
				"submission_id": submission.ID,
				"task_id":       task.ID,
				"group_id":      submission.GroupID,
			})
		return nil
	}
}

// Global worker instance
var (
	globalWorker *Worker
	workerOnce   sync.Once
)

// InitWorker initializes the global worker
func InitWorker(cfg *config.RedisConfig) *Worker {
	workerOnce.Do(func() {
		globalWorker = NewWorker(cfg)
	})
	return globalWorker
}

// GetWorker returns the global worker instance
func GetWorker() *Worker {
	return globalWorker
}
