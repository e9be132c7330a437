package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/classtask/taskmaster/backend/internal/config"
	"github.com/classtask/taskmaster/backend/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	TaskTypeSubmission = "submission:process"
)

// SubmissionJob is the payload for post-submission processing: audit
// recording and teacher notification happen off the request path.
type SubmissionJob struct {
	SubmissionID uint `json:"submission_id"`
}

// TaskQueue defines the interface for submission job processing
type TaskQueue interface {
	// EnqueueSubmissionProcessing adds a submission job to the queue
	EnqueueSubmissionProcessing(submissionID uint) error
	// IsAsync returns true if queue processes jobs asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// Global task queue instance
var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Infof("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

// GetTaskQueue returns the global task queue instance
func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Verify the connection before committing to async mode
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	_, err := inspector.Queues()
	if err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) EnqueueSubmissionProcessing(submissionID uint) error {
	payload, err := json.Marshal(&SubmissionJob{SubmissionID: submissionID})
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeSubmission, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Infof("[AsyncQueue] Job enqueued: id=%s, queue=%s", info.ID, info.Queue)
	return nil
}

// IsAsync returns true for async queue
func (q *AsyncQueue) IsAsync() bool {
	return true
}

// Close closes the async queue client
func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue with in-process handling (no Redis)
type SyncQueue struct {
	processor func(context.Context, *SubmissionJob) error
}

// NewSyncQueue creates a new synchronous queue
func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function to process jobs in-process
func (q *SyncQueue) SetProcessor(processor func(context.Context, *SubmissionJob) error) {
	q.processor = processor
}

// EnqueueSubmissionProcessing handles the job immediately in a goroutine
func (q *SyncQueue) EnqueueSubmissionProcessing(submissionID uint) error {
	if q.processor == nil {
		logger.Infof("[SyncQueue] Warning: no processor set, job will be dropped")
		return nil
	}

	job := &SubmissionJob{SubmissionID: submissionID}

	// Process in a goroutine to not block the submit response
	go func() {
		ctx := context.Background()
		if err := q.processor(ctx, job); err != nil {
			logger.Infof("[SyncQueue] Job processing failed: %v", err)
		}
	}()

	return nil
}

// IsAsync returns false for sync queue
func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close is a no-op for sync queue
func (q *SyncQueue) Close() error {
	return nil
}
