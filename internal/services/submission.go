package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/classtask/taskmaster/backend/internal/models"
	"github.com/classtask/taskmaster/backend/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadyReviewed    = errors.New("submission has already been reviewed")
	ErrInvalidStatus      = errors.New("status must be approved or rejected")
	ErrEmptySubmission    = errors.New("submission content is required")
)

type SubmissionService struct {
	db    *gorm.DB
	store storage.BlobStore
	queue TaskQueue
}

func NewSubmissionService(db *gorm.DB, store storage.BlobStore, queue TaskQueue) *SubmissionService {
	return &SubmissionService{db: db, store: store, queue: queue}
}

type SubmitTextRequest struct {
	Content string `json:"content" binding:"required"`
}

// SubmitText records a text submission for a task on behalf of the
// student's group.
func (s *SubmissionService) SubmitText(taskID, studentID uint, req *SubmitTextRequest) (*models.Submission, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptySubmission
	}

	task, project, groupID, err := s.taskForStudent(taskID, studentID)
	if err != nil {
		return nil, err
	}

	submission := models.Submission{
		TaskID:      task.ID,
		GroupID:     groupID,
		Content:     content,
		ContentType: models.ContentTypeText,
		Status:      models.SubmissionPending,
		SubmittedAt: time.Now(),
	}
	if err := s.db.Create(&submission).Error; err != nil {
		return nil, err
	}

	s.enqueueProcessing(&submission)
	PublishChange("submissions", "insert", submission.ID, project.ID, groupID)
	return &submission, nil
}

// SubmitFile uploads the file to blob storage first, then records the
// submission row pointing at it. If the row insert fails the uploaded
// blob is deleted; if that compensating delete also fails, the orphan
// is logged for later cleanup rather than silently leaked.
func (s *SubmissionService) SubmitFile(ctx context.Context, taskID, studentID uint, filename string, r io.Reader) (*models.Submission, error) {
	task, project, groupID, err := s.taskForStudent(taskID, studentID)
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(filename)
	key := fmt.Sprintf("submissions/group-%d/task-%d/%s%s", groupID, task.ID, uuid.NewString(), ext)

	url, err := s.store.Upload(ctx, key, r)
	if err != nil {
		return nil, fmt.Errorf("file upload failed: %w", err)
	}

	submission := models.Submission{
		TaskID:      task.ID,
		GroupID:     groupID,
		Content:     url,
		ContentType: models.ContentTypeFile,
		Status:      models.SubmissionPending,
		SubmittedAt: time.Now(),
	}
	if err := s.db.Create(&submission).Error; err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			LogError("Submission", "SubmitFile",
				"orphaned blob after failed submission insert: "+key,
				&studentID, "", "", map[string]string{"insert_error": err.Error(), "delete_error": delErr.Error()})
		}
		return nil, err
	}

	s.enqueueProcessing(&submission)
	PublishChange("submissions", "insert", submission.ID, project.ID, groupID)
	return &submission, nil
}

// ListByTask returns a task's submissions under the caller's scope:
// the project's teacher sees all of them, a student sees their group's.
func (s *SubmissionService) ListByTask(taskID, userID uint, role string) ([]models.Submission, error) {
	task, project, err := s.taskWithProject(taskID)
	if err != nil {
		return nil, err
	}

	query := s.db.Where("task_id = ?", task.ID).Order("submitted_at DESC")

	switch role {
	case models.RoleTeacher:
		if project.TeacherID != userID {
			return nil, ErrNotProjectOwner
		}
	case models.RoleStudent:
		groupID, err := s.studentGroupID(userID)
		if err != nil {
			return nil, err
		}
		if groupID == 0 || project.GroupID != groupID {
			return nil, ErrNotGroupMember
		}
		query = query.Where("group_id = ?", groupID)
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	var submissions []models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

type ReviewRequest struct {
	Status   string `json:"status" binding:"required"`
	Feedback string `json:"feedback"`
}

// Review moves a pending submission to approved or rejected. The
// transition is one-way: a reviewed submission cannot be re-reviewed,
// so reviewed_at and reviewed_by are written exactly once. Approval
// records the verdict only; it does not mark the task completed.
func (s *SubmissionService) Review(submissionID, teacherID uint, req *ReviewRequest) (*models.Submission, error) {
	if req.Status != models.SubmissionApproved && req.Status != models.SubmissionRejected {
		return nil, ErrInvalidStatus
	}

	submission, project, err := s.submissionForTeacher(submissionID, teacherID)
	if err != nil {
		return nil, err
	}

	if submission.Status != models.SubmissionPending {
		return nil, ErrAlreadyReviewed
	}

	now := time.Now()
	// Guard the status in the WHERE clause so two concurrent reviews
	// cannot both win.
	result := s.db.Model(&models.Submission{}).
		Where("id = ? AND status = ?", submission.ID, models.SubmissionPending).
		Updates(map[string]interface{}{
			"status":      req.Status,
			"feedback":    req.Feedback,
			"reviewed_at": now,
			"reviewed_by": teacherID,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyReviewed
	}

	submission.Status = req.Status
	submission.Feedback = req.Feedback
	submission.ReviewedAt = &now
	submission.ReviewedBy = &teacherID

	PublishChange("submissions", "update", submission.ID, project.ID, submission.GroupID)
	return submission, nil
}

type FeedbackRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// AddFeedback sets or replaces the feedback text without touching the
// review status. Usable on pending and reviewed submissions alike.
func (s *SubmissionService) AddFeedback(submissionID, teacherID uint, req *FeedbackRequest) (*models.Submission, error) {
	submission, project, err := s.submissionForTeacher(submissionID, teacherID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(submission).Update("feedback", req.Feedback).Error; err != nil {
		return nil, err
	}
	submission.Feedback = req.Feedback

	PublishChange("submissions", "update", submission.ID, project.ID, submission.GroupID)
	return submission, nil
}

func (s *SubmissionService) enqueueProcessing(submission *models.Submission) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueSubmissionProcessing(submission.ID); err != nil {
		LogWarning("Submission", "Enqueue",
			fmt.Sprintf("could not enqueue processing for submission %d: %s", submission.ID, err.Error()),
			nil, "", "", nil)
	}
}

// taskForStudent resolves a task and verifies the student's group is
// assigned the task's project.
func (s *SubmissionService) taskForStudent(taskID, studentID uint) (*models.Task, *models.Project, uint, error) {
	task, project, err := s.taskWithProject(taskID)
	if err != nil {
		return nil, nil, 0, err
	}

	groupID, err := s.studentGroupID(studentID)
	if err != nil {
		return nil, nil, 0, err
	}
	if groupID == 0 || project.GroupID != groupID {
		return nil, nil, 0, ErrNotGroupMember
	}

	return task, project, groupID, nil
}

func (s *SubmissionService) taskWithProject(taskID uint) (*models.Task, *models.Project, error) {
	var task models.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrTaskNotFound
		}
		return nil, nil, err
	}

	var project models.Project
	if err := s.db.First(&project, task.ProjectID).Error; err != nil {
		return nil, nil, err
	}
	return &task, &project, nil
}

func (s *SubmissionService) submissionForTeacher(submissionID, teacherID uint) (*models.Submission, *models.Project, error) {
	var submission models.Submission
	if err := s.db.First(&submission, submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSubmissionNotFound
		}
		return nil, nil, err
	}

	_, project, err := s.taskWithProject(submission.TaskID)
	if err != nil {
		return nil, nil, err
	}
	if project.TeacherID != teacherID {
		return nil, nil, ErrNotProjectOwner
	}
	return &submission, project, nil
}

func (s *SubmissionService) studentGroupID(studentID uint) (uint, error) {
	var member models.GroupMember
	err := s.db.Where("student_id = ?", studentID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return member.GroupID, nil
}
