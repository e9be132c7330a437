package handlers

import (
	"strings"

	"github.com/classtask/taskmaster/backend/internal/middleware"
	"github.com/classtask/taskmaster/backend/internal/services"
	"github.com/classtask/taskmaster/backend/internal/storage"
	"github.com/classtask/taskmaster/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// 20 MB cap on uploaded submission files
const maxUploadSize = 20 << 20

type SubmissionHandler struct {
	submissionService *services.SubmissionService
}

func NewSubmissionHandler(db *gorm.DB, store storage.BlobStore, queue services.TaskQueue) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: services.NewSubmissionService(db, store, queue),
	}
}

// Submit records work for a task. A JSON body carries a text
// submission; a multipart body carries a file upload.
// POST /api/tasks/:id/submissions
func (h *SubmissionHandler) Submit(c *gin.Context) {
	taskID, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}

	studentID := middleware.GetUserID(c)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			response.BadRequest(c, "file field is required")
			return
		}
		defer file.Close()

		if header.Size > maxUploadSize {
			response.BadRequest(c, "file exceeds the 20 MB limit")
			return
		}

		submission, err := h.submissionService.SubmitFile(c.Request.Context(), taskID, studentID, header.Filename, file)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		response.Created(c, submission)
		return
	}

	var req services.SubmitTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	submission, err := h.submissionService.SubmitText(taskID, studentID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Created(c, submission)
}

// List returns a task's submissions under the caller's scope
// GET /api/tasks/:id/submissions
func (h *SubmissionHandler) List(c *gin.Context) {
	taskID, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}

	submissions, err := h.submissionService.ListByTask(taskID, middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, submissions)
}

// Review approves or rejects a pending submission
// PUT /api/submissions/:id/review
func (h *SubmissionHandler) Review(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid submission id")
		return
	}

	var req services.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	submission, err := h.submissionService.Review(id, middleware.GetUserID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, submission)
}

// AddFeedback sets or replaces the feedback text on a submission
// PUT /api/submissions/:id/feedback
func (h *SubmissionHandler) AddFeedback(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid submission id")
		return
	}

	var req services.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	submission, err := h.submissionService.AddFeedback(id, middleware.GetUserID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, submission)
}
