package handlers

import (
	"strconv"

	"github.com/classtask/taskmaster/backend/internal/middleware"
	"github.com/classtask/taskmaster/backend/internal/services"
	"github.com/classtask/taskmaster/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(db *gorm.DB) *ProjectHandler {
	return &ProjectHandler{projectService: services.NewProjectService(db)}
}

// List returns the projects visible to the caller
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectService.List(middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, projects)
}

// Get returns one project with its tasks
// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	project, err := h.projectService.GetByID(id, middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, project)
}

// Create creates a project with its initial tasks
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.projectService.Create(middleware.GetUserID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Created(c, result)
}

// Update edits a project's title, description, or group assignment
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Update(id, middleware.GetUserID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, project)
}

// Delete removes a project and its tasks
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	if err := h.projectService.Delete(id, middleware.GetUserID(c)); err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "project deleted"})
}

// AddTask appends a task to a project
// POST /api/projects/:id/tasks
func (h *ProjectHandler) AddTask(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	var req services.TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.projectService.AddTask(id, middleware.GetUserID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Created(c, task)
}

// UpdateTask edits a task's title, description, or due date
// PUT /api/tasks/:id
func (h *ProjectHandler) UpdateTask(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}

	var req services.TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.projectService.UpdateTask(id, middleware.GetUserID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, task)
}

// DeleteTask removes a task
// DELETE /api/tasks/:id
func (h *ProjectHandler) DeleteTask(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}

	if err := h.projectService.DeleteTask(id, middleware.GetUserID(c)); err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "task deleted"})
}

type toggleTaskRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

// ToggleTask sets a task's completion state to the requested value
// POST /api/tasks/:id/toggle
func (h *ProjectHandler) ToggleTask(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}

	var req toggleTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "completed flag is required")
		return
	}

	task, err := h.projectService.ToggleTaskCompletion(id, middleware.GetUserID(c), middleware.GetRole(c), *req.Completed)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, task)
}

func parseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
