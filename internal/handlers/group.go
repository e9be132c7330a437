package handlers

import (
	"github.com/classtask/taskmaster/backend/internal/middleware"
	"github.com/classtask/taskmaster/backend/internal/services"
	"github.com/classtask/taskmaster/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type GroupHandler struct {
	groupService *services.GroupService
}

func NewGroupHandler(db *gorm.DB) *GroupHandler {
	return &GroupHandler{groupService: services.NewGroupService(db)}
}

// List returns all groups with their members
// GET /api/groups
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groupService.List()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, groups)
}

// Get returns one group with its members
// GET /api/groups/:id
func (h *GroupHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}

	group, err := h.groupService.GetByID(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, group)
}

// Mine returns the caller's group, or null when they have none
// GET /api/groups/mine
func (h *GroupHandler) Mine(c *gin.Context) {
	group, err := h.groupService.GroupOf(middleware.GetUserID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, group)
}

// Create creates a group, optionally with initial members
// POST /api/groups
func (h *GroupHandler) Create(c *gin.Context) {
	var req services.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	group, err := h.groupService.Create(middleware.GetUserID(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Created(c, group)
}

// Rename changes a group's name
// PUT /api/groups/:id
func (h *GroupHandler) Rename(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	group, err := h.groupService.Rename(id, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, group)
}

// Delete removes an unassigned group
// DELETE /api/groups/:id
func (h *GroupHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}

	if err := h.groupService.Delete(id); err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "group deleted"})
}

// AddMember puts a student into a group
// POST /api/groups/:id/members
func (h *GroupHandler) AddMember(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}

	var req struct {
		StudentID uint `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.groupService.AddMember(id, req.StudentID); err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "member added"})
}

// RemoveMember takes a student out of a group
// DELETE /api/groups/:id/members/:studentId
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.BadRequest(c, "invalid group id")
		return
	}

	studentID, err := parseID(c, "studentId")
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}

	if err := h.groupService.RemoveMember(id, studentID); err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "member removed"})
}
