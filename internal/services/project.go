package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/classtask/taskmaster/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrNotProjectOwner = errors.New("project belongs to another teacher")
	ErrNotGroupMember  = errors.New("project is not assigned to your group")
)

type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

type TaskInput struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

type CreateProjectRequest struct {
	Title       string      `json:"title" binding:"required"`
	Description string      `json:"description"`
	GroupID     uint        `json:"group_id" binding:"required"`
	Tasks       []TaskInput `json:"tasks"`
}

// CreateProjectResult reports exactly what was persisted. Task inserts
// are independent of the project insert, so some can fail while the
// project and the rest succeed.
type CreateProjectResult struct {
	Project     *models.Project `json:"project"`
	TasksFailed []TaskFailure   `json:"tasks_failed,omitempty"`
}

type TaskFailure struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// Create persists the project, then each task one by one. A task insert
// failure does not roll back the project or the other tasks; failures
// are collected and reported so the caller sees the true final state.
func (s *ProjectService) Create(teacherID uint, req *CreateProjectRequest) (*CreateProjectResult, error) {
	var group models.Group
	if err := s.db.First(&group, req.GroupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	project := models.Project{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		TeacherID:   teacherID,
		GroupID:     req.GroupID,
	}
	if project.Title == "" {
		return nil, errors.New("project title is required")
	}

	if err := s.db.Create(&project).Error; err != nil {
		return nil, err
	}

	result := &CreateProjectResult{Project: &project}

	for i, t := range req.Tasks {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			result.TasksFailed = append(result.TasksFailed, TaskFailure{
				Index: i, Title: t.Title, Error: "task title is required",
			})
			continue
		}
		task := models.Task{
			ProjectID:   project.ID,
			Title:       title,
			Description: t.Description,
			DueDate:     t.DueDate,
		}
		if err := s.db.Create(&task).Error; err != nil {
			result.TasksFailed = append(result.TasksFailed, TaskFailure{
				Index: i, Title: title, Error: err.Error(),
			})
			LogWarning("Project", "Create",
				fmt.Sprintf("task %q failed to save for project %d: %s", title, project.ID, err.Error()),
				&teacherID, "", "", nil)
			continue
		}
		project.Tasks = append(project.Tasks, task)
	}

	PublishChange("projects", "insert", project.ID, project.ID, project.GroupID)
	return result, nil
}

// List returns the projects visible to the caller. Teachers see the
// projects they created; students see the projects assigned to their
// group. A student with no group sees an empty list, not an error.
func (s *ProjectService) List(userID uint, role string) ([]models.Project, error) {
	var projects []models.Project
	query := s.db.Preload("Tasks", func(db *gorm.DB) *gorm.DB {
		return db.Order("tasks.created_at ASC")
	}).Order("created_at DESC")

	switch role {
	case models.RoleTeacher:
		query = query.Where("teacher_id = ?", userID)
	case models.RoleStudent:
		groupID, err := s.groupIDFor(userID)
		if err != nil {
			return nil, err
		}
		if groupID == 0 {
			return []models.Project{}, nil
		}
		query = query.Where("group_id = ?", groupID)
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	if err := query.Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// GetByID loads one project with its tasks, enforcing the same scope
// rules as List.
func (s *ProjectService) GetByID(projectID, userID uint, role string) (*models.Project, error) {
	var project models.Project
	if err := s.db.Preload("Tasks", func(db *gorm.DB) *gorm.DB {
		return db.Order("tasks.created_at ASC")
	}).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	if err := s.authorize(&project, userID, role); err != nil {
		return nil, err
	}
	return &project, nil
}

type UpdateProjectRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	GroupID     *uint   `json:"group_id"`
}

func (s *ProjectService) Update(projectID, teacherID uint, req *UpdateProjectRequest) (*models.Project, error) {
	project, err := s.ownedProject(projectID, teacherID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, errors.New("project title is required")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.GroupID != nil {
		var group models.Group
		if err := s.db.First(&group, *req.GroupID).Error; err != nil {
			return nil, ErrGroupNotFound
		}
		updates["group_id"] = *req.GroupID
	}

	if len(updates) > 0 {
		if err := s.db.Model(project).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	PublishChange("projects", "update", project.ID, project.ID, project.GroupID)
	return project, nil
}

// Delete removes a project and its tasks. Submissions go with the tasks
// through the cascade.
func (s *ProjectService) Delete(projectID, teacherID uint) error {
	project, err := s.ownedProject(projectID, teacherID)
	if err != nil {
		return err
	}

	if err := s.db.Select("Tasks").Delete(project).Error; err != nil {
		return err
	}

	PublishChange("projects", "delete", project.ID, project.ID, project.GroupID)
	return nil
}

// AddTask appends a task to an existing project owned by the teacher.
func (s *ProjectService) AddTask(projectID, teacherID uint, req *TaskInput) (*models.Task, error) {
	project, err := s.ownedProject(projectID, teacherID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.New("task title is required")
	}

	task := models.Task{
		ProjectID:   project.ID,
		Title:       title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if err := s.db.Create(&task).Error; err != nil {
		return nil, err
	}

	PublishChange("tasks", "insert", task.ID, project.ID, project.GroupID)
	return &task, nil
}

// ToggleTaskCompletion sets a task's completion flag to the requested
// value. Setting the flag to the value it already holds is a no-op, so
// retries and double-clicks are safe. Both teachers (any of their own
// projects) and students (their group's projects) may change it.
// Completion time is stamped on the transition to completed and cleared
// on the way back.
func (s *ProjectService) ToggleTaskCompletion(taskID, userID uint, role string, completed bool) (*models.Task, error) {
	var task models.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	var project models.Project
	if err := s.db.First(&project, task.ProjectID).Error; err != nil {
		return nil, err
	}
	if err := s.authorize(&project, userID, role); err != nil {
		return nil, err
	}

	if task.IsCompleted == completed {
		return &task, nil
	}

	task.IsCompleted = completed
	if task.IsCompleted {
		now := time.Now()
		task.CompletedAt = &now
	} else {
		task.CompletedAt = nil
	}

	if err := s.db.Model(&task).Select("is_completed", "completed_at").Updates(&task).Error; err != nil {
		return nil, err
	}

	PublishChange("tasks", "update", task.ID, project.ID, project.GroupID)
	return &task, nil
}

func (s *ProjectService) UpdateTask(taskID, teacherID uint, req *TaskInput) (*models.Task, error) {
	var task models.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	project, err := s.ownedProject(task.ProjectID, teacherID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.New("task title is required")
	}

	task.Title = title
	task.Description = req.Description
	task.DueDate = req.DueDate
	if err := s.db.Save(&task).Error; err != nil {
		return nil, err
	}

	PublishChange("tasks", "update", task.ID, project.ID, project.GroupID)
	return &task, nil
}

func (s *ProjectService) DeleteTask(taskID, teacherID uint) error {
	var task models.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	project, err := s.ownedProject(task.ProjectID, teacherID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(&task).Error; err != nil {
		return err
	}

	PublishChange("tasks", "delete", task.ID, project.ID, project.GroupID)
	return nil
}

// ownedProject loads a project and verifies the teacher created it.
func (s *ProjectService) ownedProject(projectID, teacherID uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if project.TeacherID != teacherID {
		return nil, ErrNotProjectOwner
	}
	return &project, nil
}

// authorize checks that the user may see the project under their role.
func (s *ProjectService) authorize(project *models.Project, userID uint, role string) error {
	switch role {
	case models.RoleTeacher:
		if project.TeacherID != userID {
			return ErrNotProjectOwner
		}
	case models.RoleStudent:
		groupID, err := s.groupIDFor(userID)
		if err != nil {
			return err
		}
		if groupID == 0 || project.GroupID != groupID {
			return ErrNotGroupMember
		}
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return nil
}

// groupIDFor returns the student's group, or 0 when they have none.
func (s *ProjectService) groupIDFor(studentID uint) (uint, error) {
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
