package services

import (
	"errors"
	"testing"

	"github.com/classtask/taskmaster/backend/internal/models"
)

func TestProjectList_TeacherSeesOnlyOwn(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)

	teacherA := createAccount(t, db, "Teacher A", "a@school.edu", "teacher")
	teacherB := createAccount(t, db, "Teacher B", "b@school.edu", "teacher")
	groupID := createGroupWith(t, db, teacherA, "Group 1")

	createProjectWith(t, db, teacherA, groupID, "Project A", "Task 1")
	createProjectWith(t, db, teacherB, groupID, "Project B", "Task 1")

	projects, err := svc.List(teacherA, models.RoleTeacher)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("teacher A should see 1 project, got %d", len(projects))
	}
	if projects[0].Title != "Project A" {
		t.Errorf("teacher A sees %q, expected %q", projects[0].Title, "Project A")
	}
}

func TestProjectList_StudentSeesOwnGroup(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)

	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")
	student1 := createAccount(t, db, "Student 1", "s1@school.edu", "student")
	student2 := createAccount(t, db, "Student 2", "s2@school.edu", "student")

	group1 := createGroupWith(t, db, teacher, "Group 1", student1)
	group2 := createGroupWith(t, db, teacher, "Group 2", student2)

	createProjectWith(t, db, teacher, group1, "For Group 1", "Task")
	createProjectWith(t, db, teacher, group2, "For Group 2", "Task")

	projects, err := svc.List(student1, models.RoleStudent)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(projects) != 1 || projects[0].Title != "For Group 1" {
		t.Errorf("student 1 should see only their group's project")
	}
}

func TestProjectList_StudentWithoutGroup(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)

	loner := createAccount(t, db, "Loner", "loner@school.edu", "student")

	projects, err := svc.List(loner, models.RoleStudent)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("a student with no group sees an empty list, got %d projects", len(projects))
	}
}

func TestProjectGetByID_ScopeEnforced(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)

	teacherA := createAccount(t, db, "Teacher A", "a@school.edu", "teacher")
	teacherB := createAccount(t, db, "Teacher B", "b@school.edu", "teacher")
	outsider := createAccount(t, db, "Outsider", "o@school.edu", "student")
	groupID := createGroupWith(t, db, teacherA, "Group 1")

	project := createProjectWith(t, db, teacherA, groupID, "Private", "Task")

	if _, err := svc.GetByID(project.ID, teacherB, models.RoleTeacher); !errors.Is(err, ErrNotProjectOwner) {
		t.Errorf("another teacher should be refused, got %v", err)
	}
	if _, err := svc.GetByID(project.ID, outsider, models.RoleStudent); !errors.Is(err, ErrNotGroupMember) {
		t.Errorf("a student outside the group should be refused, got %v", err)
	}
	if _, err := svc.GetByID(project.ID, teacherA, models.RoleTeacher); err != nil {
		t.Errorf("the owning teacher should succeed: %v", err)
	}
}

func TestProjectCreate_ReportsPerTaskFailures(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)

	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")
	groupID := createGroupWith(t, db, teacher, "Group 1")

	result, err := svc.Create(teacher, &CreateProjectRequest{
		Title:   "Mixed",
		GroupID: groupID,
		Tasks: []TaskInput{
			{Title: "Valid Task"},
			{Title: "   "},
			{Title: "Another Valid Task"},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The project and the valid tasks persist; the bad one is reported
	if result.Project.ID == 0 {
		t.Fatal("project should have been created")
	}
	if len(result.TasksFailed) != 1 {
		t.Fatalf("expected 1 failed task, got %d", len(result.TasksFailed))
	}
	if result.TasksFailed[0].Index != 1 {
		t.Errorf("failed index = %d, expected 1", result.TasksFailed[0].Index)
	}

	var count int64
	db.Model(&models.Task{}).Where("project_id = ?", result.Project.ID).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 persisted tasks, found %d", count)
	}
}

func TestProjectCreate_UnknownGroup(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)
	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")

	_, err := svc.Create(teacher, &CreateProjectRequest{Title: "Orphan", GroupID: 999})
	if !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("expected ErrGroupNotFound, got %v", err)
	}
}

func TestAddTask_TitleRequired(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)

	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")
	groupID := createGroupWith(t, db, teacher, "Group 1")
	project := createProjectWith(t, db, teacher, groupID, "Project", "Seed Task")

	if _, err := svc.AddTask(project.ID, teacher, &TaskInput{Title: "  "}); err == nil {
		t.Error("a blank task title should be rejected")
	}

	task, err := svc.AddTask(project.ID, teacher, &TaskInput{Title: "Real Task"})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if task.ProjectID != project.ID {
		t.Errorf("task project = %d, expected %d", task.ProjectID, project.ID)
	}
}

func TestToggleTaskCompletion(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)

	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")
	groupID := createGroupWith(t, db, teacher, "Group 1")
	project := createProjectWith(t, db, teacher, groupID, "Project", "Toggle Me")
	taskID := project.Tasks[0].ID

	task, err := svc.ToggleTaskCompletion(taskID, teacher, models.RoleTeacher, true)
	if err != nil {
		t.Fatalf("ToggleTaskCompletion() error = %v", err)
	}
	if !task.IsCompleted {
		t.Error("task should be completed after setting true")
	}
	if task.CompletedAt == nil {
		t.Error("completion time should be stamped")
	}

	task, err = svc.ToggleTaskCompletion(taskID, teacher, models.RoleTeacher, false)
	if err != nil {
		t.Fatalf("setting false error = %v", err)
	}
	if task.IsCompleted {
		t.Error("task should be incomplete after setting false")
	}
	if task.CompletedAt != nil {
		t.Error("completion time should be cleared on un-complete")
	}

	var stored models.Task
	db.First(&stored, taskID)
	if stored.IsCompleted {
		t.Error("persisted task should be incomplete")
	}
}

func TestToggleTaskCompletion_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)

	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")
	groupID := createGroupWith(t, db, teacher, "Group 1")
	project := createProjectWith(t, db, teacher, groupID, "Project", "Task")
	taskID := project.Tasks[0].ID

	first, err := svc.ToggleTaskCompletion(taskID, teacher, models.RoleTeacher, true)
	if err != nil {
		t.Fatalf("ToggleTaskCompletion() error = %v", err)
	}
	stamped := first.CompletedAt

	// A retried or double-clicked request must not flip the flag back
	second, err := svc.ToggleTaskCompletion(taskID, teacher, models.RoleTeacher, true)
	if err != nil {
		t.Fatalf("repeated call error = %v", err)
	}
	if !second.IsCompleted {
		t.Error("setting true twice should leave the task completed")
	}
	if second.CompletedAt == nil || !second.CompletedAt.Equal(*stamped) {
		t.Error("repeated call should not restamp the completion time")
	}

	var stored models.Task
	db.First(&stored, taskID)
	if !stored.IsCompleted {
		t.Error("persisted task should stay completed")
	}
}

func TestToggleTaskCompletion_StudentScope(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)

	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")
	member := createAccount(t, db, "Member", "m@school.edu", "student")
	outsider := createAccount(t, db, "Outsider", "o@school.edu", "student")

	groupID := createGroupWith(t, db, teacher, "Group 1", member)
	project := createProjectWith(t, db, teacher, groupID, "Project", "Task")
	taskID := project.Tasks[0].ID

	if _, err := svc.ToggleTaskCompletion(taskID, outsider, models.RoleStudent, true); !errors.Is(err, ErrNotGroupMember) {
		t.Errorf("outsider should be refused, got %v", err)
	}
	if _, err := svc.ToggleTaskCompletion(taskID, member, models.RoleStudent, true); err != nil {
		t.Errorf("group member should succeed: %v", err)
	}
}

func TestProjectDelete_RemovesTasks(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)

	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")
	groupID := createGroupWith(t, db, teacher, "Group 1")
	project := createProjectWith(t, db, teacher, groupID, "Doomed", "Task 1", "Task 2")

	if err := svc.Delete(project.ID, teacher); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := svc.GetByID(project.ID, teacher, models.RoleTeacher); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("deleted project should be gone, got %v", err)
	}
}

func TestProjectDelete_OwnerOnly(t *testing.T) {
	db := setupTestDB(t)
	svc := NewProjectService(db)

	teacherA := createAccount(t, db, "Teacher A", "a@school.edu", "teacher")
	teacherB := createAccount(t, db, "Teacher B", "b@school.edu", "teacher")
	groupID := createGroupWith(t, db, teacherA, "Group 1")
	project := createProjectWith(t, db, teacherA, groupID, "Protected", "Task")

	if err := svc.Delete(project.ID, teacherB); !errors.Is(err, ErrNotProjectOwner) {
		t.Errorf("non-owner delete should be refused, got %v", err)
	}
}

func TestProjectProgress_NoTasks(t *testing.T) {
	p := &models.Project{}
	if got := p.Progress(); got != 0 {
		t.Errorf("Progress() with no tasks = %f, expected 0", got)
	}
}

func TestProjectProgress_Partial(t *testing.T) {
	p := &models.Project{Tasks: []models.Task{
		{IsCompleted: true},
		{IsCompleted: false},
		{IsCompleted: true},
		{IsCompleted: false},
	}}
	if got := p.Progress(); got != 50 {
		t.Errorf("Progress() = %f, expected 50", got)
	}
}
