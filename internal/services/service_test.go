package services

import (
	"testing"

	"github.com/classtask/taskmaster/backend/internal/config"
	"github.com/classtask/taskmaster/backend/internal/models"
	"github.com/classtask/taskmaster/backend/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	utils.SetJWTSecret("test-secret-key-for-testing")
}

// setupTestDB opens a fresh in-memory database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.RefreshToken{},
		&models.Group{},
		&models.GroupMember{},
		&models.Project{},
		&models.Task{},
		&models.Submission{},
		&models.SystemLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:             "test-secret-key-for-testing",
		ExpireHour:         24,
		RefreshExpireHours: 720,
	}
}

func testAuthService(db *gorm.DB) *AuthService {
	return NewAuthService(db, testJWTConfig(), &config.LDAPConfig{Enabled: false})
}

// createAccount registers a user+profile pair and returns the profile ID.
func createAccount(t *testing.T, db *gorm.DB, name, email, role string) uint {
	t.Helper()

	svc := testAuthService(db)
	result, err := svc.Register(&RegisterRequest{
		Name:            name,
		Email:           email,
		Password:        "password123",
		ConfirmPassword: "password123",
		Role:            role,
	})
	if err != nil {
		t.Fatalf("failed to register %s: %v", email, err)
	}
	if result.ProfilePending {
		t.Fatalf("profile creation unexpectedly pending for %s", email)
	}
	return result.User.ID
}

// createGroupWith creates a group containing the given students.
func createGroupWith(t *testing.T, db *gorm.DB, teacherID uint, name string, studentIDs ...uint) uint {
	t.Helper()

	svc := NewGroupService(db)
	group, err := svc.Create(teacherID, &CreateGroupRequest{
		Name:       name,
		StudentIDs: studentIDs,
	})
	if err != nil {
		t.Fatalf("failed to create group %s: %v", name, err)
	}
	return group.ID
}

// createProjectWith creates a project with the given task titles.
func createProjectWith(t *testing.T, db *gorm.DB, teacherID, groupID uint, title string, taskTitles ...string) *models.Project {
	t.Helper()

	tasks := make([]TaskInput, 0, len(taskTitles))
	for _, tt := range taskTitles {
		tasks = append(tasks, TaskInput{Title: tt})
	}

	svc := NewProjectService(db)
	result, err := svc.Create(teacherID, &CreateProjectRequest{
		Title:   title,
		GroupID: groupID,
		Tasks:   tasks,
	})
	if err != nil {
		t.Fatalf("failed to create project %s: %v", title, err)
	}
	if len(result.TasksFailed) > 0 {
		t.Fatalf("unexpected task failures creating %s: %v", title, result.TasksFailed)
	}
	return result.Project
}
