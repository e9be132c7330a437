package services

import (
	"testing"
	"time"

	"github.com/classtask/taskmaster/backend/internal/models"
	"gorm.io/gorm"
)

// completeTaskAt marks a task completed with explicit timestamps so the
// school-hour math is deterministic.
func completeTaskAt(t *testing.T, db *gorm.DB, taskID uint, created, completed time.Time) {
	t.Helper()
	err := db.Model(&models.Task{}).Where("id = ?", taskID).UpdateColumns(map[string]interface{}{
		"created_at":   created,
		"is_completed": true,
		"completed_at": completed,
	}).Error
	if err != nil {
		t.Fatalf("failed to complete task %d: %v", taskID, err)
	}
}

func TestRanking_OrderedByCompletedTasks(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLeaderboardService(db)

	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")
	g1 := createGroupWith(t, db, teacher, "Ahead")
	g2 := createGroupWith(t, db, teacher, "Behind")

	p1 := createProjectWith(t, db, teacher, g1, "P1", "A", "B")
	p2 := createProjectWith(t, db, teacher, g2, "P2", "A", "B")

	// Wednesday, inside school hours
	created := time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local)
	completeTaskAt(t, db, p1.Tasks[0].ID, created, created.Add(2*time.Hour))
	completeTaskAt(t, db, p1.Tasks[1].ID, created, created.Add(3*time.Hour))
	completeTaskAt(t, db, p2.Tasks[0].ID, created, created.Add(1*time.Hour))

	entries, err := svc.Ranking()
	if err != nil {
		t.Fatalf("Ranking() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].GroupName != "Ahead" {
		t.Errorf("rank 1 = %q, expected %q", entries[0].GroupName, "Ahead")
	}
	if entries[0].CompletedTasks != 2 || entries[1].CompletedTasks != 1 {
		t.Errorf("completed counts = %d/%d, expected 2/1",
			entries[0].CompletedTasks, entries[1].CompletedTasks)
	}
	if entries[0].Rank != 1 || entries[1].Rank != 2 {
		t.Errorf("ranks = %d/%d, expected 1/2", entries[0].Rank, entries[1].Rank)
	}
}

func TestRanking_TieBreaksOnSpeed(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLeaderboardService(db)

	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")
	gFast := createGroupWith(t, db, teacher, "Fast")
	gSlow := createGroupWith(t, db, teacher, "Slow")

	pFast := createProjectWith(t, db, teacher, gFast, "PF", "A")
	pSlow := createProjectWith(t, db, teacher, gSlow, "PS", "A")

	created := time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local)
	completeTaskAt(t, db, pFast.Tasks[0].ID, created, created.Add(1*time.Hour))
	completeTaskAt(t, db, pSlow.Tasks[0].ID, created, created.Add(5*time.Hour))

	entries, err := svc.Ranking()
	if err != nil {
		t.Fatalf("Ranking() error = %v", err)
	}

	if entries[0].GroupName != "Fast" {
		t.Errorf("the faster group should win the tie, got %q first", entries[0].GroupName)
	}
	if entries[0].AvgSchoolHours >= entries[1].AvgSchoolHours {
		t.Errorf("avg hours %f should be below %f",
			entries[0].AvgSchoolHours, entries[1].AvgSchoolHours)
	}
}

func TestRanking_WeekendDoesNotCount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLeaderboardService(db)

	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")
	gWeekend := createGroupWith(t, db, teacher, "Over Weekend")
	gSameDay := createGroupWith(t, db, teacher, "Same Day")

	pW := createProjectWith(t, db, teacher, gWeekend, "PW", "A")
	pS := createProjectWith(t, db, teacher, gSameDay, "PS", "A")

	// Friday 15:00 to Monday 09:00 spans the weekend but little school time
	friday := time.Date(2026, 3, 6, 15, 0, 0, 0, time.Local)
	monday := time.Date(2026, 3, 9, 9, 0, 0, 0, time.Local)
	completeTaskAt(t, db, pW.Tasks[0].ID, friday, monday)

	// Wednesday 09:00 to 15:00 is six school hours
	wednesday := time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local)
	completeTaskAt(t, db, pS.Tasks[0].ID, wednesday, wednesday.Add(6*time.Hour))

	entries, err := svc.Ranking()
	if err != nil {
		t.Fatalf("Ranking() error = %v", err)
	}

	if entries[0].GroupName != "Over Weekend" {
		t.Errorf("weekend time must not count against a group, got %q first", entries[0].GroupName)
	}
}

func TestRanking_GroupsWithNoCompletionsRankLast(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLeaderboardService(db)

	teacher := createAccount(t, db, "Teacher", "t@school.edu", "teacher")
	gDone := createGroupWith(t, db, teacher, "Done")
	createGroupWith(t, db, teacher, "Idle")

	p := createProjectWith(t, db, teacher, gDone, "P", "A")
	created := time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local)
	completeTaskAt(t, db, p.Tasks[0].ID, created, created.Add(1*time.Hour))

	entries, err := svc.Ranking()
	if err != nil {
		t.Fatalf("Ranking() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("all groups appear in the ranking, got %d entries", len(entries))
	}
	if entries[1].GroupName != "Idle" {
		t.Errorf("the idle group should rank last, got %q", entries[1].GroupName)
	}
	if entries[1].CompletedTasks != 0 || entries[1].AvgSchoolHours != 0 {
		t.Error("idle group should show zero counts")
	}
}

func TestRecentActivity(t *testing.T) {
	db := setupTestDB(t)
	svc := NewLeaderboardService(db)

	InitSystemLogger(db)
	defer InitSystemLogger(nil)

	LogInfo("Submission", "Received", "group 1 submitted text work", nil, "", "", nil)
	LogInfo("Project", "Create", "project created", nil, "", "", nil)
	LogInfo("Auth", "Login", "someone logged in", nil, "", "", nil)

	items, err := svc.RecentActivity(10)
	if err != nil {
		t.Fatalf("RecentActivity() error = %v", err)
	}

	// Auth noise is excluded from the feed
	if len(items) != 2 {
		t.Fatalf("expected 2 feed items, got %d", len(items))
	}
	for _, item := range items {
		if item.Module == "Auth" {
			t.Error("auth events do not belong in the activity feed")
		}
	}
}
