package services

import (
	"sort"
	"time"

	"github.com/classtask/taskmaster/backend/internal/models"
	"github.com/rickar/cal/v2"
	"gorm.io/gorm"
)

// LeaderboardService ranks groups by completed work. Ties on completed
// count break on average completion speed measured in school hours, so
// weekends do not penalize a group that finished Friday afternoon.
type LeaderboardService struct {
	db       *gorm.DB
	calendar *cal.BusinessCalendar
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	c := cal.NewBusinessCalendar()
	// School hours, Monday through Friday
	c.SetWorkHours(8*time.Hour, 16*time.Hour)
	return &LeaderboardService{db: db, calendar: c}
}

type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	GroupID        uint    `json:"group_id"`
	GroupName      string  `json:"group_name"`
	MemberCount    int     `json:"member_count"`
	CompletedTasks int     `json:"completed_tasks"`
	TotalTasks     int     `json:"total_tasks"`
	AvgSchoolHours float64 `json:"avg_school_hours"`
}

// Ranking computes the current standings across all groups. Groups with
// no assigned projects still appear, at the bottom with zero counts.
func (s *LeaderboardService) Ranking() ([]LeaderboardEntry, error) {
	var groups []models.Group
	if err := s.db.Find(&groups).Error; err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(groups))
	for _, g := range groups {
		entry, err := s.entryFor(&g)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CompletedTasks != entries[j].CompletedTasks {
			return entries[i].CompletedTasks > entries[j].CompletedTasks
		}
		// Faster average wins the tie; groups with no completions
		// (average 0 by definition) rank after groups with any.
		if entries[i].AvgSchoolHours == 0 {
			return false
		}
		if entries[j].AvgSchoolHours == 0 {
			return true
		}
		return entries[i].AvgSchoolHours < entries[j].AvgSchoolHours
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (s *LeaderboardService) entryFor(group *models.Group) (*LeaderboardEntry, error) {
	entry := &LeaderboardEntry{
		GroupID:   group.ID,
		GroupName: group.Name,
	}

	var memberCount int64
	if err := s.db.Model(&models.GroupMember{}).Where("group_id = ?", group.ID).Count(&memberCount).Error; err != nil {
		return nil, err
	}
	entry.MemberCount = int(memberCount)

	var tasks []models.Task
	if err := s.db.
		Joins("JOIN projects ON projects.id = tasks.project_id").
		Where("projects.group_id = ? AND projects.deleted_at IS NULL", group.ID).
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	var totalHours float64
	for _, t := range tasks {
		entry.TotalTasks++
		if !t.IsCompleted || t.CompletedAt == nil {
			continue
		}
		entry.CompletedTasks++
		totalHours += s.schoolHoursBetween(t.CreatedAt, *t.CompletedAt)
	}

	if entry.CompletedTasks > 0 {
		entry.AvgSchoolHours = totalHours / float64(entry.CompletedTasks)
	}
	return entry, nil
}

// schoolHoursBetween measures elapsed school time between two instants.
func (s *LeaderboardService) schoolHoursBetween(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}
	return s.calendar.WorkHoursInRange(start, end).Hours()
}

// ActivityItem is one row of the recent-activity feed shown next to the
// standings.
type ActivityItem struct {
	Level     string    `json:"level"`
	Module    string    `json:"module"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// RecentActivity returns the latest audit entries for the activity feed.
func (s *LeaderboardService) RecentActivity(limit int) ([]ActivityItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var logs []models.SystemLog
	if err := s.db.
		Where("module IN ?", []string{"Submission", "Project", "Group"}).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, err
	}

	items := make([]ActivityItem, 0, len(logs))
	for _, l := range logs {
		items = append(items, ActivityItem{
			Level:     l.Level,
			Module:    l.Module,
			Action:    l.Action,
			Message:   l.Message,
			CreatedAt: l.CreatedAt,
		})
	}
	return items, nil
}
