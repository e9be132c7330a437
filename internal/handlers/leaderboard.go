package handlers

import (
	"strconv"

	"github.com/classtask/taskmaster/backend/internal/services"
	"github.com/classtask/taskmaster/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

func NewLeaderboardHandler(db *gorm.DB) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: services.NewLeaderboardService(db)}
}

// Ranking returns the current group standings
// GET /api/leaderboard
func (h *LeaderboardHandler) Ranking(c *gin.Context) {
	entries, err := h.leaderboardService.Ranking()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, entries)
}

// Activity returns the recent-activity feed
// GET /api/leaderboard/activity
func (h *LeaderboardHandler) Activity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	items, err := h.leaderboardService.RecentActivity(limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, items)
}
