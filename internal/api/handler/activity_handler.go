package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stackspad/internal/domain"
	"stackspad/internal/storage"
)

// ActivityHandler serves the activity timeline and the trader leaderboard.
type ActivityHandler struct {
	activity storage.ActivityStore
	trades   storage.TradeStore
}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(activity storage.ActivityStore, trades storage.TradeStore) *ActivityHandler {
	return &ActivityHandler{activity: activity, trades: trades}
}

// List godoc
// GET /api/activity?type=buy&limit=50
func (h *ActivityHandler) List(c *gin.Context) {
	opts := storage.ListActivityOptions{
		EventType: domain.ActivityType(c.Query("type")),
		Limit:     parseLimit(c, 50, 200),
	}

	entries, err := h.activity.List(c.Request.Context(), opts)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch activity")
		return
	}

	views := make([]ActivityView, len(entries))
	for i, a := range entries {
		views[i] = newActivityView(a)
	}
	respondSuccess(c, http.StatusOK, views)
}

// Leaderboard godoc
// GET /api/leaderboard?limit=100
func (h *ActivityHandler) Leaderboard(c *gin.Context) {
	entries, err := h.trades.Leaderboard(c.Request.Context(), parseLimit(c, 100, 500))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch leaderboard")
		return
	}

	views := make([]LeaderboardView, len(entries))
	for i, e := range entries {
		views[i] = newLeaderboardView(e)
	}
	respondSuccess(c, http.StatusOK, views)
}
