package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stackspad/internal/ingest"
)

// SyncHandler triggers a manual sync cycle.
type SyncHandler struct {
	runner *ingest.Runner
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(runner *ingest.Runner) *SyncHandler {
	return &SyncHandler{runner: runner}
}

// Trigger godoc
// POST /api/sync
//
// Runs one fetch-decode-reconcile pass inline and reports the counts.
// Safe to call at any time; the background loop and a manual trigger
// reconciling the same window just produce duplicates.
func (h *SyncHandler) Trigger(c *gin.Context) {
	counts, err := h.runner.SyncOnce(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_SYNC_FAILED", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"fetched":    counts.Fetched,
		"decoded":    counts.Decoded,
		"applied":    counts.Applied,
		"duplicates": counts.Duplicates,
		"rejected":   counts.Rejected,
		"errors":     counts.Errors,
	})
}
