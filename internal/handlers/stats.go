package handlers

import (
	"net/http"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalUsers    int64  `json:"totalUsers"`
	TotalMessages int64  `json:"totalMessages"`
	OnlineUsers   int    `json:"onlineUsers"`
	StorageMode   string `json:"storageMode"`
	Database      string `json:"database"`
}

// Stats returns service-wide counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, err := h.store.CountUsers(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	totalMessages, err := h.store.CountMessages(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalUsers:    totalUsers,
		TotalMessages: totalMessages,
		OnlineUsers:   h.presence.Len(),
		StorageMode:   h.files.Mode(),
		Database:      h.storeKind,
	})
}
