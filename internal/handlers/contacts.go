package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/chatterbox/internal/api/middleware"
)

// OnlineResponse lists the users with a live connection.
type OnlineResponse struct {
	Online []string `json:"online"`
}

// ListContacts returns every user the caller has not hidden.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	users, err := h.contacts.ListVisible(r.Context(), user.ID)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, users)
}

// HideContact removes {id} from the caller's contact list.
func (h *Handler) HideContact(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.contacts.Hide(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		h.Fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "contact removed"})
}

// OnlineContacts returns the IDs of users currently connected.
func (h *Handler) OnlineContacts(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, OnlineResponse{Online: h.presence.Online()})
}
