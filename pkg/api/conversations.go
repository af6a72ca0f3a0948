package api

import (
	"net/http"

	"github.com/lenslink/messaging/pkg/auth"
	"github.com/lenslink/messaging/pkg/logger"
	"github.com/lenslink/messaging/pkg/models"
	"github.com/lenslink/messaging/pkg/store"
	"github.com/lenslink/messaging/pkg/utils"
)

// listConversations returns the caller's counterparties ordered by most
// recent activity, derived from the message log on demand.
func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserIDFromContext(r.Context())
	if caller == "" {
		utils.JSONError(w, http.StatusUnauthorized, "identity missing")
		return
	}
	convs, err := store.ListConversations(caller)
	if err != nil {
		logger.Error("list_conversations_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if convs == nil {
		convs = []models.ConversationSummary{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}{Conversations: convs})
}
