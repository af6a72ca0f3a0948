package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lenslink/messaging/pkg/moderation"
)

// Server holds the wired dependencies for the HTTP surface. Storage and the
// cipher are package-level (store, security) as elsewhere in this codebase;
// the moderation gate is per-deployment policy and is injected.
type Server struct {
	Gate *moderation.Gate
}

// Router returns the versioned API router. Identity is already verified by
// the auth middlewares; handlers read the caller id from the request context.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/messages/send", s.sendMessage).Methods(http.MethodPost)
	v1.HandleFunc("/messages", s.listMessages).Methods(http.MethodGet)
	v1.HandleFunc("/messages/{id}/read", s.markRead).Methods(http.MethodPut)
	v1.HandleFunc("/conversations", s.listConversations).Methods(http.MethodGet)
	return r
}
