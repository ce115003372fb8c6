package devserver

import (
	"net/http"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	respondOK(w, s.lib.Notifications(UserFromContext(r.Context())))
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	if err := s.lib.MarkRead(UserFromContext(r.Context()), id); err != nil {
		respondDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	respondDetail(w, http.StatusOK, "Notification marked as read.")
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	s.lib.ClearNotifications(UserFromContext(r.Context()))
	respondNoContent(w)
}
