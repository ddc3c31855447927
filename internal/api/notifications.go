package api

import (
	"net/http"

	"github.com/oapi-codegen/runtime"
	"github.com/reliefdesk/reliefdesk-backend/internal/notifications"
)

type NotificationList struct {
	Data []notifications.Notification `json:"data"`
}

func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := s.authorize(w, r, nil)
	if !ok {
		return
	}

	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, http.StatusBadRequest, ValidationErr("Invalid query parameter", []ErrorDetail{{Field: "limit", Message: err.Error()}}))
		return
	}
	l, _ := parsePagination(limit, nil)

	data := []notifications.Notification{}
	if s.notifier != nil {
		data = s.notifier.Recent(id.UserID, int(l))
	}
	writeJSON(w, http.StatusOK, NotificationList{Data: data})
}
