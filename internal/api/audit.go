package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-tasmota/internal/audit"
)

// recordAudit stores an operator action. Failures are logged; the action
// itself already happened.
func (s *Server) recordAudit(r *http.Request, e *audit.Entry) {
	if s.audit == nil {
		return
	}
	e.Subject = subjectOf(r)
	if err := s.audit.Record(r.Context(), e); err != nil {
		s.logger.Error("recording audit entry", "action", e.Action, "error", err)
	}
}

// handleListAudit returns the audit trail, newest first.
//
// Query parameters: action, topic, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.Filter{
		Action: audit.Action(q.Get("action")),
		Topic:  q.Get("topic"),
	}

	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	page, err := s.audit.List(r.Context(), f)
	if err != nil {
		s.logger.Error("listing audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, page)
}
