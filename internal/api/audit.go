package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/showctl/internal/audit"
	"github.com/nerrad567/showctl/internal/automation"
)

// auditLog queues an entry for an operator command on a scene. It is
// best-effort: with no audit writer configured it does nothing.
func (s *Server) auditLog(r *http.Request, action string, sc *automation.SceneContext, details map[string]any) {
	if s.audit == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	details["scene_id"] = sc.ID()
	details["request_id"] = r.Context().Value(ctxKeyRequestID)

	s.audit.Log(audit.Entry{
		Action:     action,
		EntityType: audit.EntityScene,
		EntityID:   sc.Name(),
		UserID:     operatorFromContext(r.Context()),
		Source:     audit.SourceAPI,
		Details:    details,
	})
}

// handleListAudit pages through the audit trail, newest first.
//
// Query parameters:
//   - action, entity_type, entity_id: exact-match filters
//   - since: RFC 3339 lower bound on created_at
//   - limit, offset: paging (default 50, max 200)
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
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

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit log", "error", err)
		writeInternalError(w, "failed to list audit log")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
