package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/showctl/internal/audit"
	"github.com/nerrad567/showctl/internal/automation"
)

// History page size bounds.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// cueScene is implemented by scenes that expose named cues.
type cueScene interface {
	Cues() []string
	Trigger(name string) (*automation.ActionTask, error)
}

// sceneResponse is a scene description plus its cues, when it has any.
type sceneResponse struct {
	automation.Description
	Cues []string `json:"cues,omitempty"`
}

// triggerResponse acknowledges an accepted cue.
type triggerResponse struct {
	TaskID string `json:"task_id"`
	Scene  string `json:"scene"`
	Cue    string `json:"cue"`
}

func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	scenes := s.manager.Scenes()
	writeJSON(w, http.StatusOK, map[string]any{"scenes": scenes, "count": len(scenes)})
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.sceneFromPath(w, r)
	if !ok {
		return
	}
	resp := sceneResponse{Description: sc.Describe()}
	if cs, ok := sc.Scene().(cueScene); ok {
		resp.Cues = cs.Cues()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartScene(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.sceneFromPath(w, r)
	if !ok {
		return
	}
	if err := s.manager.StartScene(sc.ID()); err != nil {
		writeDomainError(w, err)
		return
	}
	s.auditLog(r, audit.ActionSceneStart, sc, nil)
	writeJSON(w, http.StatusOK, sc.Describe())
}

// handleStopScene returns 202 because the running action may still be
// settling when the response is written.
func (s *Server) handleStopScene(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.sceneFromPath(w, r)
	if !ok {
		return
	}
	if err := s.manager.StopScene(sc.ID()); err != nil {
		writeDomainError(w, err)
		return
	}
	s.auditLog(r, audit.ActionSceneStop, sc, nil)
	writeJSON(w, http.StatusAccepted, sc.Describe())
}

func (s *Server) handleListCues(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.sceneFromPath(w, r)
	if !ok {
		return
	}
	cs, ok := sc.Scene().(cueScene)
	if !ok {
		writeNotFound(w, "scene has no cues")
		return
	}
	cues := cs.Cues()
	writeJSON(w, http.StatusOK, map[string]any{"cues": cues, "count": len(cues)})
}

func (s *Server) handleTriggerCue(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.sceneFromPath(w, r)
	if !ok {
		return
	}
	cs, ok := sc.Scene().(cueScene)
	if !ok {
		writeNotFound(w, "scene has no cues")
		return
	}
	cue := chi.URLParam(r, "cue")
	task, err := cs.Trigger(cue)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.auditLog(r, audit.ActionCueTrigger, sc, map[string]any{"cue": cue, "task_id": task.ID()})
	writeJSON(w, http.StatusAccepted, triggerResponse{TaskID: task.ID(), Scene: sc.Name(), Cue: cue})
}

// handleSceneHistory lists the scene's most recent settlements.
//
// Query parameters:
//   - limit: page size, default 50, max 500
func (s *Server) handleSceneHistory(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.sceneFromPath(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "action history not configured")
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.history.ListByScene(r.Context(), sc.Name(), limit)
	if err != nil {
		s.logger.Error("listing action history", "scene", sc.Name(), "error", err)
		writeInternalError(w, "failed to list history")
		return
	}
	if entries == nil {
		entries = []automation.Settlement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": entries, "count": len(entries)})
}

// sceneFromPath resolves {id}. It writes the error response and reports
// false when the id is malformed or unknown.
func (s *Server) sceneFromPath(w http.ResponseWriter, r *http.Request) (*automation.SceneContext, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		writeBadRequest(w, "scene id must be a non-negative integer")
		return nil, false
	}
	sc, err := s.manager.Scene(id)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return sc, true
}

// queryInt parses an optional positive integer query parameter, clamped to upper.
func queryInt(r *http.Request, name string, def, upper int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	if n == 0 {
		return def, nil
	}
	if n > upper {
		n = upper
	}
	return n, nil
}
