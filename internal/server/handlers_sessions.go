package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/claude/ironsession/internal/workout"
)

// coordinator resolves the caller's coordinator for the {workout} segment,
// writing the error response itself on failure.
func (s *Server) coordinator(w http.ResponseWriter, r *http.Request) (*workout.Coordinator, int, string, bool) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return nil, 0, "", false
	}
	name, ok := workoutParam(w, r)
	if !ok {
		return nil, 0, "", false
	}
	c, err := s.sessions.Get(r.Context(), uid, name)
	if err != nil {
		s.writeEngineError(w, err)
		return nil, 0, "", false
	}
	return c, uid, name, true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	c, _, _, ok := s.coordinator(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	c, _, _, ok := s.coordinator(w, r)
	if !ok {
		return
	}
	session, err := c.Start(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	c, _, _, ok := s.coordinator(w, r)
	if !ok {
		return
	}
	recovered, err := c.Recover(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recovered": recovered,
		"snapshot":  c.Snapshot(),
	})
}

func (s *Server) handleLogSet(w http.ResponseWriter, r *http.Request) {
	c, _, _, ok := s.coordinator(w, r)
	if !ok {
		return
	}
	var in workout.SetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	row, err := c.LogSet(r.Context(), in)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"set":        row,
		"rest_timer": c.RestTimer(),
	})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	c, uid, name, ok := s.coordinator(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("force") != "true" && !c.CanCompleteWorkout() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "workout not complete; pass force=true to finish early",
			"snapshot": c.Snapshot(),
		})
		return
	}
	summary, err := s.sessions.Finish(r.Context(), uid, name)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// writeEngineError maps session engine errors to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status, code := engineErrorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("session engine error", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

func engineErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, workout.ErrPrescriptionNotFound):
		return http.StatusNotFound, "prescription_not_found"
	case errors.Is(err, workout.ErrInvalidSet):
		return http.StatusBadRequest, "invalid_set"
	case errors.Is(err, workout.ErrRestActive):
		return http.StatusConflict, "rest_active"
	case errors.Is(err, workout.ErrDuplicateSet):
		return http.StatusConflict, "duplicate_set"
	case errors.Is(err, workout.ErrSetOutOfOrder):
		return http.StatusConflict, "set_out_of_order"
	case errors.Is(err, workout.ErrUnknownExercise):
		return http.StatusConflict, "unknown_exercise"
	case errors.Is(err, workout.ErrNoActiveSession):
		return http.StatusConflict, "no_active_session"
	case errors.Is(err, workout.ErrSessionSuperseded):
		return http.StatusConflict, "session_superseded"
	case errors.Is(err, workout.ErrCoordinatorClosed):
		return http.StatusConflict, "coordinator_closed"
	case workout.IsPrecondition(err):
		return http.StatusConflict, "precondition"
	case workout.IsPersistence(err):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
