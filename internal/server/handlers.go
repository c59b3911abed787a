package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/claude/ironsession/internal/models"
	"github.com/claude/ironsession/internal/storage"
	"github.com/claude/ironsession/internal/workout"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleListPrescriptions(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	list, err := s.db.ListPrescriptions(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if list == nil {
		list = []models.Prescription{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetPrescription(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	name, ok := workoutParam(w, r)
	if !ok {
		return
	}
	p, err := s.db.GetPrescription(r.Context(), uid, name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "prescription not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// prescriptionRequest is the JSON body for replacing a prescription.
type prescriptionRequest struct {
	Exercises []models.PrescribedExercise `json:"exercises"`
}

// validate checks the exercise list is non-empty, names are unique, and
// counts are in range.
func (p prescriptionRequest) validate() error {
	if len(p.Exercises) == 0 {
		return errors.New("at least one exercise is required")
	}
	seen := make(map[string]bool, len(p.Exercises))
	for _, ex := range p.Exercises {
		switch {
		case ex.ExerciseName == "":
			return errors.New("exercise_name is required")
		case seen[ex.ExerciseName]:
			return errors.New("duplicate exercise: " + ex.ExerciseName)
		case ex.Sets < 1:
			return errors.New("sets must be at least 1 for " + ex.ExerciseName)
		case ex.RestSeconds < 0 || ex.TargetReps < 0:
			return errors.New("rest_seconds and target_reps must not be negative for " + ex.ExerciseName)
		case ex.RestSeconds > workout.MaxRestSeconds:
			return fmt.Errorf("rest_seconds must be at most %d for %s", workout.MaxRestSeconds, ex.ExerciseName)
		case ex.Sets > math.MaxInt32 || ex.TargetReps > math.MaxInt32:
			return errors.New("sets and target_reps are out of range for " + ex.ExerciseName)
		}
		seen[ex.ExerciseName] = true
	}
	return nil
}

func (s *Server) handlePutPrescription(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	name, ok := workoutParam(w, r)
	if !ok {
		return
	}

	var req prescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	p := models.Prescription{UserID: uid, WorkoutName: name, Exercises: req.Exercises}
	if err := s.db.PutPrescription(r.Context(), p); err != nil {
		s.log.Error("saving prescription", "workout", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	sessions, err := s.db.ListSessions(r.Context(), start, end, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []models.SessionRow{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// sessionDetail is a stored session with its sets and derived summary.
type sessionDetail struct {
	Session models.SessionRow     `json:"session"`
	Sets    []models.SetLogRow    `json:"sets"`
	Summary models.SessionSummary `json:"summary"`
}

func (s *Server) handleSessionSets(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	session, err := s.db.GetSession(r.Context(), id, uid)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	sets, err := s.db.ListSessionSetLogs(r.Context(), id, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sets == nil {
		sets = []models.SetLogRow{}
	}

	duration := 0
	if session.TotalDurationSeconds != nil {
		duration = *session.TotalDurationSeconds
	}
	writeJSON(w, http.StatusOK, sessionDetail{
		Session: *session,
		Sets:    sets,
		Summary: workout.Summarize(session.ID, sets, duration),
	})
}

func (s *Server) handleTrainingSummary(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	bucket := "1 week"
	switch r.URL.Query().Get("period") {
	case "monthly":
		bucket = "1 month"
	case "weekly", "":
		bucket = "1 week"
	}

	periods, err := s.db.GetTrainingSummary(r.Context(), start, end, bucket, uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if periods == nil {
		periods = []storage.TrainingSummaryPeriod{}
	}
	writeJSON(w, http.StatusOK, periods)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	stats, err := s.db.GetDataStats(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// workoutParam returns the decoded {workout} path segment or writes 400.
func workoutParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "workout"))
	if err != nil || name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid workout name"})
		return "", false
	}
	return name, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		// Default: last 30 days
		end = time.Now()
		start = end.AddDate(0, 0, -30)
		return
	}

	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}
	return
}
