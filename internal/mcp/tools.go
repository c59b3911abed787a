package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/claude/ironsession/internal/models"
	"github.com/claude/ironsession/internal/storage"
	"github.com/claude/ironsession/internal/workout"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// timeRange returns start/end, with end defaulting to now and start to
// fallback before end.
func timeRange(startStr, endStr string, fallback func(time.Time) time.Time) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = fallback(end)
	}

	return start, end, nil
}

func lastDays(n int) func(time.Time) time.Time {
	return func(end time.Time) time.Time { return end.AddDate(0, 0, -n) }
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetActiveSession = mcp.NewTool("get_active_session",
	mcp.WithDescription("Return the athlete's active session for a workout, with elapsed time and every set persisted so far. Returns active=false when no session is running."),
	mcp.WithString("workout", mcp.Required(), mcp.Description("Workout name (e.g. 'Leg Day')")),
)

var toolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List training sessions started in a time range, newest first. Includes status (active/finished/abandoned) and total duration for finished sessions."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("workout", mcp.Description("Filter by workout name (case-insensitive partial match)")),
	mcp.WithString("status", mcp.Description("Filter by session status"), mcp.Enum("active", "finished", "abandoned")),
)

var toolGetSessionSets = mcp.NewTool("get_session_sets",
	mcp.WithDescription("Return one session with all of its logged sets (weight, reps, prescribed rest and whether rest was respected) and the derived summary (total sets, volume, exercises completed)."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
)

var toolGetTrainingSummary = mcp.NewTool("get_training_summary",
	mcp.WithDescription("Weekly or monthly totals over finished sessions: session count, sets, reps, volume in kg, average duration, and the share of sets where rest was respected."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 6 months ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to '1 week'."), mcp.Enum("1 week", "1 month")),
)

var toolListPrescriptions = mcp.NewTool("list_prescriptions",
	mcp.WithDescription("List the athlete's workout prescriptions: ordered exercises with prescribed set count, rest seconds, and target reps."),
	mcp.WithString("workout", mcp.Description("Only return the prescription for this workout name (exact match)")),
)

// --- Tool handlers ---

// activeSession is the get_active_session payload.
type activeSession struct {
	Active         bool               `json:"active"`
	Session        *models.SessionRow `json:"session,omitempty"`
	ElapsedSeconds int                `json:"elapsed_seconds"`
	Sets           []models.SetLogRow `json:"sets"`
}

func (h *handlers) getActiveSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("workout")
	if err != nil || strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("workout parameter is required"), nil
	}
	uid := UserIDFromContext(ctx)

	session, err := h.ds.FindActiveSession(ctx, uid, name)
	if err != nil {
		h.log.Error("mcp get_active_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	out := activeSession{Sets: []models.SetLogRow{}}
	if session != nil {
		out.Active = true
		out.Session = session
		out.ElapsedSeconds = workout.Elapsed(time.Now(), session.StartedAt)

		sets, err := h.ds.ListSessionSetLogs(ctx, session.ID, uid)
		if err != nil {
			h.log.Error("mcp get_active_session: sets", "error", err)
			return mcp.NewToolResultError("query failed: " + err.Error()), nil
		}
		if sets != nil {
			out.Sets = sets
		}
	}

	return jsonResult(out)
}

func (h *handlers) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""), lastDays(30))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	uid := UserIDFromContext(ctx)

	sessions, err := h.ds.ListSessions(ctx, start, end, uid)
	if err != nil {
		h.log.Error("mcp list_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	nameFilter := strings.ToLower(req.GetString("workout", ""))
	status := req.GetString("status", "")
	filtered := make([]models.SessionRow, 0, len(sessions))
	for _, s := range sessions {
		if nameFilter != "" && !strings.Contains(strings.ToLower(s.WorkoutName), nameFilter) {
			continue
		}
		if status != "" && string(s.Status) != status {
			continue
		}
		filtered = append(filtered, s)
	}

	return jsonResult(filtered)
}

// sessionSets is the get_session_sets payload.
type sessionSets struct {
	Session models.SessionRow     `json:"session"`
	Sets    []models.SetLogRow    `json:"sets"`
	Summary models.SessionSummary `json:"summary"`
}

func (h *handlers) getSessionSets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError("invalid session_id: " + err.Error()), nil
	}
	uid := UserIDFromContext(ctx)

	session, err := h.ds.GetSession(ctx, id, uid)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return mcp.NewToolResultError("session not found"), nil
		}
		h.log.Error("mcp get_session_sets", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	sets, err := h.ds.ListSessionSetLogs(ctx, id, uid)
	if err != nil {
		h.log.Error("mcp get_session_sets: sets", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if sets == nil {
		sets = []models.SetLogRow{}
	}

	duration := 0
	if session.TotalDurationSeconds != nil {
		duration = *session.TotalDurationSeconds
	}
	return jsonResult(sessionSets{
		Session: *session,
		Sets:    sets,
		Summary: workout.Summarize(session.ID, sets, duration),
	})
}

func (h *handlers) getTrainingSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""),
		func(end time.Time) time.Time { return end.AddDate(0, -6, 0) })
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	bucket := req.GetString("bucket", "1 week")
	uid := UserIDFromContext(ctx)

	summary, err := h.ds.GetTrainingSummary(ctx, start, end, bucket, uid)
	if err != nil {
		h.log.Error("mcp get_training_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if summary == nil {
		summary = []storage.TrainingSummaryPeriod{}
	}

	return jsonResult(summary)
}

func (h *handlers) listPrescriptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)

	prescriptions, err := h.ds.ListPrescriptions(ctx, uid)
	if err != nil {
		h.log.Error("mcp list_prescriptions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result := []models.Prescription{}
	name := req.GetString("workout", "")
	for _, p := range prescriptions {
		if name == "" || p.WorkoutName == name {
			result = append(result, p)
		}
	}

	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
