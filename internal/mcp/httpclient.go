package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/ironsession/internal/models"
	"github.com/claude/ironsession/internal/storage"
	"github.com/google/uuid"
)

// HTTPClient implements DataSource by calling the IronSession REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// statusError is returned for any non-200 response.
type statusError struct {
	path string
	code int
	body []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("httpclient: %s returned %d: %s", e.path, e.code, e.body)
}

// bucketToPeriod maps MCP bucket values to the REST API period parameter.
func bucketToPeriod(bucket string) string {
	if bucket == "1 month" {
		return "monthly"
	}
	return "weekly"
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{path: path, code: resp.StatusCode, body: body}
	}

	return body, nil
}

// getJSON fetches path and decodes the body into out.
func (c *HTTPClient) getJSON(ctx context.Context, path string, params url.Values, what string, out any) error {
	body, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", what, err)
	}
	return nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

// FindActiveSession reads the live snapshot for the workout. The server
// recovers the session on that request if it was not loaded yet.
func (c *HTTPClient) FindActiveSession(ctx context.Context, _ int, workoutName string) (*models.SessionRow, error) {
	var snap struct {
		Session *models.SessionRow `json:"session"`
	}
	if err := c.getJSON(ctx, "/api/v1/sessions/"+url.PathEscape(workoutName), nil, "session snapshot", &snap); err != nil {
		return nil, err
	}
	return snap.Session, nil
}

func (c *HTTPClient) ListSessions(ctx context.Context, start, end time.Time, _ int) ([]models.SessionRow, error) {
	var sessions []models.SessionRow
	if err := c.getJSON(ctx, "/api/v1/history/sessions", timeParams(start, end), "sessions", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// sessionDetail mirrors the body of GET /api/v1/history/sessions/{id}/sets.
type sessionDetail struct {
	Session models.SessionRow  `json:"session"`
	Sets    []models.SetLogRow `json:"sets"`
}

func (c *HTTPClient) sessionDetail(ctx context.Context, sessionID uuid.UUID) (*sessionDetail, error) {
	var d sessionDetail
	err := c.getJSON(ctx, "/api/v1/history/sessions/"+sessionID.String()+"/sets", nil, "session detail", &d)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, storage.ErrSessionNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) GetSession(ctx context.Context, sessionID uuid.UUID, _ int) (*models.SessionRow, error) {
	d, err := c.sessionDetail(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &d.Session, nil
}

func (c *HTTPClient) ListSessionSetLogs(ctx context.Context, sessionID uuid.UUID, _ int) ([]models.SetLogRow, error) {
	d, err := c.sessionDetail(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return d.Sets, nil
}

func (c *HTTPClient) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, _ int) ([]storage.TrainingSummaryPeriod, error) {
	params := timeParams(start, end)
	params.Set("period", bucketToPeriod(bucket))

	var periods []storage.TrainingSummaryPeriod
	if err := c.getJSON(ctx, "/api/v1/history/summary", params, "training summary", &periods); err != nil {
		return nil, err
	}
	return periods, nil
}

func (c *HTTPClient) ListPrescriptions(ctx context.Context, _ int) ([]models.Prescription, error) {
	var prescriptions []models.Prescription
	if err := c.getJSON(ctx, "/api/v1/prescriptions", nil, "prescriptions", &prescriptions); err != nil {
		return nil, err
	}
	return prescriptions, nil
}

func (c *HTTPClient) GetDataStats(ctx context.Context, _ int) (*storage.DataStats, error) {
	var stats storage.DataStats
	if err := c.getJSON(ctx, "/api/v1/stats", nil, "stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
