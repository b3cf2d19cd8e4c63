package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vidnag-tracker/internal/domain"
	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/domain/ports/adapter"
	"vidnag-tracker/internal/infra/logging"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var _ adapter.JobGateway = (*HTTPGateway)(nil)

// HTTPGateway implements JobGateway against the Vidnag download API.
type HTTPGateway struct {
	baseURL    string
	visibility string
	session    Session
	client     *http.Client
	now        func() time.Time
	log        *zerolog.Logger
}

// NewHTTPGateway creates a gateway. timeout bounds each request end to end.
func NewHTTPGateway(baseURL string, session Session, visibility string, timeout time.Duration, logger *zerolog.Logger) *HTTPGateway {
	if visibility == "" {
		visibility = "private"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		visibility: visibility,
		session:    session,
		client:     &http.Client{Timeout: timeout},
		now:        time.Now,
		log:        logger,
	}
}

// downloadRequest mirrors the server's DownloadRequest body.
type downloadRequest struct {
	URL        string `json:"url"`
	Visibility string `json:"visibility"`
}

type downloadResponse struct {
	JobID   json.Number `json:"job_id"`
	VideoID json.Number `json:"video_id"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
}

// jobStatusResponse mirrors the server's job status payload, including the
// transport metrics it attaches while yt-dlp is running.
type jobStatusResponse struct {
	JobID         json.Number `json:"job_id"`
	Status        string      `json:"status"`
	Progress      *float64    `json:"progress"`
	CurrentStep   *string     `json:"current_step"`
	ErrorMessage  *string     `json:"error_message"`
	DownloadSpeed *string     `json:"download_speed"`
	DownloadETA   *string     `json:"download_eta"`
	TotalSize     *string     `json:"total_size"`
	Video         *struct {
		ID        json.Number `json:"id"`
		SourceURL *string     `json:"source_url"`
	} `json:"video"`
}

type activeJobsResponse struct {
	Jobs []jobStatusResponse `json:"jobs"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

func (g *HTTPGateway) Submit(ctx context.Context, sourceRef string) (*model.SubmitResult, error) {
	var resp downloadResponse
	body := downloadRequest{URL: sourceRef, Visibility: g.visibility}
	if err := g.do(ctx, "submit", http.MethodPost, "/api/videos/download", body, &resp); err != nil {
		return nil, err
	}
	if resp.JobID.String() == "" {
		return nil, fmt.Errorf("submit: response has no job_id")
	}
	return &model.SubmitResult{
		JobID:           resp.JobID.String(),
		InitialStatus:   model.JobStatus(resp.Status),
		ServerEntityRef: resp.VideoID.String(),
		Message:         resp.Message,
	}, nil
}

func (g *HTTPGateway) GetStatus(ctx context.Context, jobID string) (*model.JobSnapshot, error) {
	var resp jobStatusResponse
	if err := g.do(ctx, "status", http.MethodGet, "/api/videos/download/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return nil, err
	}
	snap := resp.toSnapshot()
	if snap.JobID == "" {
		snap.JobID = jobID
	}
	return &snap, nil
}

func (g *HTTPGateway) Cancel(ctx context.Context, jobID string) error {
	return g.do(ctx, "cancel", http.MethodPost, "/api/videos/download/"+url.PathEscape(jobID)+"/cancel", nil, nil)
}

func (g *HTTPGateway) ListActiveForSession(ctx context.Context) ([]model.JobSnapshot, error) {
	var resp activeJobsResponse
	if err := g.do(ctx, "list_active", http.MethodGet, "/api/videos/download/active", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.JobSnapshot, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		out = append(out, j.toSnapshot())
	}
	return out, nil
}

func (r jobStatusResponse) toSnapshot() model.JobSnapshot {
	snap := model.JobSnapshot{
		JobID:  r.JobID.String(),
		Status: model.JobStatus(strings.ToLower(strings.TrimSpace(r.Status))),
	}
	if r.Progress != nil {
		p := model.ClampPercent(*r.Progress)
		snap.Progress.Percent = &p
	}
	snap.CurrentStep = deref(r.CurrentStep)
	snap.ErrorMessage = deref(r.ErrorMessage)
	snap.Progress.Rate = deref(r.DownloadSpeed)
	snap.Progress.ETA = deref(r.DownloadETA)
	snap.Progress.TotalSize = deref(r.TotalSize)
	if r.Video != nil {
		snap.ServerEntityRef = r.Video.ID.String()
		snap.SourceRef = deref(r.Video.SourceURL)
	}
	return snap
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// do sends one JSON request. in may be nil (no body); out may be nil (body ignored).
func (g *HTTPGateway) do(ctx context.Context, op, method, path string, in, out any) error {
	if g.session.Expired(g.now()) {
		return fmt.Errorf("%s: %w", op, domain.ErrSessionExpired)
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request data: %w", op, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if g.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.session.Token)
	}
	reqID := logging.TraceID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: failed to send request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response body: %w", op, err)
	}
	g.log.Trace().
		Str("op", op).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("gateway call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Message: detailMessage(body)}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: failed to unmarshal response: %w", op, err)
	}
	return nil
}

// detailMessage extracts FastAPI's "detail", which is either a string or a
// list of validation errors.
func detailMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || len(er.Detail) == 0 {
		s := strings.TrimSpace(string(body))
		if len(s) > 200 {
			s = s[:200]
		}
		return s
	}
	var msg string
	if err := json.Unmarshal(er.Detail, &msg); err == nil {
		return msg
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(er.Detail, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				parts = append(parts, it.Msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return string(er.Detail)
}
