// Package apiclient talks to a running dubber daemon over its HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dubber/internal/api"
)

// ErrUnavailable is returned when no daemon address is configured.
var ErrUnavailable = errors.New("daemon API unavailable")

// Error is a non-2xx reply from the daemon.
type Error struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.StatusCode)
	}
	return e.Message
}

// Client wraps the daemon API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New builds a client for the daemon listening on bind (host:port or URL).
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse daemon address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout: log follow blocks server-side; callers bound requests with ctx.
		http: &http.Client{},
	}, nil
}

// LogQuery selects job log lines. A negative Offset reads the last Limit lines.
type LogQuery struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   int
	Stage  string
	Level  string
}

// Submit creates a job.
func (c *Client) Submit(ctx context.Context, req api.SubmitRequest) (api.Job, error) {
	var resp api.JobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &resp)
	return resp.Job, err
}

// Job fetches one job.
func (c *Client) Job(ctx context.Context, id string) (api.Job, error) {
	var resp api.JobResponse
	err := c.do(ctx, http.MethodGet, jobPath(id), nil, nil, &resp)
	return resp.Job, err
}

// Jobs lists jobs, optionally filtered by status.
func (c *Client) Jobs(ctx context.Context, statuses ...string) ([]api.Job, error) {
	values := url.Values{}
	if len(statuses) > 0 {
		values.Set("status", strings.Join(statuses, ","))
	}
	var resp api.JobListResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", values, nil, &resp)
	return resp.Jobs, err
}

// Cancel requests cancellation and returns the job afterwards.
func (c *Client) Cancel(ctx context.Context, id string) (api.Job, error) {
	var resp api.JobResponse
	err := c.do(ctx, http.MethodPost, jobPath(id)+"/cancel", nil, nil, &resp)
	return resp.Job, err
}

// Remove purges a finished job.
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, jobPath(id), nil, nil, nil)
}

// Download streams the dubbed result into w and returns the served file name.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (string, error) {
	resp, err := c.send(ctx, http.MethodGet, jobPath(id)+"/result", nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("download result: %w", err)
	}
	name := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}
	return name, nil
}

// Events returns a job's events after since.
func (c *Client) Events(ctx context.Context, id string, since int64) (api.EventsResponse, error) {
	values := url.Values{}
	if since > 0 {
		values.Set("since", strconv.FormatInt(since, 10))
	}
	var resp api.EventsResponse
	err := c.do(ctx, http.MethodGet, jobPath(id)+"/events", values, nil, &resp)
	return resp, err
}

// Log reads lines from a job log.
func (c *Client) Log(ctx context.Context, id string, q LogQuery) (api.LogResponse, error) {
	values := url.Values{}
	if q.Offset != 0 {
		values.Set("offset", strconv.FormatInt(q.Offset, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
		if q.Wait > 0 {
			values.Set("wait", strconv.Itoa(q.Wait))
		}
	}
	if s := strings.TrimSpace(q.Stage); s != "" {
		values.Set("stage", s)
	}
	if l := strings.TrimSpace(q.Level); l != "" {
		values.Set("level", l)
	}
	var resp api.LogResponse
	err := c.do(ctx, http.MethodGet, jobPath(id)+"/log", values, nil, &resp)
	return resp, err
}

// Stats returns totals, per-status counts and recent jobs.
func (c *Client) Stats(ctx context.Context) (api.StatsResponse, error) {
	var resp api.StatsResponse
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil, &resp)
	return resp, err
}

// Health returns daemon readiness. A not-ready daemon still yields a report.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &resp)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		return resp, nil
	}
	return resp, err
}

// Voices lists catalog voices for a language.
func (c *Client) Voices(ctx context.Context, language string) (api.VoicesResponse, error) {
	values := url.Values{"language": {language}}
	var resp api.VoicesResponse
	err := c.do(ctx, http.MethodGet, "/api/voices", values, nil, &resp)
	return resp, err
}

func jobPath(id string) string {
	return "/api/jobs/" + url.PathEscape(strings.TrimSpace(id))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body)
	if resp == nil {
		return err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil && err == nil {
			return fmt.Errorf("decode %s response: %w", path, decodeErr)
		}
	}
	return err
}

// send performs the request. On a non-2xx status the response is returned
// alongside an *Error so health reports can still be decoded.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	if c == nil {
		return nil, ErrUnavailable
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	apiErr := &Error{StatusCode: resp.StatusCode}
	var decoded api.ErrorResponse
	if json.Unmarshal(payload, &decoded) == nil {
		apiErr.Kind = decoded.Kind
		apiErr.Message = decoded.Error
	}
	resp.Body = io.NopCloser(bytes.NewReader(payload))
	return resp, apiErr
}

// IsUnavailable reports whether err means no daemon is listening.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}

// IsKind reports whether err is a daemon error of the given kind.
func IsKind(err error, kind string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
