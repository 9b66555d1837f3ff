package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/recap/internal/credential"
	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "http://127.0.0.1:8000"
	maxBodyBytes   = 4 << 20
)

// APIServiceOpts configures an [APIService].
type APIServiceOpts struct {
	BaseURL     string
	HTTPClient  *http.Client      // defaults to a client with Timeout
	Timeout     time.Duration     // used only when HTTPClient is nil
	Credentials credential.Source // nil sends unauthenticated requests
	RateLimit   float64           // requests per second; 0 disables limiting
	UserAgent   string
}

// APIService provides typed access to the recap REST API.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	creds      credential.Source
	limiter    *rate.Limiter
	userAgent  string
}

// NewAPIService creates a new API service instance.
func NewAPIService(opts APIServiceOpts) *APIService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "recap"
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &APIService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		creds:      opts.Credentials,
		limiter:    limiter,
		userAgent:  opts.UserAgent,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs an authenticated GET request to path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.raw(ctx, http.MethodGet, path, nil)
}

// Post performs an authenticated POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.raw(ctx, http.MethodPost, path, data)
}

func (a *APIService) raw(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	resp, err := a.send(ctx, method, path, nil, body, a.creds != nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// ListTasks returns one page of tasks. A processing status filter matches every non-terminal task.
func (a *APIService) ListTasks(ctx context.Context, filter models.TaskFilter) (*models.TaskPage, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	setPage(q, filter.Page, filter.PageSize)

	var page models.TaskPage
	if err := a.do(ctx, http.MethodGet, "/api/tasks", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTask returns a single task.
func (a *APIService) GetTask(ctx context.Context, id string) (*models.TaskSummary, error) {
	var task models.TaskSummary
	err := a.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, nil, &task)
	if errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListNotifications returns one page of the notification feed.
func (a *APIService) ListNotifications(ctx context.Context, p models.Pagination) (*models.NotificationPage, error) {
	q := url.Values{}
	setPage(q, p.Page, p.PageSize)
	if p.UnreadOnly {
		q.Set("unread_only", "true")
	}

	var page models.NotificationPage
	if err := a.do(ctx, http.MethodGet, "/api/notifications", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// MarkNotificationRead marks one notification as read.
func (a *APIService) MarkNotificationRead(ctx context.Context, id string) error {
	err := a.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil)
	if errors.Is(err, errNotFound) {
		return fmt.Errorf("%w: %s", shared.ErrNotificationNotFound, id)
	}
	return err
}

// MarkAllNotificationsRead marks the whole feed as read.
func (a *APIService) MarkAllNotificationsRead(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/notifications/read-all", nil, nil, nil)
}

// Health checks that the API is reachable. It does not need a session.
func (a *APIService) Health(ctx context.Context) error {
	resp, err := a.send(ctx, http.MethodGet, "/health", nil, nil, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	return statusError(resp.StatusCode, "")
}

var errNotFound = errors.New("not found")

// do sends an authenticated request and decodes the envelope's data into out.
func (a *APIService) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := a.send(ctx, method, path, q, body, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env models.Envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env)

	if err := statusError(resp.StatusCode, env.Message); err != nil {
		return err
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, decodeErr)
	}
	if env.Code != 0 {
		return fmt.Errorf("%w: %s %s: code %d: %s", shared.ErrAPIRequest, method, path, env.Code, env.Message)
	}

	if out != nil && env.HasData() {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: failed to decode data: %v", shared.ErrAPIRequest, err)
		}
	}
	return nil
}

func (a *APIService) send(ctx context.Context, method, path string, q url.Values, body io.Reader, auth bool) (*http.Response, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	fullURL := a.baseURL + path
	if len(q) > 0 {
		fullURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("X-Request-ID", shared.GenerateID())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if auth {
		if a.creds == nil {
			return nil, shared.ErrNotAuthenticated
		}
		tok, err := a.creds.SessionCredential(ctx)
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, shared.ErrNotAuthenticated
		}
		tok.SetAuthHeader(req)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return resp, nil
}

func statusError(code int, message string) error {
	if message == "" {
		message = http.StatusText(code)
	}

	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, message)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", errNotFound, shared.ErrAPIRequest)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: status %d: %s", shared.ErrServiceUnavailable, code, message)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, code, message)
	}
}

func setPage(q url.Values, page, size int) {
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		q.Set("page_size", strconv.Itoa(size))
	}
}
