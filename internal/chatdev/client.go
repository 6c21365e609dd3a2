package chatdev

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// API is the set of operations the UI and poller need from the service.
// It is implemented by *Client and can be faked in tests.
type API interface {
	GenerateProject(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	GetTaskStatus(ctx context.Context, taskID int64) (*Task, error)
	ListTasks(ctx context.Context, query ListQuery) (TaskList, error)
	CancelTask(ctx context.Context, taskID int64) (*Task, error)
	DeleteTask(ctx context.Context, taskID int64) (DeleteResponse, error)
	BuildAPK(ctx context.Context, req BuildRequest) (BuildResponse, error)
	HealthCheck(ctx context.Context) (Health, error)
	SimpleHealthCheck(ctx context.Context) (Health, error)
	SetBaseURL(raw string) error
	SetAPIKey(key string)
	BaseURL() string
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

const (
	DefaultBaseURL = "http://localhost:8000/"
	APIPrefix      = "api/v1/"

	// MinTaskLength and MaxTaskLength bound a task description in characters.
	MinTaskLength = 10
	MaxTaskLength = 2000

	MinListLimit     = 1
	MaxListLimit     = 100
	DefaultListLimit = 10

	DefaultConfig = "Default"
	DefaultOrg    = "DefaultOrganization"
	DefaultModel  = "CLAUDE_3_5_SONNET"

	apiKeyParam         = "api_key"
	placeholderValue    = "string"
	defaultUserAgent    = "foundry/0.1"
	defaultTimeout      = 15 * time.Second
	maxResponseBodySize = 4 << 20
	tracerName          = "github.com/five82/foundry/internal/chatdev"
)

// Client talks to the code-generation HTTP API.
type Client struct {
	mu      sync.RWMutex
	baseURL string
	apiKey  string

	http      *http.Client
	logger    *slog.Logger
	tracer    trace.Tracer
	userAgent string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every request. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger attaches a log sink. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for baseURL, normalizing it to the versioned API path.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	normalized, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   normalized,
		apiKey:    apiKey,
		http:      &http.Client{Timeout: defaultTimeout},
		logger:    slog.New(slog.DiscardHandler),
		tracer:    otel.Tracer(tracerName),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL normalizes and stores a new base URL.
func (c *Client) SetBaseURL(raw string) error {
	normalized, err := parseBaseURL(raw)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.baseURL = normalized
	c.mu.Unlock()
	c.logger.Info("API URL set", "base_url", normalized)
	return nil
}

// SetAPIKey stores the key sent with authenticated requests.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
	c.logger.Info("API key updated")
}

func (c *Client) settings() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL, c.apiKey
}

// GenerateProject starts a new generation task.
func (c *Client) GenerateProject(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	const op = "generate project"
	if n := utf8.RuneCountInString(req.Task); n < MinTaskLength || n > MaxTaskLength {
		return GenerateResponse{}, c.invalid(ctx, op, fmt.Sprintf("task description must be between %d and %d characters", MinTaskLength, MaxTaskLength))
	}
	if strings.TrimSpace(req.Name) == "" {
		return GenerateResponse{}, c.invalid(ctx, op, "project name is required")
	}

	base, key := c.settings()
	payload := generatePayload{
		APIKey:   key,
		Task:     req.Task,
		Name:     req.Name,
		Config:   orDefault(req.Config, DefaultConfig),
		Org:      orDefault(req.Org, DefaultOrg),
		Model:    orDefault(req.Model, DefaultModel),
		Path:     req.Path,
		BuildAPK: req.BuildAPK,
		BaseURL:  strings.TrimSpace(req.BaseURL),
	}

	c.logger.InfoContext(ctx, "creating new project", "name", req.Name, "model", payload.Model)
	resp, err := c.exchange(ctx, request{op: op, method: http.MethodPost, url: base + "generate", body: payload})
	if err != nil {
		return GenerateResponse{}, c.fail(ctx, err)
	}
	switch resp.status {
	case http.StatusUnauthorized:
		return GenerateResponse{}, c.fail(ctx, authError(op, resp.status))
	case http.StatusUnprocessableEntity:
		return GenerateResponse{}, c.fail(ctx, validationError(op, resp.status, serverDetail(resp.body)))
	}

	var out GenerateResponse
	if err := resp.decode(op, &out); err != nil {
		return GenerateResponse{}, c.fail(ctx, err)
	}
	c.logger.InfoContext(ctx, "project generation task created", "task_id", out.TaskID, "status", string(out.Status))
	return out, nil
}

// GetTaskStatus fetches a full snapshot of one task.
func (c *Client) GetTaskStatus(ctx context.Context, taskID int64) (*Task, error) {
	const op = "get task status"
	if taskID <= 0 {
		return nil, c.invalid(ctx, op, "task_id must be a positive integer")
	}

	base, _ := c.settings()
	c.logger.DebugContext(ctx, "checking task status", "task_id", taskID)
	resp, err := c.exchange(ctx, request{op: op, method: http.MethodGet, url: base + "status/" + formatID(taskID), taskID: taskID})
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	if resp.status == http.StatusNotFound {
		return nil, c.fail(ctx, taskNotFound(op, resp.status, taskID))
	}

	var task Task
	if err := resp.decode(op, &task); err != nil {
		return nil, c.fail(ctx, err)
	}
	c.logger.InfoContext(ctx, "task status", "task_id", taskID, "status", string(task.Status), "apk_build_status", string(task.APKBuildStatus))
	return &task, nil
}

// ListTasks fetches one page of tasks, optionally filtered by status.
func (c *Client) ListTasks(ctx context.Context, query ListQuery) (TaskList, error) {
	const op = "list tasks"
	if query.Limit < MinListLimit || query.Limit > MaxListLimit {
		return TaskList{}, c.invalid(ctx, op, fmt.Sprintf("limit must be between %d and %d", MinListLimit, MaxListLimit))
	}
	if query.Offset < 0 {
		return TaskList{}, c.invalid(ctx, op, "offset must be non-negative")
	}
	if query.Status != "" && !query.Status.Valid() {
		return TaskList{}, c.invalid(ctx, op, fmt.Sprintf("unknown status filter %q", query.Status))
	}

	values := url.Values{}
	if query.Status != "" {
		values.Set("status", string(query.Status))
	}
	values.Set("limit", strconv.Itoa(query.Limit))
	values.Set("offset", strconv.Itoa(query.Offset))

	base, _ := c.settings()
	c.logger.InfoContext(ctx, "fetching tasks", "status", string(query.Status), "limit", query.Limit, "offset", query.Offset)
	resp, err := c.exchange(ctx, request{op: op, method: http.MethodGet, url: base + "tasks?" + values.Encode()})
	if err != nil {
		return TaskList{}, c.fail(ctx, err)
	}
	if resp.status == http.StatusUnprocessableEntity {
		return TaskList{}, c.fail(ctx, validationError(op, resp.status, serverDetail(resp.body)))
	}

	var out TaskList
	if err := resp.decode(op, &out); err != nil {
		return TaskList{}, c.fail(ctx, err)
	}
	c.logger.InfoContext(ctx, "fetched tasks", "count", len(out.Tasks), "total", out.Total)
	return out, nil
}

// CancelTask asks the server to cancel a pending or running task.
func (c *Client) CancelTask(ctx context.Context, taskID int64) (*Task, error) {
	const op = "cancel task"
	if taskID <= 0 {
		return nil, c.invalid(ctx, op, "task_id must be a positive integer")
	}

	base, key := c.settings()
	c.logger.InfoContext(ctx, "canceling task", "task_id", taskID)
	resp, err := c.exchange(ctx, request{
		op:     op,
		method: http.MethodPost,
		url:    base + "cancel/" + formatID(taskID),
		body:   authPayload{APIKey: key},
		taskID: taskID,
	})
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	switch resp.status {
	case http.StatusNotFound:
		return nil, c.fail(ctx, taskNotFound(op, resp.status, taskID))
	case http.StatusBadRequest:
		detail := orDefault(serverDetail(resp.body), "unknown error")
		return nil, c.fail(ctx, &Error{
			Kind:   KindConflict,
			Op:     op,
			Status: resp.status,
			TaskID: taskID,
			Detail: detail,
			Msg:    "cannot cancel task: " + detail,
		})
	case http.StatusUnauthorized:
		return nil, c.fail(ctx, authError(op, resp.status))
	}

	var task Task
	if err := resp.decode(op, &task); err != nil {
		return nil, c.fail(ctx, err)
	}
	c.logger.InfoContext(ctx, "task cancellation result", "task_id", taskID, "status", string(task.Status))
	return &task, nil
}

// DeleteTask removes a task record. The endpoint only honours header auth,
// so the key travels both in the body and in the api-key header.
func (c *Client) DeleteTask(ctx context.Context, taskID int64) (DeleteResponse, error) {
	const op = "delete task"
	if taskID <= 0 {
		return DeleteResponse{}, c.invalid(ctx, op, "task_id must be a positive integer")
	}

	base, key := c.settings()
	c.logger.InfoContext(ctx, "deleting task", "task_id", taskID)
	resp, err := c.exchange(ctx, request{
		op:        op,
		method:    http.MethodDelete,
		url:       base + "task/" + formatID(taskID),
		body:      authPayload{APIKey: key},
		apiKey:    key,
		keyHeader: true,
		taskID:    taskID,
	})
	if err != nil {
		return DeleteResponse{}, c.fail(ctx, err)
	}
	switch resp.status {
	case http.StatusNotFound:
		return DeleteResponse{}, c.fail(ctx, taskNotFound(op, resp.status, taskID))
	case http.StatusUnauthorized:
		return DeleteResponse{}, c.fail(ctx, authError(op, resp.status))
	}

	var out DeleteResponse
	if err := resp.decode(op, &out); err != nil {
		return DeleteResponse{}, c.fail(ctx, err)
	}
	c.logger.InfoContext(ctx, "task deleted", "task_id", taskID, "message", out.Message)
	return out, nil
}

// BuildAPK packages an existing project. Empty or placeholder organization and
// timestamp values are left out of the request.
func (c *Client) BuildAPK(ctx context.Context, req BuildRequest) (BuildResponse, error) {
	const op = "build apk"
	name := strings.TrimSpace(req.ProjectName)
	if name == "" {
		return BuildResponse{}, c.invalid(ctx, op, "project_name is required")
	}

	base, key := c.settings()
	payload := buildPayload{
		APIKey:       key,
		ProjectName:  name,
		Organization: stripPlaceholder(req.Organization),
		Timestamp:    stripPlaceholder(req.Timestamp),
	}

	c.logger.InfoContext(ctx, "building apk", "project", name, "organization", payload.Organization, "timestamp", payload.Timestamp)
	resp, err := c.exchange(ctx, request{
		op:        op,
		method:    http.MethodPost,
		url:       base + "build-apk",
		body:      payload,
		apiKey:    key,
		keyHeader: true,
	})
	if err != nil {
		return BuildResponse{}, c.fail(ctx, err)
	}
	switch resp.status {
	case http.StatusNotFound:
		return BuildResponse{}, c.fail(ctx, &Error{Kind: KindNotFound, Op: op, Status: resp.status, Detail: name, Msg: "project not found: " + name})
	case http.StatusUnauthorized:
		return BuildResponse{}, c.fail(ctx, authError(op, resp.status))
	case http.StatusUnprocessableEntity:
		return BuildResponse{}, c.fail(ctx, validationError(op, resp.status, serverDetail(resp.body)))
	}

	var out BuildResponse
	if err := resp.decode(op, &out); err != nil {
		return BuildResponse{}, c.fail(ctx, err)
	}
	if out.Success {
		c.logger.InfoContext(ctx, "apk built", "project", name, "apk_path", out.APKPath)
	} else {
		c.logger.ErrorContext(ctx, "apk build failed", "project", name, "message", out.Message)
	}
	return out, nil
}

// HealthCheck queries the versioned health endpoint.
func (c *Client) HealthCheck(ctx context.Context) (Health, error) {
	base, _ := c.settings()
	return c.health(ctx, "health check", base+"health")
}

// SimpleHealthCheck queries the unversioned health endpoint.
func (c *Client) SimpleHealthCheck(ctx context.Context) (Health, error) {
	base, _ := c.settings()
	return c.health(ctx, "simple health check", strings.ReplaceAll(base, APIPrefix, "")+"health")
}

func (c *Client) health(ctx context.Context, op, target string) (Health, error) {
	c.logger.InfoContext(ctx, "checking API health", "op", op)
	resp, err := c.exchange(ctx, request{op: op, method: http.MethodGet, url: target})
	if err != nil {
		return Health{}, c.fail(ctx, err)
	}
	var out Health
	if err := resp.decode(op, &out); err != nil {
		return Health{}, c.fail(ctx, err)
	}
	c.logger.InfoContext(ctx, "API health status", "op", op, "status", out.Status, "version", out.Version)
	return out, nil
}

type request struct {
	op        string
	method    string
	url       string
	body      any
	apiKey    string
	keyHeader bool
	taskID    int64
}

type response struct {
	path   string
	status int
	body   []byte
}

// decode rejects non-2xx responses that no operation special-cased, then
// decodes the JSON payload into dest.
func (r *response) decode(op string, dest any) error {
	if r.status < 200 || r.status >= 300 {
		return unexpectedStatus(op, r.path, r.status, serverDetail(r.body))
	}
	if err := json.Unmarshal(r.body, dest); err != nil {
		return &Error{Kind: KindTransport, Op: op, Status: r.status, Msg: "decode response", Err: err}
	}
	return nil
}

func (c *Client) exchange(ctx context.Context, r request) (*response, error) {
	ctx, span := c.tracer.Start(ctx, "chatdev."+strings.ReplaceAll(r.op, " ", "_"),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", r.method)),
	)
	defer span.End()
	if r.taskID > 0 {
		span.SetAttributes(attribute.Int64("task.id", r.taskID))
	}

	transportErr := func(msg string, err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return &Error{Kind: KindTransport, Op: r.op, TaskID: r.taskID, Msg: msg, Err: err}
	}

	var body io.Reader
	if r.body != nil {
		encoded, err := json.Marshal(r.body)
		if err != nil {
			return nil, transportErr("encode request", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, transportErr("create request", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.keyHeader && r.apiKey != "" {
		req.Header.Set(headerName(apiKeyParam), r.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	c.logger.DebugContext(ctx, "sending request", "op", r.op, "method", r.method, "path", req.URL.Path, "request_id", requestID)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportErr("execute request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, transportErr("read response", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	c.logger.DebugContext(ctx, "received response", "op", r.op, "status", resp.StatusCode, "request_id", requestID)
	return &response{path: req.URL.Path, status: resp.StatusCode, body: payload}, nil
}

func (c *Client) invalid(ctx context.Context, op, msg string) error {
	c.logger.WarnContext(ctx, "validation failed", "op", op, "error", msg)
	return invalidArgument(op, msg)
}

func (c *Client) fail(ctx context.Context, err error) error {
	c.logger.ErrorContext(ctx, err.Error(), "kind", KindOf(err).String())
	return err
}

// NormalizeBaseURL appends the trailing slash and the versioned API prefix
// when missing. It is idempotent.
func NormalizeBaseURL(raw string) string {
	trimmed := withScheme(raw)
	if !strings.HasSuffix(trimmed, "/") {
		trimmed += "/"
	}
	if !strings.Contains(trimmed, APIPrefix) {
		trimmed += APIPrefix
	}
	return trimmed
}

func withScheme(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	return trimmed
}

// parseBaseURL requires a host in raw itself, checked before the API prefix
// is appended.
func parseBaseURL(raw string) (string, error) {
	u, err := url.Parse(withScheme(raw))
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("parse base url %q: missing host", raw)
	}
	return NormalizeBaseURL(raw), nil
}

// headerName converts a parameter-style name to the header-style name the
// server derives from it, e.g. api_key -> api-key.
func headerName(param string) string {
	return strings.ReplaceAll(param, "_", "-")
}

func stripPlaceholder(value string) string {
	value = strings.TrimSpace(value)
	if value == placeholderValue {
		return ""
	}
	return value
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
