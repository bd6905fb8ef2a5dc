package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kanban-sync/domain"
)

const maxResponseSize = 8 << 20 // 8 MiB

const (
	tasksPath = "/board-items"
	itemsPath = "/items"
)

// Client talks to the REST API that owns the board.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *log.Logger
}

// New creates a client for the API rooted at baseURL. A nil httpClient uses a
// client with a 15s timeout; a nil tokens sends no Authorization header.
func New(baseURL string, httpClient *http.Client, tokens TokenSource, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
		logger:  logger,
	}
}

// ListTasks returns every task of the board in board order.
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.do(ctx, http.MethodGet, tasksPath, nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

// CreateTask posts a new task and returns it with its server id.
func (c *Client) CreateTask(ctx context.Context, n domain.NewTask) (domain.Task, error) {
	var created domain.Task
	if err := c.do(ctx, http.MethodPost, itemsPath, n, &created); err != nil {
		return domain.Task{}, err
	}
	if created.ID == "" {
		return domain.Task{}, fmt.Errorf("remote create returned a task without id")
	}
	return created, nil
}

// UpdateTask replaces the task on the server and returns the stored version.
func (c *Client) UpdateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	var updated domain.Task
	if err := c.do(ctx, http.MethodPut, itemPath(t.ID), t, &updated); err != nil {
		return domain.Task{}, err
	}
	if updated.ID == "" {
		// Some deployments answer 204; the sent task is then what was stored.
		return t, nil
	}
	return updated, nil
}

// MoveTask persists a drag. The body is the moved task extended with its
// position and the full board ordering.
func (c *Client) MoveTask(ctx context.Context, m domain.MoveRequest) error {
	body, err := encodeMove(m)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, itemPath(m.Task.ID), rawBody(body), nil)
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id domain.ID) error {
	return c.do(ctx, http.MethodDelete, itemPath(id), nil, nil)
}

// AddComment appends a comment. The returned comment is nil when the server
// answers without a body.
func (c *Client) AddComment(ctx context.Context, id domain.ID, in domain.CommentInput) (*domain.Comment, error) {
	var out domain.Comment
	var got bool
	if err := c.do(ctx, http.MethodPost, itemPath(id)+"/comments", in, decodeInto(&out, &got)); err != nil {
		return nil, err
	}
	if !got {
		return nil, nil
	}
	return &out, nil
}

func itemPath(id domain.ID) string {
	return itemsPath + "/" + url.PathEscape(id.String())
}

type rawBody []byte

// optionalTarget lets a caller learn whether a body was present.
type optionalTarget struct {
	into any
	got  *bool
}

func decodeInto(into any, got *bool) optionalTarget { return optionalTarget{into: into, got: got} }

func encodeMove(m domain.MoveRequest) ([]byte, error) {
	task, err := sonic.Marshal(m.Task)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]sonic.NoCopyRawMessage)
	if err := sonic.Unmarshal(task, &fields); err != nil {
		return nil, err
	}
	pos, err := sonic.Marshal(m.Position)
	if err != nil {
		return nil, err
	}
	ordering, err := sonic.Marshal(m.Ordering)
	if err != nil {
		return nil, err
	}
	fields["position"] = pos
	fields["ordering"] = ordering
	return sonic.ConfigStd.Marshal(fields)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	switch v := in.(type) {
	case nil:
	case rawBody:
		body = bytes.NewReader(v)
	default:
		data, err := sonic.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("bearer token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(log.Fields{"method": method, "path": path, "request_id": reqID}).Debug("remote request failed")
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	c.logger.WithFields(log.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": reqID,
		"ms":         float64(time.Since(start)) / float64(time.Millisecond),
	}).Debug("remote request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Method: method, Path: path, Messages: errorMessages(data)}
	}

	if len(bytes.TrimSpace(data)) == 0 || out == nil {
		return nil
	}
	target := out
	if opt, ok := out.(optionalTarget); ok {
		*opt.got = true
		target = opt.into
	}
	if err := sonic.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
