// Package mockremote is an in-memory stand-in for the admin REST API that owns
// the board. It serves the same routes the remote client calls and lets tests
// inject failures.
package mockremote

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-sync/domain"
)

const maxBodySize = 1 << 20

// Authenticator validates the Authorization header of incoming requests.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Server holds the board in memory.
type Server struct {
	mu       sync.Mutex
	tasks    []domain.Task
	failures map[string][]int
	calls    map[string]int

	emptyComments bool

	newID  func() string
	now    func() time.Time
	auth   Authenticator
	logger *log.Logger
}

// New creates an empty server. auth may be nil to accept any caller.
func New(auth Authenticator, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Server{
		failures: make(map[string][]int),
		calls:    make(map[string]int),
		newID:    uuid.NewString,
		now:      time.Now,
		auth:     auth,
		logger:   logger,
	}
}

// Route names accepted by Fail and Calls.
const (
	RouteList    = "list"
	RouteCreate  = "create"
	RouteUpdate  = "update"
	RouteDelete  = "delete"
	RouteComment = "comment"
)

// Register adds the API routes to e.
func (s *Server) Register(e *echo.Echo) {
	g := e.Group("", s.authenticate)
	g.GET("/board-items", s.list)
	g.POST("/items", s.create)
	g.PUT("/items/:id", s.update)
	g.DELETE("/items/:id", s.remove)
	g.POST("/items/:id/comments", s.comment)
}

// Seed replaces the stored board.
func (s *Server) Seed(tasks ...domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		s.tasks = append(s.tasks, t.Clone())
	}
}

// Tasks returns a copy of the stored board.
func (s *Server) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Fail makes the next call to route answer with status. Calls queue up.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], status)
}

// Calls reports how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// SetEmptyCommentResponses makes the comment route answer 204 without a body.
func (s *Server) SetEmptyCommentResponses(empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emptyComments = empty
}

// SetIDFunc replaces the id generator used for created tasks and comments.
func (s *Server) SetIDFunc(f func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newID = f
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.auth == nil {
			return next(c)
		}
		if _, err := s.auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"detail": err.Error()})
		}
		return next(c)
	}
}

// enter counts the call and returns an injected failure status, or 0. The
// caller must hold s.mu.
func (s *Server) enter(route string) int {
	s.calls[route]++
	queue := s.failures[route]
	if len(queue) == 0 {
		return 0
	}
	s.failures[route] = queue[1:]
	return queue[0]
}

func injected(c echo.Context, status int) error {
	return c.JSON(status, map[string][]string{"messages": {http.StatusText(status)}})
}

func (s *Server) list(c echo.Context) error {
	s.mu.Lock()
	if status := s.enter(RouteList); status != 0 {
		s.mu.Unlock()
		return injected(c, status)
	}
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, out)
}

func (s *Server) create(c echo.Context) error {
	var n domain.NewTask
	if err := decode(c, &n); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid body"})
	}
	if strings.TrimSpace(n.Title) == "" {
		return c.JSON(http.StatusBadRequest, map[string][]string{"title": {"This field may not be blank."}})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status := s.enter(RouteCreate); status != 0 {
		return injected(c, status)
	}
	t := domain.Task{
		ID:          domain.ID(s.newID()),
		Title:       n.Title,
		Description: n.Description,
		Status:      n.Status,
		Priority:    n.Priority,
		Assignee:    n.Assignee,
		Reporter:    n.Reporter,
		DueDate:     n.DueDate,
		Labels:      n.Labels,
		Attachments: n.Attachments,
		Comments:    []domain.Comment{},
	}
	s.tasks = append(s.tasks, t)
	s.logger.WithField("task", t.ID).Debug("mock remote created task")
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) update(c echo.Context) error {
	id := domain.ID(c.Param("id"))
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid body"})
	}
	var task domain.Task
	if err := sonic.Unmarshal(raw, &task); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid body"})
	}
	// A drag extends the task with its position and the board ordering.
	var move struct {
		Position *int                 `json:"position"`
		Ordering []domain.ColumnOrder `json:"ordering"`
	}
	if err := sonic.Unmarshal(raw, &move); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status := s.enter(RouteUpdate); status != 0 {
		return injected(c, status)
	}
	i := domain.IndexOf(s.tasks, id)
	if i < 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	stored := task.Clone()
	stored.ID = id
	s.tasks[i] = stored
	if move.Ordering != nil {
		s.tasks = reorder(s.tasks, move.Ordering)
	} else if move.Position != nil {
		s.tasks, _ = domain.Move(s.tasks, id, stored.Status, *move.Position)
	}
	return c.JSON(http.StatusOK, stored)
}

// reorder arranges tasks column by column as listed; tasks the ordering does
// not mention keep their relative order after the listed ones.
func reorder(tasks []domain.Task, ordering []domain.ColumnOrder) []domain.Task {
	byID := make(map[domain.ID]domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	out := make([]domain.Task, 0, len(tasks))
	placed := make(map[domain.ID]bool, len(tasks))
	for _, col := range ordering {
		for _, id := range col.IDs {
			t, ok := byID[id]
			if !ok || placed[id] {
				continue
			}
			t.Status = col.Status
			out = append(out, t)
			placed[id] = true
		}
	}
	for _, t := range tasks {
		if !placed[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func (s *Server) remove(c echo.Context) error {
	id := domain.ID(c.Param("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	if status := s.enter(RouteDelete); status != 0 {
		return injected(c, status)
	}
	out, ok := domain.Remove(s.tasks, id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	s.tasks = out
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) comment(c echo.Context) error {
	id := domain.ID(c.Param("id"))
	var in domain.CommentInput
	if err := decode(c, &in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "invalid body"})
	}
	if in.Commenter == "" || in.Text == "" {
		return c.JSON(http.StatusBadRequest, map[string][]string{"comment": {"This field may not be blank."}})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status := s.enter(RouteComment); status != 0 {
		return injected(c, status)
	}
	i := domain.IndexOf(s.tasks, id)
	if i < 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	cm := domain.Comment{
		ID:        domain.ID(s.newID()),
		Commenter: in.Commenter,
		Text:      in.Text,
		Datetime:  s.now().UTC(),
	}
	t := s.tasks[i].Clone()
	t.Comments = append(t.Comments, cm)
	s.tasks[i] = t
	if s.emptyComments {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusCreated, cm)
}

func decode(c echo.Context, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	return dec.Decode(v)
}
