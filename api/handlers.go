// Package api exposes board stores over HTTP for the board UI.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-sync/board"
	"kanban-sync/domain"
)

const maxBodySize = 1 << 20

// Register wires up the gateway routes.
func Register(e *echo.Echo, boards *board.Registry, auth Authenticator, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.GET("/healthz", healthz())

	g := e.Group("/api/boards/:board", requireAuth(auth))
	g.GET("", getBoard(boards))
	g.DELETE("", resetBoard(boards))
	g.POST("/load", loadBoard(boards))
	g.POST("/moves", moveTask(boards))
	g.POST("/tasks", createTask(boards))
	g.PATCH("/tasks/:id", updateTask(boards))
	g.DELETE("/tasks/:id", deleteTask(boards))
	g.POST("/tasks/:id/comments", addComment(boards, logger))
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type moveRequest struct {
	TaskID domain.ID `json:"taskId"`
	Status string    `json:"status"`
	Index  int       `json:"index"`
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// getBoard returns the board view. The first request for a board loads it.
func getBoard(boards *board.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("board")
		s, ok := boards.Lookup(id)
		if !ok {
			var err error
			if s, err = boards.Get(id); err != nil {
				return writeError(c, err)
			}
			// A failed first load is reported through the view.
			_ = s.Load(c.Request().Context())
		}
		return c.JSON(http.StatusOK, s.View())
	}
}

func loadBoard(boards *board.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := boards.Get(c.Param("board"))
		if err != nil {
			return writeError(c, err)
		}
		if err := s.Load(c.Request().Context()); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, s.View())
	}
}

func resetBoard(boards *board.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s, ok := boards.Lookup(c.Param("board")); ok {
			s.Reset()
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func moveTask(boards *board.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req moveRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		s, err := boards.Get(c.Param("board"))
		if err != nil {
			return writeError(c, err)
		}
		if err := s.MoveItem(c.Request().Context(), req.TaskID, req.Status, req.Index); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, s.View())
	}
}

func createTask(boards *board.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		var fields domain.NewTask
		if err := c.Bind(&fields); err != nil {
			return err
		}
		// The reporter is always the caller.
		fields.Reporter = userFrom(c)
		s, err := boards.Get(c.Param("board"))
		if err != nil {
			return writeError(c, err)
		}
		created, err := s.CreateItem(c.Request().Context(), fields.Status, fields)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func updateTask(boards *board.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch domain.TaskPatch
		if err := c.Bind(&patch); err != nil {
			return err
		}
		s, err := boards.Get(c.Param("board"))
		if err != nil {
			return writeError(c, err)
		}
		updated, err := s.UpdateItem(c.Request().Context(), domain.ID(c.Param("id")), patch)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteTask(boards *board.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := boards.Get(c.Param("board"))
		if err != nil {
			return writeError(c, err)
		}
		if err := s.DeleteItem(c.Request().Context(), domain.ID(c.Param("id"))); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func addComment(boards *board.Registry, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req commentRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		s, err := boards.Get(c.Param("board"))
		if err != nil {
			return writeError(c, err)
		}
		id := domain.ID(c.Param("id"))
		cm, err := s.AddComment(c.Request().Context(), id, domain.CommentInput{Commenter: userFrom(c), Text: req.Comment})
		if err != nil {
			return writeError(c, err)
		}
		logger.WithFields(log.Fields{"board": s.ID(), "task": id.String(), "comment": cm.ID.String()}).Debug("comment added")
		return c.JSON(http.StatusCreated, cm)
	}
}

// statusFor maps a board error to an HTTP status. Remote failures are the
// gateway's upstream failing.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidationFailed:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeError(c echo.Context, err error) error {
	kind := string(domain.KindOf(err))
	if kind == "" {
		kind = "internal"
	}
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindValidationFailed && de.Err != nil {
		msg = de.Err.Error()
	}
	return c.JSON(statusFor(err), errorResponse{Error: kind, Message: msg})
}
