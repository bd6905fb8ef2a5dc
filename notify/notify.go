// Package notify delivers user-facing notifications raised by board stores.
package notify

import (
	"context"
	"time"

	"kanban-sync/domain"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a short message for the person working on a board.
type Notification struct {
	Board   string           `json:"board"`
	TaskID  domain.ID        `json:"taskId,omitempty"`
	Kind    domain.ErrorKind `json:"kind,omitempty"`
	Level   Level            `json:"level"`
	Message string           `json:"message"`
	Time    time.Time        `json:"time"`
}

// Notifier accepts notifications without reporting delivery problems to the
// caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Sink delivers a single notification.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(context.Context, Notification) {}
