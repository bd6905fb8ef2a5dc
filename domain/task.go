package domain

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// ID identifies a task or comment. The remote assigns it; some deployments send
// numeric ids, which decode to their decimal string form.
type ID string

func (id ID) String() string { return string(id) }

// Priority of a task as shown on the card.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Comment is a single message in a task's discussion.
type Comment struct {
	ID        ID        `json:"id,omitempty"`
	Commenter string    `json:"commenter"`
	Text      string    `json:"comment"`
	Datetime  time.Time `json:"datetime"`

	// rawDatetime keeps a timestamp that could not be parsed.
	rawDatetime sonic.NoCopyRawMessage
	extra       map[string]sonic.NoCopyRawMessage
}

// Extra returns the raw value of an unmodelled comment field.
func (c Comment) Extra(name string) ([]byte, bool) {
	v, ok := c.extra[name]
	return v, ok
}

func (c Comment) clone() Comment {
	out := c
	if c.extra != nil {
		out.extra = make(map[string]sonic.NoCopyRawMessage, len(c.extra))
		for k, v := range c.extra {
			out.extra[k] = v
		}
	}
	return out
}

// CommentInput is what a user submits when commenting on a task.
type CommentInput struct {
	Commenter string `json:"commenter"`
	Text      string `json:"comment"`
}

// Task represents a single board item. Its position is not stored: it is the
// index of the task among the tasks sharing its Status in the board order.
type Task struct {
	ID          ID        `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    Priority  `json:"priority,omitempty"`
	Assignee    *string   `json:"assignee"`
	Reporter    string    `json:"reporter,omitempty"`
	DueDate     string    `json:"due_date,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
	Comments    []Comment `json:"comments,omitempty"`

	// extra holds fields the remote sent that this package does not model.
	// They are written back unchanged.
	extra map[string]sonic.NoCopyRawMessage
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	out := t
	if t.Assignee != nil {
		a := *t.Assignee
		out.Assignee = &a
	}
	out.Labels = cloneStrings(t.Labels)
	out.Attachments = cloneStrings(t.Attachments)
	if t.Comments != nil {
		out.Comments = make([]Comment, len(t.Comments))
		for i, c := range t.Comments {
			out.Comments[i] = c.clone()
		}
	}
	if t.extra != nil {
		out.extra = make(map[string]sonic.NoCopyRawMessage, len(t.extra))
		for k, v := range t.extra {
			out.extra[k] = v
		}
	}
	return out
}

// Extra returns the raw value of an unmodelled field received from the remote.
func (t Task) Extra(name string) ([]byte, bool) {
	v, ok := t.extra[name]
	return v, ok
}

// NewTask carries the fields of a task to be created.
type NewTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    Priority `json:"priority,omitempty"`
	Assignee    *string  `json:"assignee"`
	Reporter    string   `json:"reporter"`
	DueDate     string   `json:"due_date,omitempty"`
	Labels      []string `json:"labels"`
	Attachments []string `json:"attachments"`
}

// Normalize trims the free text fields and fills defaults the way the board's
// add-task form does.
func (n NewTask) Normalize() NewTask {
	n.Title = strings.TrimSpace(n.Title)
	n.Reporter = strings.TrimSpace(n.Reporter)
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	if n.Labels == nil {
		n.Labels = []string{}
	}
	if n.Attachments == nil {
		n.Attachments = []string{}
	}
	return n
}

// TaskPatch is a sparse edit of a task. Nil fields are left unchanged. Status is
// absent: column changes go through a move.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Assignee    *string    `json:"assignee,omitempty"`
	DueDate     *string    `json:"due_date,omitempty"`
	Labels      *[]string  `json:"labels,omitempty"`
	Attachments *[]string  `json:"attachments,omitempty"`
	Comments    *[]Comment `json:"comments,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Assignee == nil &&
		p.DueDate == nil && p.Labels == nil && p.Attachments == nil && p.Comments == nil
}

// Apply returns a copy of t with the patch merged in.
func (p TaskPatch) Apply(t Task) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Assignee != nil {
		// An empty assignee unassigns the task.
		if *p.Assignee == "" {
			out.Assignee = nil
		} else {
			a := *p.Assignee
			out.Assignee = &a
		}
	}
	if p.DueDate != nil {
		out.DueDate = *p.DueDate
	}
	if p.Labels != nil {
		out.Labels = cloneStrings(*p.Labels)
	}
	if p.Attachments != nil {
		out.Attachments = cloneStrings(*p.Attachments)
	}
	if p.Comments != nil {
		out.Comments = append([]Comment(nil), (*p.Comments)...)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
