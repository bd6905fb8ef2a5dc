package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestTaskDecodesNumericIDs(t *testing.T) {
	data := []byte(`{"id":42,"title":"Bel leverancier","status":"1","assignee":null,"comments":[{"id":7,"commenter":"3","comment":"ok","datetime":"2024-05-01T10:00:00Z"}]}`)
	var task Task
	if err := sonic.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.ID != "42" {
		t.Fatalf("unexpected id: %q", task.ID)
	}
	if len(task.Comments) != 1 || task.Comments[0].ID != "7" || task.Comments[0].Text != "ok" {
		t.Fatalf("unexpected comments: %+v", task.Comments)
	}
	if task.Assignee != nil {
		t.Fatalf("expected nil assignee")
	}
}

func TestTaskDecodesNumericStatus(t *testing.T) {
	data := []byte(`[{"id":1,"title":"a","status":0},{"id":2,"title":"b","status":"2"},{"id":3,"title":"c","status":null}]`)
	var tasks []Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(tasks) != 3 || tasks[0].Status != "0" || tasks[1].Status != "2" || tasks[2].Status != "" {
		t.Fatalf("unexpected statuses: %+v", tasks)
	}
	if _, ok := tasks[0].Extra("status"); ok {
		t.Fatalf("status must not be kept as extra")
	}

	var task Task
	if err := sonic.Unmarshal([]byte(`{"id":"1","status":{"id":0}}`), &task); err == nil {
		t.Fatalf("expected error for object status")
	}
}

func TestCommentKeepsUnknownFields(t *testing.T) {
	data := []byte(`{"id":"t1","title":"x","status":"0","comments":[{"id":9,"commenter":"3","comment":"hi","datetime":"2024-05-01T10:00:00Z","name":"Jan","avatarUrl":"https://a/b.png","messageType":"text"}]}`)
	var task Task
	if err := sonic.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	cm := task.Comments[0]
	if raw, ok := cm.Extra("avatarUrl"); !ok || string(raw) != `"https://a/b.png"` {
		t.Fatalf("expected avatarUrl passthrough, got %q %v", raw, ok)
	}

	clone := task.Clone()
	out, err := sonic.Marshal(clone)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Comments []map[string]any `json:"comments"`
	}
	if err := sonic.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	got := decoded.Comments[0]
	if got["avatarUrl"] != "https://a/b.png" || got["name"] != "Jan" || got["messageType"] != "text" || got["comment"] != "hi" {
		t.Fatalf("comment fields lost in round trip: %s", out)
	}
}

func TestCommentDatetimeLayouts(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantRaw string
	}{
		{name: "rfc3339", value: `"2024-01-01T10:00:00+02:00"`, want: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)},
		{name: "no zone", value: `"2024-01-01T10:00:00"`, want: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{name: "fraction no zone", value: `"2024-01-01T10:00:00.123456"`, want: time.Date(2024, 1, 1, 10, 0, 0, 123456000, time.UTC)},
		{name: "space", value: `"2024-01-01 10:00:00"`, want: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{name: "date", value: `"2024-01-01"`, want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "null", value: `null`},
		{name: "unparseable", value: `"gisteren"`, wantRaw: `"gisteren"`},
		{name: "epoch", value: `1704103200`, wantRaw: `1704103200`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cm Comment
			if err := sonic.Unmarshal([]byte(`{"commenter":"1","comment":"x","datetime":`+tt.value+`}`), &cm); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !cm.Datetime.Equal(tt.want) {
				t.Fatalf("datetime = %v, want %v", cm.Datetime, tt.want)
			}
			if tt.wantRaw == "" {
				return
			}
			out, err := sonic.Marshal(cm)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var fields map[string]sonic.NoCopyRawMessage
			if err := sonic.Unmarshal(out, &fields); err != nil {
				t.Fatalf("re-decode: %v", err)
			}
			if string(fields["datetime"]) != tt.wantRaw {
				t.Fatalf("datetime written back as %s, want %s", fields["datetime"], tt.wantRaw)
			}
		})
	}
}

func TestTaskRejectsObjectID(t *testing.T) {
	var task Task
	if err := sonic.Unmarshal([]byte(`{"id":{"x":1}}`), &task); err == nil {
		t.Fatalf("expected error for object id")
	}
}

func TestTaskKeepsUnknownFields(t *testing.T) {
	data := []byte(`{"id":"t1","title":"x","status":"0","board":17,"color":"red"}`)
	var task Task
	if err := sonic.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw, ok := task.Extra("color"); !ok || string(raw) != `"red"` {
		t.Fatalf("expected color passthrough, got %q %v", raw, ok)
	}
	if _, ok := task.Extra("title"); ok {
		t.Fatalf("modelled fields must not be kept as extra")
	}

	out, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := sonic.Unmarshal(out, &fields); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if fields["color"] != "red" || fields["board"] != float64(17) || fields["title"] != "x" {
		t.Fatalf("unexpected round trip: %s", out)
	}

	clone := task.Clone()
	if raw, ok := clone.Extra("board"); !ok || string(raw) != "17" {
		t.Fatalf("clone dropped extra fields")
	}
}

func TestTaskWithoutExtrasHasNoExtraMap(t *testing.T) {
	var task Task
	if err := sonic.Unmarshal([]byte(`{"id":"t1","title":"x","status":"0"}`), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.extra != nil {
		t.Fatalf("expected nil extra map, got %v", task.extra)
	}
}

func TestPatchApply(t *testing.T) {
	assignee := "u1"
	base := Task{ID: "t1", Title: "old", Status: "0", Assignee: &assignee, Labels: []string{"x"}}

	title := "  new title "
	clear := ""
	prio := PriorityHigh
	labels := []string{"a", "b"}
	patch := TaskPatch{Title: &title, Assignee: &clear, Priority: &prio, Labels: &labels}

	out := patch.Apply(base)
	if out.Title != "new title" || out.Assignee != nil || out.Priority != PriorityHigh {
		t.Fatalf("unexpected patched task: %+v", out)
	}
	labels[0] = "mutated"
	if out.Labels[0] != "a" {
		t.Fatalf("patch shares label slice with caller")
	}
	if base.Title != "old" || base.Assignee == nil || base.Labels[0] != "x" {
		t.Fatalf("apply modified the original: %+v", base)
	}
}

func TestValidation(t *testing.T) {
	layout := DefaultLayout()
	tests := map[string]error{
		"missing title":    ValidateNewTask(layout, NewTask{Reporter: "u", Status: "0"}.Normalize()),
		"missing reporter": ValidateNewTask(layout, NewTask{Title: "x", Status: "0"}.Normalize()),
		"bad column":       ValidateNewTask(layout, NewTask{Title: "x", Reporter: "u", Status: "9"}.Normalize()),
		"bad priority":     ValidateNewTask(layout, NewTask{Title: "x", Reporter: "u", Status: "0", Priority: "URGENT"}),
		"empty patch":      ValidatePatch("t1", TaskPatch{}),
	}
	for name, err := range tests {
		t.Run(name, func(t *testing.T) {
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("expected validation failure, got %v", err)
			}
		})
	}

	if err := ValidateNewTask(layout, NewTask{Title: " x ", Reporter: "u", Status: "2"}.Normalize()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in, err := ValidateComment("t1", CommentInput{Commenter: " 5 ", Text: " hi "})
	if err != nil || in.Commenter != "5" || in.Text != "hi" {
		t.Fatalf("unexpected comment validation: %+v %v", in, err)
	}
	if _, err := ValidateComment("t1", CommentInput{Commenter: "", Text: "x"}); KindOf(err) != KindValidationFailed {
		t.Fatalf("expected validation kind, got %v", err)
	}
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", Wrap(KindRemoteMoveFailed, "move", "t9", cause))
	if !errors.Is(err, ErrRemoteMoveFailed) {
		t.Fatalf("expected kind match")
	}
	if errors.Is(err, ErrRemoteLoadFailed) {
		t.Fatalf("unexpected kind match")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if KindOf(err) != KindRemoteMoveFailed {
		t.Fatalf("unexpected kind: %s", KindOf(err))
	}
	if got := Wrap(KindRemoteMoveFailed, "move", "t9", cause).Error(); got != "move: remote_move_failed (task t9): boom" {
		t.Fatalf("unexpected message: %s", got)
	}
}

func TestParseLayout(t *testing.T) {
	layout, err := ParseLayout("todo:To do, doing , done:Done")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(layout) != 3 || layout[1] != (Column{ID: "doing", Name: "doing"}) || layout[2].Name != "Done" {
		t.Fatalf("unexpected layout: %+v", layout)
	}
	for _, bad := range []string{"", "a,a", ":x"} {
		if _, err := ParseLayout(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
