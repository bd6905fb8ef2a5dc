package board

import (
	"context"
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"kanban-sync/domain"
)

func TestMoveFailureRecordsSpanAndEvent(t *testing.T) {
	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	logger, hook := test.NewNullLogger()
	logger.SetFormatter(&log.JSONFormatter{})
	remote := &stubRemote{
		listFn: func(context.Context) ([]domain.Task, error) { return []domain.Task{task("1", "A")}, nil },
		moveFn: func(context.Context, domain.MoveRequest) error { return errors.New("bad gateway") },
	}
	s := New("b1", remote, Config{Layout: testLayout, Logger: logger})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	_ = s.MoveItem(context.Background(), "1", "B", 0)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}
	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	load, move := spans[0], spans[1]
	if load.Name != "board.load" || load.Status.Code != codes.Ok {
		t.Fatalf("unexpected load span: %s %v", load.Name, load.Status)
	}
	if move.Name != "board.move" || move.Status.Code != codes.Error {
		t.Fatalf("unexpected move span: %s %v", move.Name, move.Status)
	}
	attrs := attributesToMap(move.Attributes)
	if attrs["board.task_id"] != "1" || attrs["board.error_kind"] != string(domain.KindRemoteMoveFailed) {
		t.Fatalf("unexpected span attributes: %#v", attrs)
	}

	var event sdktrace.Event
	for _, ev := range move.Events {
		if ev.Name == "observability.event" {
			event = ev
		}
	}
	if event.Name == "" {
		t.Fatalf("expected observability.event span event, got %#v", move.Events)
	}
	if ea := attributesToMap(event.Attributes); ea["severity_text"] != "ERROR" || ea["event.name"] != eventName {
		t.Fatalf("unexpected event attributes: %#v", ea)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Message != "observability.event" || entry.Level != log.ErrorLevel {
		t.Fatalf("unexpected last log entry: %+v", entry)
	}
	if id, ok := entry.Data["trace_id"].(string); !ok || id == "" {
		t.Fatalf("expected trace_id on log entry, got %#v", entry.Data["trace_id"])
	}
}

func TestNoopMoveIsMarked(t *testing.T) {
	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	remote := &stubRemote{listFn: func(context.Context) ([]domain.Task, error) { return []domain.Task{task("1", "A")}, nil }}
	logger, _ := test.NewNullLogger()
	s := New("b1", remote, Config{Layout: testLayout, Logger: logger})
	_ = s.Load(context.Background())
	if err := s.MoveItem(context.Background(), "1", "A", 3); err != nil {
		t.Fatalf("noop move: %v", err)
	}
	_ = tp.ForceFlush(context.Background())
	spans := exporter.GetSpans()
	attrs := attributesToMap(spans[len(spans)-1].Attributes)
	if attrs["board.noop"] != true {
		t.Fatalf("expected noop attribute, got %#v", attrs)
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantText   string
		wantNumber int
	}{
		{name: "ok", wantText: "INFO", wantNumber: 9},
		{name: "validation", err: domain.ErrValidationFailed, wantText: "WARN", wantNumber: 13},
		{name: "not found", err: domain.ErrNotFound, wantText: "WARN", wantNumber: 13},
		{name: "remote", err: domain.ErrRemoteLoadFailed, wantText: "ERROR", wantNumber: 17},
		{name: "plain", err: errors.New("x"), wantText: "ERROR", wantNumber: 17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotText, gotNumber := severityFor(domain.KindOf(tt.err), tt.err)
			if gotText != tt.wantText || gotNumber != tt.wantNumber {
				t.Fatalf("severityFor(%v) = %s/%d, want %s/%d", tt.err, gotText, gotNumber, tt.wantText, tt.wantNumber)
			}
		})
	}
}

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter, func()) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	}
	return tp, exporter, cleanup
}

