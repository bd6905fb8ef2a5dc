package board

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kanban-sync/domain"
)

const (
	tracerName  = "kanban-sync/board"
	eventName   = "board.operation"
	eventDomain = "kanban"
	obsMessage  = "observability.event"
)

// opMetrics follows one store operation. It owns the operation span and
// emits a single observability event when the operation ends.
type opMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	op     string
	board  string
	taskID domain.ID

	remoteDuration time.Duration
	cacheDuration  time.Duration
	tasks          int
	noop           bool
}

func startOp(ctx context.Context, logger *log.Logger, op, board string, id domain.ID) (context.Context, *opMetrics) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "board."+op, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("board.id", board), attribute.String("board.op", op))
	if id != "" {
		span.SetAttributes(attribute.String("board.task_id", id.String()))
	}
	return ctx, &opMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		op:     op,
		board:  board,
		taskID: id,
		tasks:  -1,
	}
}

func (m *opMetrics) ObserveRemote(d time.Duration) {
	if d > 0 {
		m.remoteDuration += d
	}
}

func (m *opMetrics) ObserveCache(d time.Duration) {
	if d > 0 {
		m.cacheDuration += d
	}
}

func (m *opMetrics) SetTasks(n int) {
	if n < 0 {
		n = 0
	}
	m.tasks = n
}

func (m *opMetrics) SetNoop() { m.noop = true }

// End closes the span and logs the event. It is safe to call on nil.
func (m *opMetrics) End(err error) {
	if m == nil {
		return
	}
	kind := domain.KindOf(err)
	sevText, sevNumber := severityFor(kind, err)

	attrs := []attribute.KeyValue{
		attribute.String("board.id", m.board),
		attribute.String("board.op", m.op),
		attribute.Float64("board.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Bool("board.noop", m.noop),
	}
	if m.taskID != "" {
		attrs = append(attrs, attribute.String("board.task_id", m.taskID.String()))
	}
	if m.remoteDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.remote_ms", durationToMillis(m.remoteDuration)))
	}
	if m.cacheDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.cache_ms", durationToMillis(m.cacheDuration)))
	}
	if m.tasks >= 0 {
		attrs = append(attrs, attribute.Int("board.tasks", m.tasks))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String("board.error_kind", string(kind)))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", eventName),
		attribute.String("event.domain", eventDomain),
		attribute.String("severity_text", sevText),
		attribute.Int("severity_number", sevNumber),
	}, attrs...)
	m.span.AddEvent(obsMessage, trace.WithAttributes(eventAttrs...))
	m.span.SetAttributes(attrs...)
	if err != nil {
		m.span.RecordError(err)
		m.span.SetStatus(codes.Error, err.Error())
	} else {
		m.span.SetStatus(codes.Ok, "")
	}

	if m.logger != nil {
		fields := log.Fields{
			"event.name":      eventName,
			"event.domain":    eventDomain,
			"severity_text":   sevText,
			"severity_number": sevNumber,
			"attributes":      attributesToMap(attrs),
		}
		if sc := m.span.SpanContext(); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
		entry := m.logger.WithFields(fields)
		switch sevText {
		case "ERROR":
			entry.Error(obsMessage)
		case "WARN":
			entry.Warn(obsMessage)
		default:
			entry.Info(obsMessage)
		}
	}
	m.span.End()
}

// severityFor maps an outcome to OpenTelemetry log severity. Caller mistakes
// are warnings; remote failures are errors.
func severityFor(kind domain.ErrorKind, err error) (string, int) {
	switch {
	case err == nil:
		return "INFO", 9
	case kind == domain.KindValidationFailed || kind == domain.KindNotFound:
		return "WARN", 13
	default:
		return "ERROR", 17
	}
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
