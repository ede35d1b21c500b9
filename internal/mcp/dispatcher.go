package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
	"github.com/jamesprial/pocketbase-mcp/internal/metrics"
)

// Dispatcher validates and executes tool calls and renders their outcome as
// a tools/call result. One Dispatcher is shared by every session.
type Dispatcher struct {
	tools   ToolRegistry
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	schemas sync.Map // tool name -> *gojsonschema.Schema
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a Dispatcher over tools.
func NewDispatcher(tools ToolRegistry, opts ...DispatcherOption) *Dispatcher {
	if tools == nil {
		panic("toolRegistry cannot be nil")
	}
	d := &Dispatcher{
		tools:  tools,
		logger: zap.NewNop(),
		tracer: otel.Tracer("github.com/jamesprial/pocketbase-mcp/internal/mcp"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tools returns the catalog of registered tools.
func (d *Dispatcher) Tools() []ToolDefinition {
	return d.tools.ListTools()
}

// Call runs the named tool. The only error it returns is a CodeToolNotFound
// protocol error; every other failure, panics included, comes back as a
// result with IsError set.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (*ToolsCallResult, error) {
	tool, err := d.tools.GetTool(name)
	if err != nil {
		return nil, &Error{
			Code:    CodeToolNotFound,
			Message: fmt.Sprintf("tool not found: %s", name),
			Cause:   err,
		}
	}

	ctx, span := d.tracer.Start(ctx, "tools/call "+name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("mcp.tool", name))

	begin := time.Now()
	if args == nil {
		args = map[string]any{}
	}

	result, err := d.execute(ctx, tool, args)
	if err == nil {
		var text []byte
		text, err = json.MarshalIndent(result, "", "  ")
		if err == nil {
			d.finish(span, name, begin, nil)
			return textResult(string(text), false), nil
		}
		err = internalerrors.New("mcp", "Call", internalerrors.ErrInternal, fmt.Errorf("encode result: %w", err))
	}

	d.finish(span, name, begin, err)
	return textResult("Error: "+internalerrors.Message(err), true), nil
}

func (d *Dispatcher) execute(ctx context.Context, tool Tool, args map[string]any) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("tool panicked",
				zap.String("tool", tool.Definition().Name),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()),
			)
			err = internalerrors.New("mcp", "Call", internalerrors.ErrInternal, fmt.Errorf("%w: %v", ErrToolPanicked, p))
		}
	}()

	if err := d.validate(tool.Definition(), args); err != nil {
		return nil, err
	}
	return tool.Execute(ctx, args)
}

// validate checks args against the tool's input schema. Compiled schemas are
// cached per tool name.
func (d *Dispatcher) validate(def ToolDefinition, args map[string]any) error {
	if len(def.InputSchema) == 0 {
		return nil
	}

	var schema *gojsonschema.Schema
	if cached, ok := d.schemas.Load(def.Name); ok {
		schema = cached.(*gojsonschema.Schema)
	} else {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.InputSchema))
		if err != nil {
			return internalerrors.New("mcp", "Validate", internalerrors.ErrInternal, fmt.Errorf("compile input schema: %w", err))
		}
		d.schemas.Store(def.Name, compiled)
		schema = compiled
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return internalerrors.New("mcp", "Validate", internalerrors.ErrValidation, fmt.Errorf("invalid arguments: %w", err))
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return internalerrors.New("mcp", "Validate", internalerrors.ErrValidation,
		fmt.Errorf("invalid arguments: %s", strings.Join(msgs, "; ")))
}

func (d *Dispatcher) finish(span trace.Span, name string, begin time.Time, err error) {
	elapsed := time.Since(begin)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, internalerrors.KindOf(err).Error())

		level := zap.WarnLevel
		if errors.Is(internalerrors.KindOf(err), internalerrors.ErrInternal) {
			level = zap.ErrorLevel
		}
		fields := append([]zap.Field{zap.String("tool", name), zap.Duration("duration", elapsed)},
			internalerrors.Fields(err)...)
		d.logger.Log(level, "tool call failed", fields...)
	} else {
		span.SetStatus(codes.Ok, "")
		d.logger.Debug("tool call", zap.String("tool", name), zap.Duration("duration", elapsed))
	}
	d.metrics.ObserveToolCall(name, outcome, elapsed)
}

func textResult(text string, isError bool) *ToolsCallResult {
	return &ToolsCallResult{
		Content: []Content{{Type: "text", Text: text}},
		IsError: isError,
	}
}
