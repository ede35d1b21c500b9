package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
	"github.com/jamesprial/pocketbase-mcp/internal/metrics"
)

func newTestDispatcher(t *testing.T, tools ...Tool) *Dispatcher {
	t.Helper()
	reg := NewToolRegistry()
	for _, tool := range tools {
		require.NoError(t, reg.RegisterTool(tool.Definition().Name, tool))
	}
	return NewDispatcher(reg)
}

func TestDispatcher_Success(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, echoTool())
	res, err := d.Call(context.Background(), "echo", map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "text", res.Content[0].Type)
	assert.Equal(t, "{\n  \"message\": \"hi\"\n}", res.Content[0].Text)
}

func TestDispatcher_UnknownTool(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, echoTool())
	res, err := d.Call(context.Background(), "nope", nil)
	assert.Nil(t, res)

	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeToolNotFound, rpcErr.Code)
	assert.True(t, errors.Is(err, ErrToolNotFound))
}

func TestDispatcher_ValidationFailures(t *testing.T) {
	t.Parallel()

	executed := false
	tool := echoTool()
	tool.execute = func(context.Context, map[string]any) (any, error) {
		executed = true
		return nil, nil
	}
	d := newTestDispatcher(t, tool)

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "nil args missing required", args: nil},
		{name: "wrong type", args: map[string]any{"message": 5.0}},
		{name: "integer below minimum", args: map[string]any{"message": "x", "count": 0.0}},
		{name: "non-integer", args: map[string]any{"message": "x", "count": 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := d.Call(context.Background(), "echo", tt.args)
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, res.Content[0].Text, "Error: invalid arguments")
		})
	}
	assert.False(t, executed)
}

func TestDispatcher_ToolErrorBecomesEnvelope(t *testing.T) {
	t.Parallel()

	tool := echoTool()
	tool.execute = func(context.Context, map[string]any) (any, error) {
		return nil, internalerrors.New("tools", "Echo", internalerrors.ErrNotFound, errors.New("record not found or not owned by caller"))
	}
	d := newTestDispatcher(t, tool)

	res, err := d.Call(context.Background(), "echo", map[string]any{"message": "x"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: record not found or not owned by caller", res.Content[0].Text)
}

func TestDispatcher_PanicBecomesEnvelope(t *testing.T) {
	t.Parallel()

	tool := echoTool()
	tool.execute = func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	}
	d := newTestDispatcher(t, tool)

	var res *ToolsCallResult
	var err error
	require.NotPanics(t, func() {
		res, err = d.Call(context.Background(), "echo", map[string]any{"message": "x"})
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "tool panicked: kaboom")
}

func TestDispatcher_UnencodableResult(t *testing.T) {
	t.Parallel()

	tool := echoTool()
	tool.execute = func(context.Context, map[string]any) (any, error) {
		return map[string]any{"ch": make(chan int)}, nil
	}
	d := newTestDispatcher(t, tool)

	res, err := d.Call(context.Background(), "echo", map[string]any{"message": "x"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "encode result")
}

func TestDispatcher_NoSchemaSkipsValidation(t *testing.T) {
	t.Parallel()

	tool := &stubTool{def: ToolDefinition{Name: "bare"}}
	d := newTestDispatcher(t, tool)
	res, err := d.Call(context.Background(), "bare", nil)
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &decoded))
	assert.Equal(t, true, decoded["ok"])
}

func TestDispatcher_RecordsMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	reg := NewToolRegistry()
	require.NoError(t, reg.RegisterTool("echo", echoTool()))
	d := NewDispatcher(reg, WithMetrics(m))

	_, err := d.Call(context.Background(), "echo", map[string]any{"message": "x"})
	require.NoError(t, err)
	_, err = d.Call(context.Background(), "echo", map[string]any{})
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "pbmcp_tool_calls_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "outcome" {
					counts[lp.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, counts[metrics.OutcomeSuccess])
	assert.Equal(t, 1.0, counts[metrics.OutcomeError])
}
