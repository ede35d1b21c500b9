package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesprial/pocketbase-mcp/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestToolsCommand(t *testing.T) {
	out, err := execute(t, "tools")
	require.NoError(t, err)

	var catalog []struct {
		Name        string         `json:"name"`
		InputSchema map[string]any `json:"inputSchema"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &catalog))

	names := make([]string, 0, len(catalog))
	for _, c := range catalog {
		names = append(names, c.Name)
		assert.Equal(t, "object", c.InputSchema["type"], c.Name)
	}
	assert.Equal(t, []string{
		"list_collections", "get_records", "create_record",
		"update_record", "delete_record", "apply_schema",
	}, names)
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	_, err := execute(t, "tools", "--transport", "carrier-pigeon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCP_TRANSPORT")

	_, err = execute(t, "tools", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestApplySchemaCommand(t *testing.T) {
	var imports atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/collections/_superusers/auth-with-password":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token":"su-token"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/api/collections/import":
			if r.Header.Get("Authorization") != "su-token" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"status":401,"message":"missing token"}`))
				return
			}
			var body struct {
				Collections   []map[string]any `json:"collections"`
				DeleteMissing bool             `json:"deleteMissing"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DeleteMissing {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			imports.Add(int32(len(body.Collections)))
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer backend.Close()

	path := filepath.Join(t.TempDir(), "pb_schema.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"notes","type":"base"},{"name":"tags","type":"base"}]`), 0o600))

	out, err := execute(t, "apply-schema",
		"--pocketbase-url", backend.URL,
		"--schema", path,
		"--admin-email", "root@example.com",
		"--admin-password", "secret",
	)
	require.NoError(t, err)
	assert.EqualValues(t, 2, imports.Load())

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, true, res["success"])
	assert.EqualValues(t, 2, res["collections"])
}

func TestApplySchemaCommand_AuthFailureIsFatal(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":400,"message":"Failed to authenticate."}`))
	}))
	defer backend.Close()

	_, err := execute(t, "apply-schema",
		"--pocketbase-url", backend.URL,
		"--admin-email", "root@example.com",
		"--admin-password", "wrong",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin authentication")
}

func TestServeStdio(t *testing.T) {
	v := config.NewViper()
	v.Set(config.KeyLogLevel, "error")
	a, err := newApp(v)
	require.NoError(t, err)
	defer a.close()

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"resources/list"}`,
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, a.serveStdio(context.Background(), in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	byID := map[float64]map[string]any{}
	for _, line := range lines {
		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		byID[resp["id"].(float64)] = resp
	}

	initResult := byID[1]["result"].(map[string]any)
	assert.Equal(t, "2024-11-05", initResult["protocolVersion"])
	assert.Equal(t, serverName, initResult["serverInfo"].(map[string]any)["name"])
	assert.NotEmpty(t, initResult["instructions"])

	resources := byID[2]["result"].(map[string]any)["resources"].([]any)
	require.Len(t, resources, 1)
	assert.Equal(t, "pocketbase://schema", resources[0].(map[string]any)["uri"])
}

func TestServeStdio_CancelledContext(t *testing.T) {
	v := config.NewViper()
	v.Set(config.KeyLogLevel, "error")
	a, err := newApp(v)
	require.NoError(t, err)
	defer a.close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.serveStdio(ctx, r, &bytes.Buffer{}))
}
