package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorResponder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		send        func(r *errorResponder, w http.ResponseWriter)
		wantStatus  int
		wantError   string
		wantMessage string
		wantLevel   zapcore.Level
	}{
		{
			name:        "unauthorized hides cause",
			send:        func(r *errorResponder, w http.ResponseWriter) { r.Unauthorized(w, errors.New("signature invalid")) },
			wantStatus:  http.StatusUnauthorized,
			wantError:   "unauthorized",
			wantMessage: "Authentication required",
			wantLevel:   zapcore.WarnLevel,
		},
		{
			name:        "bad request shows cause",
			send:        func(r *errorResponder, w http.ResponseWriter) { r.BadRequest(w, errors.New("missing sessionId")) },
			wantStatus:  http.StatusBadRequest,
			wantError:   "bad_request",
			wantMessage: "missing sessionId",
			wantLevel:   zapcore.WarnLevel,
		},
		{
			name:        "bad request without cause",
			send:        func(r *errorResponder, w http.ResponseWriter) { r.BadRequest(w, nil) },
			wantStatus:  http.StatusBadRequest,
			wantError:   "bad_request",
			wantMessage: "Invalid request",
			wantLevel:   zapcore.WarnLevel,
		},
		{
			name:        "not found",
			send:        func(r *errorResponder, w http.ResponseWriter) { r.NotFound(w, errors.New("session not found")) },
			wantStatus:  http.StatusNotFound,
			wantError:   "not_found",
			wantMessage: "session not found",
			wantLevel:   zapcore.DebugLevel,
		},
		{
			name:        "internal error hides cause",
			send:        func(r *errorResponder, w http.ResponseWriter) { r.InternalError(w, errors.New("db password in here")) },
			wantStatus:  http.StatusInternalServerError,
			wantError:   "internal_error",
			wantMessage: "An internal server error occurred",
			wantLevel:   zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			r := NewErrorResponder("pocketbase-mcp", zap.New(core)).(*errorResponder)
			w := httptest.NewRecorder()
			tt.send(r, w)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var body errorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tt.wantError || body.Message != tt.wantMessage {
				t.Errorf("body = %+v, want %s/%s", body, tt.wantError, tt.wantMessage)
			}

			entries := logs.All()
			if len(entries) != 1 || entries[0].Level != tt.wantLevel {
				t.Errorf("logs = %v, want one %s entry", entries, tt.wantLevel)
			}
		})
	}
}

func TestErrorResponder_WWWAuthenticate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		realm string
		want  string
	}{
		{"pocketbase-mcp", `Bearer realm="pocketbase-mcp"`},
		{"", "Bearer"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		NewErrorResponder(tt.realm, nil).Unauthorized(w, nil)
		if got := w.Header().Get("WWW-Authenticate"); got != tt.want {
			t.Errorf("realm %q: WWW-Authenticate = %q, want %q", tt.realm, got, tt.want)
		}
		if strings.Contains(w.Body.String(), "realm") {
			t.Errorf("realm leaked into body: %s", w.Body.String())
		}
	}
}
