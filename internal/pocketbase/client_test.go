package pocketbase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestHTTPClient_ListCollectionsPaginates(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/collections", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("perPage"))
		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(t, w, http.StatusOK, map[string]any{"page": 1, "totalPages": 2, "items": []map[string]any{{"name": "users"}}})
		case "2":
			writeJSON(t, w, http.StatusOK, map[string]any{"page": 2, "totalPages": 2, "items": []map[string]any{{"name": "notes"}}})
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	cols, err := NewClient(srv.URL).ListCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "users", cols[0]["name"])
	assert.Equal(t, "notes", cols[1]["name"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPClient_GetList(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/collections/notes/records", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "10", q.Get("perPage"))
		assert.Equal(t, `user = "u1"`, q.Get("filter"))
		assert.Equal(t, "-created", q.Get("sort"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"page": 2, "perPage": 10, "totalItems": 11, "totalPages": 2,
			"items": []map[string]any{{"id": "abc", "title": "x"}},
		})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL+"/").GetList(context.Background(), "notes", ListQuery{
		Page: 2, PerPage: 10, Filter: `user = "u1"`, Sort: "-created",
	})
	require.NoError(t, err)
	assert.Equal(t, 11, res.TotalItems)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "abc", res.Items[0].ID())
}

func TestHTTPClient_GetFirstListItem(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("perPage"))
		assert.Equal(t, "1", q.Get("skipTotal"))
		if q.Get("filter") == `external_id = "known"` {
			writeJSON(t, w, http.StatusOK, map[string]any{"items": []map[string]any{{"id": "u1"}}})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"items": []map[string]any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	rec, err := c.GetFirstListItem(context.Background(), "users", `external_id = "known"`)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.ID())

	_, err = c.GetFirstListItem(context.Background(), "users", `external_id = "unknown"`)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.True(t, errors.Is(err, internalerrors.ErrNotFound))
	assert.Equal(t, internalerrors.ErrBackend, internalerrors.KindOf(err))
}

func TestHTTPClient_WriteOperations(t *testing.T) {
	t.Parallel()

	type seen struct {
		method string
		path   string
		body   map[string]any
	}
	var (
		mu  sync.Mutex
		got []seen
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.ContentLength > 0 {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		}
		mu.Lock()
		got = append(got, seen{r.Method, r.URL.Path, body})
		mu.Unlock()
		switch r.Method {
		case http.MethodDelete, http.MethodPut:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(t, w, http.StatusOK, map[string]any{"id": "r1", "title": body["title"]})
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL)

	rec, err := c.Create(ctx, "notes", map[string]any{"title": "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", rec["title"])

	rec, err = c.Update(ctx, "notes", "r1", map[string]any{"title": "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", rec["title"])

	require.NoError(t, c.Delete(ctx, "notes", "r1"))
	require.NoError(t, c.ImportCollections(ctx, []map[string]any{{"name": "notes"}}, false))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 4)
	assert.Equal(t, seen{http.MethodPost, "/api/collections/notes/records", map[string]any{"title": "a"}}, got[0])
	assert.Equal(t, seen{http.MethodPatch, "/api/collections/notes/records/r1", map[string]any{"title": "b"}}, got[1])
	assert.Equal(t, http.MethodDelete, got[2].method)
	assert.Equal(t, "/api/collections/notes/records/r1", got[2].path)
	assert.Equal(t, http.MethodPut, got[3].method)
	assert.Equal(t, "/api/collections/import", got[3].path)
	assert.Equal(t, false, got[3].body["deleteMissing"])
	assert.Len(t, got[3].body["collections"], 1)
}

func TestHTTPClient_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]any{
			"status":  400,
			"message": "Failed to create record.",
			"data":    map[string]any{"title": map[string]any{"code": "validation_required"}},
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Create(context.Background(), "notes", map[string]any{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Failed to create record.", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "validation_required")
	assert.True(t, errors.Is(err, internalerrors.ErrBadRequest))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, "pocketbase: 400 Failed to create record. (data: map[title:map[code:validation_required]])", internalerrors.Message(err))
}

func TestHTTPClient_AuthenticateAdmin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		superusers bool
		wantPath   string
	}{
		{name: "superusers collection", superusers: true, wantPath: "/api/collections/_superusers/auth-with-password"},
		{name: "legacy admins endpoint", superusers: false, wantPath: "/api/admins/auth-with-password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var authHeader atomic.Value
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/api/collections/_superusers/auth-with-password":
					if !tt.superusers {
						writeJSON(t, w, http.StatusNotFound, map[string]any{"status": 404, "message": "Missing collection context."})
						return
					}
					writeJSON(t, w, http.StatusOK, map[string]any{"token": "tok"})
				case "/api/admins/auth-with-password":
					writeJSON(t, w, http.StatusOK, map[string]any{"token": "tok"})
				default:
					authHeader.Store(r.Header.Get("Authorization"))
					writeJSON(t, w, http.StatusOK, map[string]any{"items": []any{}})
				}
			}))
			defer srv.Close()

			c := NewClient(srv.URL)
			require.NoError(t, c.AuthenticateAdmin(context.Background(), "admin@example.com", "pw"))
			assert.Equal(t, "tok", c.Token())

			_, err := c.ListCollections(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "tok", authHeader.Load())
		})
	}
}

func TestHTTPClient_AuthenticateAdminFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]any{"status": 400, "message": "Failed to authenticate."})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.AuthenticateAdmin(context.Background(), "admin@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, internalerrors.ErrUnauthorized, internalerrors.KindOf(err))
	assert.Empty(t, c.Token())
}
