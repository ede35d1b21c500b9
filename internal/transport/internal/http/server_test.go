package http

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jamesprial/pocketbase-mcp/internal/config"
)

// newTestServer creates a test server with the given address and handler.
func newTestServer(addr string, handler http.Handler, onShutdown ...func()) *server {
	cfg := &config.Config{
		Addr:         addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	router := NewRouter()
	router.Handle("/", handler)
	return NewServer(cfg, router, onShutdown...).(*server)
}

// startServer starts s and waits until it has a bound listener.
func startServer(t *testing.T, s *server) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.RLock()
		ready := s.listener != nil
		s.mu.RUnlock()
		if ready {
			return errCh
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server did not start")
	return nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "value")
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewServer_Panics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *config.Config
		handler http.Handler
	}{
		{"nil config", nil, okHandler()},
		{"nil handler", &config.Config{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			defer func() {
				if recover() == nil {
					t.Error("NewServer did not panic")
				}
			}()
			NewServer(tt.cfg, tt.handler)
		})
	}
}

func TestServer_StartServeShutdown(t *testing.T) {
	t.Parallel()

	s := newTestServer("127.0.0.1:0", okHandler())
	errCh := startServer(t, s)

	addr := s.Addr()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("Addr() = %q: %v", addr, err)
	}
	if host != "127.0.0.1" || port == "0" {
		t.Errorf("Addr() = %q, want bound 127.0.0.1 port", addr)
	}

	resp, err := http.Get("http://" + addr + "/anything")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Test") != "value" {
		t.Errorf("response = %d %q, want 200 value", resp.StatusCode, resp.Header.Get("X-Test"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start returned %v after graceful shutdown", err)
		}
	case <-time.After(time.Second):
		t.Error("Start did not return after Shutdown")
	}

	if conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond); err == nil {
		_ = conn.Close()
		t.Error("server still accepting connections after shutdown")
	}
}

func TestServer_ShutdownHooks(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := newTestServer("127.0.0.1:0", okHandler(), func() { calls.Add(1) }, nil)
	startServer(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}

	// net/http runs hooks on their own goroutines.
	deadline := time.Now().Add(time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("shutdown hook called %d times, want 1", got)
	}
}

func TestServer_ShutdownHookEndsStream(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	stream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		http.NewResponseController(w).Flush()
		<-done
	})
	s := newTestServer("127.0.0.1:0", stream, func() { close(done) })
	startServer(t, s)

	resp, err := http.Get("http://" + s.Addr() + "/sse")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown with open stream: %v", err)
	}
}

func TestServer_AddrBeforeStart(t *testing.T) {
	t.Parallel()

	s := newTestServer("127.0.0.1:0", okHandler())
	if got := s.Addr(); got != "127.0.0.1:0" {
		t.Errorf("Addr() before Start = %q, want configured address", got)
	}
}

func TestServer_StartInvalidAddress(t *testing.T) {
	t.Parallel()

	s := newTestServer("256.0.0.1:bad", okHandler())
	if err := s.Start(); err == nil {
		t.Error("Start with invalid address should fail")
	}
}
