package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
	"github.com/jamesprial/pocketbase-mcp/internal/mcp"
	"github.com/jamesprial/pocketbase-mcp/internal/metrics"
)

// DefaultBufferSize is the per-session outbound queue length.
const DefaultBufferSize = 64

// Manager owns every live session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	factory mcp.HandlerFactory
	logger  *zap.Logger
	metrics *metrics.Metrics
	buffer  int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records the active session gauge.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithBufferSize sets the outbound queue length of new sessions.
func WithBufferSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.buffer = n
		}
	}
}

// NewManager creates a manager that builds a protocol handler per session
// with factory.
func NewManager(factory mcp.HandlerFactory, opts ...Option) *Manager {
	if factory == nil {
		panic("handler factory cannot be nil")
	}
	m := &Manager{
		sessions: make(map[string]*Session),
		factory:  factory,
		logger:   zap.NewNop(),
		buffer:   DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a new session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, internalerrors.New(domain, "Create", internalerrors.ErrInternal, err)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, internalerrors.New(domain, "Create", internalerrors.ErrInternal, err)
	}

	s := &Session{
		ID:        id.String(),
		Transport: newTransport(id.String(), m.buffer),
		Handler:   m.factory(),
		Created:   time.Now(),
		logger:    m.logger,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.metrics.SessionOpened()
	m.logger.Info("session opened", zap.String("session", s.ID))
	return s, nil
}

// Get returns the live session with id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove forgets the session and closes its transport. Unknown ids are
// ignored.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.Transport.Close()
	m.metrics.SessionClosed()
	m.logger.Info("session closed",
		zap.String("session", id),
		zap.Duration("lifetime", time.Since(s.Created)),
	)
}

// CloseAll removes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Transport.Close()
		m.metrics.SessionClosed()
	}
	if len(all) > 0 {
		m.logger.Info("sessions closed", zap.Int("count", len(all)))
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
