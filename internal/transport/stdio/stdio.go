// Package stdio serves the MCP protocol over newline-delimited JSON on a
// reader/writer pair, normally stdin and stdout. Nothing but protocol
// messages may be written to the writer; logs belong on stderr.
package stdio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/jamesprial/pocketbase-mcp/internal/mcp"
)

// maxLineBytes bounds the reader buffer; longer lines are still read.
const maxLineBytes = 1024 * 1024

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("stdio transport closed")

type readResult struct {
	data []byte
	err  error
}

// Server is the stdio transport. It holds a single protocol session for the
// life of the process.
type Server struct {
	handler mcp.Handler
	reader  *bufio.Reader
	logger  *zap.Logger

	mu     sync.Mutex // protects writer and closed
	writer io.Writer
	closed bool

	readCh     chan readResult
	done       chan struct{} // closed by Close
	readerDone chan struct{} // closed when the reader goroutine exits
	once       sync.Once
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. It must not write to the server's writer.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a stdio server feeding lines from r to handler and
// writing responses to w.
func NewServer(handler mcp.Handler, r io.Reader, w io.Writer, opts ...Option) *Server {
	if handler == nil {
		panic("handler cannot be nil")
	}
	s := &Server{
		handler:    handler,
		reader:     bufio.NewReaderSize(r, maxLineBytes),
		writer:     w,
		logger:     zap.NewNop(),
		readCh:     make(chan readResult, 1),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve reads messages until the reader reaches EOF or ctx is done. Each
// message is handled on its own goroutine; responses are written whole, one
// per line, in completion order. Serve waits for in-flight messages before
// returning. EOF is a clean shutdown and yields nil.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("stdio transport started")
	defer s.wg.Wait()

	for {
		line, err := s.receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("stdin closed")
				return nil
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, line)
		}()
	}
}

func (s *Server) handle(ctx context.Context, line []byte) {
	resp, err := mcp.HandleMessage(ctx, s.handler, line)
	if err != nil {
		s.logger.Error("handle message", zap.Error(err))
		return
	}
	if resp == nil {
		return
	}
	if err := s.Send(resp); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

// Send writes one message followed by a newline.
func (s *Server) Send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	buf := make([]byte, 0, len(message)+1)
	buf = append(append(buf, message...), '\n')
	if _, err := s.writer.Write(buf); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close stops further writes and releases the reader goroutine. The reader
// and writer themselves are left open, so a goroutine blocked reading stdin
// exits only once the next line or EOF arrives.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// startReader runs one goroutine for the server's lifetime so a cancelled
// receive never strands a partial read.
func (s *Server) startReader() {
	s.once.Do(func() {
		go func() {
			defer close(s.readerDone)
			defer close(s.readCh)
			for {
				line, err := s.reader.ReadBytes('\n')
				if len(line) > 0 && err == io.EOF {
					// Final line without a trailing newline.
					if !s.deliver(readResult{data: line}) {
						return
					}
				}
				if !s.deliver(readResult{data: line, err: err}) || err != nil {
					return
				}
			}
		}()
	})
}

// deliver hands r to receive. It reports false once the server is closed.
func (s *Server) deliver(r readResult) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.readCh <- r:
		return true
	case <-s.done:
		return false
	}
}

// receive returns the next non-blank line without its line ending.
func (s *Server) receive(ctx context.Context) ([]byte, error) {
	s.startReader()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result, ok := <-s.readCh:
			if !ok {
				return nil, io.EOF
			}
			if result.err != nil {
				if result.err == io.EOF {
					return nil, io.EOF
				}
				return nil, fmt.Errorf("read message: %w", result.err)
			}
			line := result.data
			if n := len(line); n > 0 && line[n-1] == '\n' {
				line = line[:n-1]
			}
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			if len(line) == 0 {
				continue
			}
			return line, nil
		}
	}
}
