package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-outernet/receiver/internal/logging"
	"github.com/go-outernet/receiver/internal/metrics"
)

// Server owns the monitor TCP listener and fans out Hub events to every
// connected client as newline-delimited JSON.
type Server struct {
	mu   sync.RWMutex
	addr string
	Hub  *Hub

	flushInterval time.Duration
	batchSize     int
	readyOnce     sync.Once
	readyCh       chan struct{}
	lastErrMu     sync.Mutex
	lastErr       error
	errCh         chan error
	listener      net.Listener
	clientsMu     sync.RWMutex
	clients       map[*Client]net.Conn
	wg            sync.WaitGroup
	logger        *slog.Logger
	nextConnID    uint64

	totalAccepted     atomic.Uint64
	totalConnected    atomic.Uint64
	totalDisconnected atomic.Uint64
}

const (
	defaultFlushInterval = 50 * time.Millisecond
	defaultBatchSize     = 32
)

type ServerOption func(*Server)

// NewServer returns a Server; call Serve to start accepting clients.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		flushInterval: defaultFlushInterval,
		batchSize:     defaultBatchSize,
		readyCh:       make(chan struct{}),
		errCh:         make(chan error, 1),
		clients:       make(map[*Client]net.Conn),
		logger:        logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.addr == "" {
		s.addr = ":0"
	}
	return s
}

func WithListenAddr(a string) ServerOption { return func(s *Server) { s.addr = a } }
func WithHub(h *Hub) ServerOption          { return func(s *Server) { s.Hub = h } }
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
func WithFlushInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}
func WithBatchSize(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func (s *Server) Addr() string           { s.mu.RLock(); defer s.mu.RUnlock(); return s.addr }
func (s *Server) setAddr(a string)       { s.mu.Lock(); s.addr = a; s.mu.Unlock() }
func (s *Server) Ready() <-chan struct{} { return s.readyCh }
func (s *Server) Errors() <-chan error   { return s.errCh }

func (s *Server) setError(err error) {
	if err == nil {
		return
	}
	s.lastErrMu.Lock()
	s.lastErr = err
	s.lastErrMu.Unlock()
	select {
	case s.errCh <- err:
	default:
	}
}
func (s *Server) LastError() error { s.lastErrMu.Lock(); defer s.lastErrMu.Unlock(); return s.lastErr }

// Serve accepts TCP clients and spawns a writer goroutine per connection.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	addr := s.addr
	if addr == "" {
		addr = ":0"
	}
	s.mu.Unlock()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		return wrap
	}
	s.setAddr(ln.Addr().String())
	s.listener = ln
	if s.readyCh != nil {
		s.readyOnce.Do(func() { close(s.readyCh) })
	}
	s.logger.Info("monitor_listen", "addr", s.Addr())
	go func() { <-ctx.Done(); _ = ln.Close() }()
	for {
		if err := s.acceptOnce(ctx, ln); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (s *Server) acceptOnce(ctx context.Context, ln net.Listener) error {
	conn, err := ln.Accept()
	if err != nil {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}
		if _, ok := err.(net.Error); ok {
			time.Sleep(200 * time.Millisecond)
			return nil
		}
		wrap := fmt.Errorf("%w: %v", ErrAccept, err)
		metrics.IncError(mapErrToMetric(wrap))
		s.setError(wrap)
		return wrap
	}
	s.totalAccepted.Add(1)
	connID := atomic.AddUint64(&s.nextConnID, 1)
	connLogger := s.logger.With("conn_id", connID, "remote", conn.RemoteAddr().String())
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
		_ = tcp.SetKeepAlive(true)
		_ = tcp.SetKeepAlivePeriod(30 * time.Second)
	}

	client := s.newClient()
	s.clientsMu.Lock()
	s.clients[client] = conn
	s.clientsMu.Unlock()
	s.totalConnected.Add(1)
	connLogger.Info("monitor_client_connected")
	s.startWriter(ctx.Done(), conn, client, connLogger)
	s.startDisconnectWatcher(conn, client, connLogger)
	return nil
}

func (s *Server) newClient() *Client {
	bufSize := 64
	if s.Hub != nil && s.Hub.OutBufSize > 0 {
		bufSize = s.Hub.OutBufSize
	}
	cl := &Client{Out: make(chan Event, bufSize), Closed: make(chan struct{})}
	if s.Hub != nil {
		s.Hub.Add(cl)
	}
	return cl
}

// startDisconnectWatcher detects the client hanging up (the only reads this
// one-way protocol ever performs are to notice EOF) and tears the client
// down.
func (s *Server) startDisconnectWatcher(conn net.Conn, cl *Client, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil {
				cl.Close()
				return
			}
		}
	}()
}

// Shutdown gracefully closes all resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	s.clientsMu.Lock()
	for cl, conn := range s.clients {
		_ = conn.Close()
		if s.Hub != nil {
			s.Hub.Remove(cl)
		}
		delete(s.clients, cl)
	}
	s.clientsMu.Unlock()
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: shutdown timeout: %v", ErrContext, ctx.Err())
	case <-done:
		s.logger.Info("monitor_shutdown_summary", "accepted", s.totalAccepted.Load(), "connected", s.totalConnected.Load(), "disconnected", s.totalDisconnected.Load())
		return nil
	}
}
