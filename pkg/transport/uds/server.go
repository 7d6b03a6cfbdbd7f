package uds

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// writeTimeout bounds a single write to a viewer. A viewer that stops reading
// is dropped instead of stalling broadcasts to everyone else.
const writeTimeout = 5 * time.Second

// HandlerFunc processes a request and returns a response data payload or error.
type HandlerFunc func(ctx context.Context, req Message) (any, error)

// Server listens on a Unix domain socket and dispatches NDJSON messages.
// Handlers must be registered before Start.
type Server struct {
	socketPath string
	listener   net.Listener
	handlers   map[string]HandlerFunc
	clients    map[*peer]struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

// peer is one connected viewer. Responses and broadcasts share the
// connection, so writes are serialized.
type peer struct {
	conn net.Conn
	wmu  sync.Mutex
}

func (p *peer) send(line []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := p.conn.Write(line)
	return err
}

// NewServer creates a new UDS server.
func NewServer(socketPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]HandlerFunc),
		clients:    make(map[*peer]struct{}),
		logger:     logger,
	}
}

// Handle registers a handler for a method.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.handlers[method] = h
}

// Start begins listening. A stale socket file left by a previous daemon is
// removed first.
func (s *Server) Start(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("server listening", "socket", s.socketPath)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept error", "err", err)
			continue
		}
		p := &peer{conn: conn}
		s.mu.Lock()
		s.clients[p] = struct{}{}
		s.mu.Unlock()
		s.logger.Debug("viewer connected", "viewers", s.Viewers())
		go s.serve(ctx, p)
	}
}

// Viewers returns the number of connected clients.
func (s *Server) Viewers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends an event to every connected viewer. Viewers whose write
// fails are disconnected.
func (s *Server) Broadcast(msg Message) {
	line, err := encodeLine(msg)
	if err != nil {
		s.logger.Error("broadcast marshal error", "method", msg.Method, "err", err)
		return
	}

	s.mu.RLock()
	peers := make([]*peer, 0, len(s.clients))
	for p := range s.clients {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	for _, p := range peers {
		if err := p.send(line); err != nil {
			s.logger.Warn("dropping viewer", "method", msg.Method, "err", err)
			s.drop(p)
		}
	}
}

// Shutdown closes the listener and every viewer, then removes the socket.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	for p := range s.clients {
		p.conn.Close()
		delete(s.clients, p)
	}
	s.mu.Unlock()
	os.Remove(s.socketPath)
}

func (s *Server) drop(p *peer) {
	s.mu.Lock()
	delete(s.clients, p)
	s.mu.Unlock()
	p.conn.Close()
}

func (s *Server) serve(ctx context.Context, p *peer) {
	defer s.drop(p)

	scanner := bufio.NewScanner(p.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxMessageSize)

	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			s.logger.Error("invalid message", "err", err)
			continue
		}
		if msg.Type != MsgTypeReq {
			continue
		}

		line, err := encodeLine(s.dispatch(ctx, msg))
		if err != nil {
			s.logger.Error("marshal response error", "method", msg.Method, "err", err)
			continue
		}
		if err := p.send(line); err != nil {
			s.logger.Error("write response error", "method", msg.Method, "err", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("viewer read error", "err", err)
	}
}

// dispatch runs the handler for msg and always returns a response carrying
// msg.ID, so the caller is never left waiting for a reply that cannot come.
func (s *Server) dispatch(ctx context.Context, msg Message) (resp Message) {
	handler, ok := s.handlers[msg.Method]
	if !ok {
		return NewErrorResponse(msg.ID, msg.Method, fmt.Sprintf("unknown method: %s", msg.Method))
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic", "method", msg.Method, "panic", r)
			resp = NewErrorResponse(msg.ID, msg.Method, fmt.Sprintf("internal error in %s", msg.Method))
		}
	}()

	result, err := handler(ctx, msg)
	if err != nil {
		return NewErrorResponse(msg.ID, msg.Method, err.Error())
	}
	resp, err = NewResponse(msg.ID, msg.Method, result)
	if err != nil {
		s.logger.Error("encode result", "method", msg.Method, "err", err)
		return NewErrorResponse(msg.ID, msg.Method, fmt.Sprintf("encode result: %v", err))
	}
	return resp
}

func encodeLine(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
