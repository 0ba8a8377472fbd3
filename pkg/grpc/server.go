// Package grpc provides a lightweight JSON-over-TCP RPC framework used by the
// curator to expose the session API.
//
// Protocol: newline-delimited JSON over a persistent TCP connection. Every
// response carries an outcome code (see pkg/errors) alongside the payload so
// callers can branch on the failure kind without parsing messages.
//
// Example server:
//
//	s := grpc.NewServer(10 * time.Second)
//	s.Register("SessionService.Start", func(ctx context.Context, req json.RawMessage) (any, error) {
//	    var startReq proto.StartRequest
//	    json.Unmarshal(req, &startReq)
//	    // ... start the session ...
//	    return &proto.SessionResponse{...}, nil
//	})
//	s.Serve(":9400")
//
// Example client:
//
//	c, _ := grpc.Dial("localhost:9400")
//	var resp proto.SessionResponse
//	c.Call(ctx, "SessionService.Start", &proto.StartRequest{}, &resp)
package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/logger"
)

// HandlerFunc processes an RPC request and returns a response or error.
type HandlerFunc func(ctx context.Context, req json.RawMessage) (any, error)

// Request is the wire format for an RPC request.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

// Response is the wire format for an RPC response.
type Response struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Server is a lightweight JSON-over-TCP RPC server.
type Server struct {
	handlers       map[string]HandlerFunc
	listener       net.Listener
	logger         *slog.Logger
	requestTimeout time.Duration
	observe        func(method, code string)
	conns          map[net.Conn]struct{}
	mu             sync.RWMutex
	wg             sync.WaitGroup
	done           chan struct{}
}

// NewServer creates a new RPC server. Each request runs under a context
// bounded by requestTimeout; zero means unbounded.
func NewServer(requestTimeout time.Duration) *Server {
	return &Server{
		handlers:       make(map[string]HandlerFunc),
		conns:          make(map[net.Conn]struct{}),
		logger:         slog.Default().With("component", "rpc-server"),
		requestTimeout: requestTimeout,
		done:           make(chan struct{}),
	}
}

// Observe installs a hook called once per request with its outcome code.
func (s *Server) Observe(fn func(method, code string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observe = fn
}

// Register adds a handler for the given RPC method name.
// Method names follow the "Service.Method" convention.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// Serve starts accepting TCP connections on the given address.
// It blocks until Stop is called.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				s.logger.Error("accept error", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			return // connection closed or read error
		}

		resp := s.dispatch(req)

		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	s.mu.RLock()
	handler, exists := s.handlers[req.Method]
	observe := s.observe
	s.mu.RUnlock()

	resp := Response{ID: req.ID}
	if !exists {
		resp.Code = apperrors.CodeInvalidInput
		resp.Error = fmt.Sprintf("unknown method: %s", req.Method)
		return resp
	}

	ctx := logger.WithRequestID(context.Background(), req.ID)
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	data, err := handler(ctx, req.Params)
	resp.Code = apperrors.Code(err)
	// A handler may return data with an error, e.g. the unchanged session
	// next to a clarification request.
	resp.Data = data
	if err != nil {
		resp.Error = err.Error()
		logger.FromContext(ctx).Warn("rpc failed",
			"method", req.Method,
			"code", resp.Code,
			"error", err,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
	if observe != nil {
		observe(req.Method, resp.Code)
	}
	return resp
}

// MethodCount returns the number of registered methods.
func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Stop closes the listener and every open connection, then waits for
// in-flight requests to finish writing.
func (s *Server) Stop() {
	close(s.done)
	s.mu.RLock()
	ln := s.listener
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.RUnlock()
	if ln != nil {
		ln.Close()
	}
	s.wg.Wait()
	s.logger.Info("rpc server stopped")
}
