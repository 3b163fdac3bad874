package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPServer runs the gin engine
type HTTPServer struct {
	cfg        ApiServerConfig
	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	errs       chan error
	logger     *logger.CtxZapLogger
	mu         sync.Mutex
}

func NewHTTPServer(cfg ApiServerConfig, engine *gin.Engine) *HTTPServer {
	return &HTTPServer{
		cfg:    cfg,
		engine: engine,
		errs:   make(chan error, 1),
		logger: logger.GetLogger("server"),
	}
}

func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Start binds the listener and serves in the background.
// Bind failures are returned; later serve failures arrive on Errors.
func (s *HTTPServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return errors.New("http server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped unexpectedly", zap.Error(err))
			s.errs <- err
		}
	}(s.httpServer)

	s.logger.Info("http server started",
		zap.String("addr", ln.Addr().String()),
		zap.String("mode", s.cfg.Mode),
	)
	return nil
}

// Addr is the bound address, empty before Start
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Errors delivers a serve failure after a successful Start
func (s *HTTPServer) Errors() <-chan error {
	return s.errs
}

// Shutdown drains in-flight requests. Safe to call more than once.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.logger.Debug("shutting down http server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server closed")
	return nil
}
