package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"liveserve/internal/broadcast"
	"liveserve/internal/config"
	"liveserve/internal/logger"
	"liveserve/internal/model"
	"liveserve/internal/repository"
	"liveserve/internal/resolver"
	"liveserve/internal/static"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	ControlPrefix = "/_liveserve"
	SocketPath    = ControlPrefix + "/ws"
)

type Options struct {
	Config      *config.Config
	Resolver    *resolver.Resolver
	Responder   *static.Responder
	Broadcaster *broadcast.Broadcaster
	History     *repository.HistoryRepository
	Status      func() model.StatusSnapshot
}

type Server struct {
	echo      *echo.Echo
	cfg       *config.Config
	resolver  *resolver.Resolver
	responder *static.Responder
	clients   *broadcast.Broadcaster
	history   *repository.HistoryRepository
	status    func() model.StatusSnapshot
	upgrader  websocket.Upgrader
	stopCh    chan struct{}
}

func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())
	if opts.Config.CORS {
		e.Use(middleware.CORS())
	}

	s := &Server{
		echo:      e,
		cfg:       opts.Config,
		resolver:  opts.Resolver,
		responder: opts.Responder,
		clients:   opts.Broadcaster,
		history:   opts.History,
		status:    opts.Status,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		stopCh: make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// Push channel
	s.echo.GET(SocketPath, s.handleSocket)

	// Control API
	g := s.echo.Group(ControlPrefix)
	g.GET("/status", s.handleStatus)
	g.POST("/stop", s.handleStop)
	g.GET("/history", s.handleHistory)
	g.GET("/metrics", s.handleMetrics)

	// Everything else is a file under root
	s.echo.GET("/*", s.handleStatic)
	s.echo.HEAD("/*", s.handleStatic)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start binds the listen address synchronously, so an occupied port is
// reported to the caller, and serves in the background.
func (s *Server) Start() error {
	addr := s.cfg.Addr()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %s", model.ErrPortInUse, addr)
		}
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.echo.Listener = ln

	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("http server error", zap.Error(err))
		}
	}()

	logger.Log.Info("http server started",
		zap.String("addr", ln.Addr().String()),
		zap.String("root", s.cfg.Root))
	return nil
}

func (s *Server) Addr() string {
	if s.echo.Listener == nil {
		return s.cfg.Addr()
	}
	return s.echo.Listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.echo.Listener == nil {
		return nil
	}
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Log.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	})
}

const (
	pongWait       = 60 * time.Second
	maxMessageSize = 512
)
