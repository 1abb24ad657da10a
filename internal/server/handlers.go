package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"liveserve/internal/logger"
	"liveserve/internal/metrics"
	"liveserve/internal/model"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (s *Server) handleStatic(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.StaticRequestDuration.Observe(time.Since(start).Seconds())
	}()

	reqPath := c.Request().URL.Path

	entry, err := s.resolver.Resolve(reqPath)
	if err != nil {
		if errors.Is(err, model.ErrPathTraversal) {
			metrics.StaticRequestsTotal.WithLabelValues("forbidden").Inc()
			logger.Log.Warn("rejected request outside root",
				zap.String("path", reqPath))
			return c.String(http.StatusForbidden, "403 Forbidden\n")
		}

		metrics.StaticRequestsTotal.WithLabelValues("error").Inc()
		logger.Log.Error("failed to resolve request",
			zap.String("path", reqPath),
			zap.Error(err))
		return c.String(http.StatusInternalServerError, "500 Internal Server Error\n")
	}

	err = s.responder.Respond(c.Response(), c.Request(), entry)
	switch {
	case errors.Is(err, model.ErrNotFound):
		metrics.StaticRequestsTotal.WithLabelValues("not_found").Inc()
	case err != nil:
		// headers are already out; usually the client went away mid-stream
		metrics.StaticRequestsTotal.WithLabelValues("error").Inc()
		logger.Log.Debug("failed to write response",
			zap.String("path", reqPath),
			zap.Error(err))
	case entry.IsFallback:
		metrics.StaticRequestsTotal.WithLabelValues("fallback").Inc()
	default:
		metrics.StaticRequestsTotal.WithLabelValues("file").Inc()
	}

	return nil
}

func (s *Server) handleSocket(c echo.Context) error {
	if !websocket.IsWebSocketUpgrade(c.Request()) {
		return c.String(http.StatusBadRequest, "websocket upgrade required\n")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Log.Warn("failed to upgrade websocket", zap.Error(err))
		return nil
	}

	client := s.clients.Register(conn)
	if !client.Open {
		return nil
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		s.clients.Touch(client.ID)
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Read pump (blocks until disconnect)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		s.clients.Touch(client.ID)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}

	s.clients.Unregister(client.ID)
	return nil
}

func (s *Server) handleStatus(c echo.Context) error {
	if s.status == nil {
		return c.JSON(http.StatusOK, model.StatusSnapshot{Root: s.cfg.Root, Addr: s.Addr(), Clients: s.clients.Count()})
	}
	return c.JSON(http.StatusOK, s.status())
}

func (s *Server) handleStop(c echo.Context) error {
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.history == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "history disabled"})
	}

	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil {
			n = parsed
		}
	}

	records, err := s.history.GetRecent(n)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleMetrics(c echo.Context) error {
	metrics.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}
