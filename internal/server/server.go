package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"mac_health/internal/commands"
	"mac_health/internal/errs"
	"mac_health/internal/scheduler"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	pongWait     = 2 * pingInterval
)

// Dispatcher выполняет команды по имени
type Dispatcher interface {
	Call(ctx context.Context, name string, args commands.Args) (any, error)
	Commands() []commands.Info
}

// StatusFeed поток смен статуса системы
type StatusFeed interface {
	Subscribe(buffer int) (<-chan scheduler.StatusEvent, func())
	Current() (scheduler.StatusEvent, bool)
	GetStats() map[string]interface{}
}

// Server HTTP API поверх диспетчера команд
type Server struct {
	echo       *echo.Echo
	addr       string
	token      string
	dispatcher Dispatcher
	status     StatusFeed
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// New создает сервер и регистрирует маршруты
func New(addr, token string, dispatcher Dispatcher, status StatusFeed, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:       e,
		addr:       addr,
		token:      token,
		dispatcher: dispatcher,
		status:     status,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("HTTP request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error))
			return nil
		},
	}))

	e.GET("/healthz", s.health)

	api := e.Group("/api", s.auth)
	api.GET("/commands", s.listCommands)
	api.POST("/commands/:name", s.callCommand)
	api.GET("/status", s.currentStatus)
	api.GET("/status/ws", s.statusStream)

	return s
}

// Echo возвращает echo для монтирования дополнительных маршрутов
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Handler возвращает http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start запускает HTTP сервер и блокируется до остановки
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.addr))

	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown корректно останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.echo.Shutdown(ctx)
}

// auth проверяет токен в заголовке Authorization или параметре token
func (s *Server) auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.token == "" {
			return next(c)
		}

		provided := c.QueryParam("token")
		if header := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
			provided = strings.TrimPrefix(header, "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.token)) != 1 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		return next(c)
	}
}

// GET /healthz
func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"watcher": s.status.GetStats(),
	})
}

// GET /api/commands
func (s *Server) listCommands(c echo.Context) error {
	return c.JSON(http.StatusOK, s.dispatcher.Commands())
}

// POST /api/commands/:name
func (s *Server) callCommand(c echo.Context) error {
	name := c.Param("name")

	var args commands.Args
	if err := c.Bind(&args); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid command arguments",
		})
	}

	result, err := s.dispatcher.Call(c.Request().Context(), name, args)
	if err != nil {
		return c.JSON(StatusFor(err), map[string]string{"error": err.Error()})
	}
	if result == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, result)
}

// GET /api/status
func (s *Server) currentStatus(c echo.Context) error {
	event, ok := s.status.Current()
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Status not evaluated yet",
		})
	}
	return c.JSON(http.StatusOK, event)
}

// GET /api/status/ws
func (s *Server) statusStream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	events, unsubscribe := s.status.Subscribe(8)
	defer unsubscribe()

	// чтение нужно для обработки pong и закрытия соединения клиентом
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if current, ok := s.status.Current(); ok {
		if err := writeJSON(conn, current); err != nil {
			return nil
		}
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return nil
			}
			if err := writeJSON(conn, event); err != nil {
				s.logger.Debug("WebSocket write failed", zap.Error(err))
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		case <-closed:
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// StatusFor сопоставляет вид ошибки HTTP статусу
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.NotFound, errs.EmptyOutput:
		return http.StatusNotFound
	case errs.InvalidArgument:
		return http.StatusBadRequest
	case errs.PermissionDenied:
		return http.StatusForbidden
	case errs.Cancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
