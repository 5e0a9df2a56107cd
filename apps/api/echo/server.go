package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/announcement"
	"github.com/showtime/portal/core/attendance"
	"github.com/showtime/portal/core/auth"
	"github.com/showtime/portal/core/employee"
	"github.com/showtime/portal/core/meeting"
	"github.com/showtime/portal/core/message"
	"github.com/showtime/portal/core/presence"
)

type (
	// Pinger reports whether the database is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	ServerDeps struct {
		dig.In

		Conf            *core.Config
		Logger          core.Logger
		WSLogger        core.Logger `name:"wsLogger"`
		Validate        *validator.Validate
		Translator      ut.Translator
		DB              Pinger
		Gate            *auth.Gate
		Hub             *presence.Hub
		EmployeeSvc     *employee.Service
		MeetingSvc      *meeting.Service
		MessageSvc      *message.Service
		AnnouncementSvc *announcement.Service
		AttendanceSvc   *attendance.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.AllowedOrigins,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	api := s.app.Group("/api")
	api.GET("", s.home)
	api.GET("/health", s.health)

	authed := authMiddleware(s.deps.Gate)

	registerAuthAPI(api, authed, s.deps)
	registerEmployeeAPI(api, authed, s.deps)
	registerPresenceAPI(api, authed, s.deps)
	registerMeetingAPI(api, authed, s.deps)
	registerMessageAPI(api, authed, s.deps)
	registerAnnouncementAPI(api, authed, s.deps)
	registerAttendanceAPI(api, authed, s.deps)
}

func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

// Errors reports fatal listener errors.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal fires on SIGINT, SIGTERM or SignalShutdown.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops accepting requests, waits for in-flight ones and closes every live connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Hub.Close()
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Welcome to " + s.deps.Conf.AppName + " API!"})
}

func (s *Server) health(ctx echo.Context) error {
	if err := s.deps.DB.Ping(ctx.Request().Context()); err != nil {
		s.deps.Logger.Error("health check: database unreachable", err)
		return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "build": s.deps.Conf.Build})
}
