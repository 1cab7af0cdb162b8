// Package server exposes the practice controller over a small JSON API for
// a UI client.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/b2english/tensequest/internal/content"
	"github.com/b2english/tensequest/internal/metrics"
	"github.com/b2english/tensequest/internal/practice"
	"github.com/b2english/tensequest/internal/progress"
	"github.com/b2english/tensequest/internal/selection"
	"github.com/b2english/tensequest/internal/session"
)

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server serves one Controller.
type Server struct {
	echo   *echo.Echo
	ctrl   *practice.Controller
	logger *zap.Logger
	config Config
}

// New creates a Server.
func New(ctrl *practice.Controller, logger *zap.Logger, cfg Config) (*Server, error) {
	if ctrl == nil {
		return nil, errors.New("controller cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			duration := time.Since(start)
			status := c.Response().Status

			metrics.HTTPRequestDuration.
				WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).
				Observe(duration.Seconds())
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{echo: e, ctrl: ctrl, logger: logger, config: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/run", s.handleRun)
	v1.DELETE("/run", s.handleAbandon)
	v1.POST("/run/start", s.handleStart)
	v1.POST("/run/submit", s.handleSubmit)
	v1.POST("/run/advance", s.handleAdvance)
	v1.POST("/run/timeout", s.handleTimeout)
	v1.POST("/run/retry", s.handleRetry)
	v1.POST("/run/lifeline/:kind", s.handleLifeline)
	v1.GET("/stats", s.handleStats)
	v1.GET("/topics", s.handleTopics)
	v1.GET("/me", s.handleMe)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	err := s.echo.Start(s.config.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StartRequest is the request body for POST /api/v1/run/start.
type StartRequest struct {
	Mode  string `json:"mode"`
	Daily bool   `json:"daily"`
	Topic string `json:"topic,omitempty"`
	Count int    `json:"count,omitempty"`
}

// SubmitRequest is the request body for POST /api/v1/run/submit.
type SubmitRequest struct {
	Answer string `json:"answer"`
}

// SubmitResponse is the response body for POST /api/v1/run/submit.
type SubmitResponse struct {
	Feedback content.Feedback `json:"feedback"`
	Run      session.Snapshot `json:"run"`
}

// AdvanceResponse is the response body for POST /api/v1/run/advance.
type AdvanceResponse struct {
	Advanced bool              `json:"advanced"`
	Run      session.Snapshot  `json:"run"`
	Summary  *practice.Summary `json:"summary,omitempty"`
}

// StatsResponse is the response body for GET /api/v1/stats.
type StatsResponse struct {
	Device   progress.DeviceStats  `json:"device"`
	Accuracy int                   `json:"accuracy"`
	Weekly   progress.WeeklyStats  `json:"weekly"`
	Goal     progress.GoalProgress `json:"goal"`
	Last     *practice.Summary     `json:"last_session,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleRun(c echo.Context) error {
	return c.JSON(http.StatusOK, redact(s.ctrl.Snapshot()))
}

func (s *Server) handleAbandon(c echo.Context) error {
	s.ctrl.Abandon()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleStart(c echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	var snap session.Snapshot
	if mode == session.ModeFocus {
		topic := req.Topic
		if topic == "" {
			topic = content.TopicPresentSimple
		}
		snap, err = s.ctrl.StartFocus(ctx, topic, req.Count)
	} else {
		snap, err = s.ctrl.StartSession(ctx, mode, req.Daily)
	}
	if err != nil {
		return s.toHTTPError(err)
	}
	return c.JSON(http.StatusOK, redact(snap))
}

func (s *Server) handleSubmit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	fb, err := s.ctrl.Submit(c.Request().Context(), req.Answer)
	if err != nil {
		return s.toHTTPError(err)
	}
	if fb == nil {
		return echo.NewHTTPError(http.StatusConflict, "no question is waiting for an answer")
	}
	return c.JSON(http.StatusOK, SubmitResponse{Feedback: *fb, Run: redact(s.ctrl.Snapshot())})
}

func (s *Server) handleAdvance(c echo.Context) error {
	advanced := s.ctrl.Advance()
	resp := AdvanceResponse{Advanced: advanced, Run: redact(s.ctrl.Snapshot())}
	if resp.Run.State == session.StateFinished {
		resp.Summary = s.ctrl.Summary()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTimeout(c echo.Context) error {
	s.ctrl.Timeout()
	return c.JSON(http.StatusOK, redact(s.ctrl.Snapshot()))
}

func (s *Server) handleRetry(c echo.Context) error {
	if !s.ctrl.Retry() {
		return echo.NewHTTPError(http.StatusConflict, "nothing to retry")
	}
	return c.JSON(http.StatusOK, redact(s.ctrl.Snapshot()))
}

func (s *Server) handleLifeline(c echo.Context) error {
	kind := session.Lifeline(c.Param("kind"))
	if err := s.ctrl.UseLifeline(kind); err != nil {
		return s.toHTTPError(err)
	}
	return c.JSON(http.StatusOK, redact(s.ctrl.Snapshot()))
}

func (s *Server) handleStats(c echo.Context) error {
	st, weekly, goal := s.ctrl.Stats(c.Request().Context())
	return c.JSON(http.StatusOK, StatsResponse{
		Device:   st,
		Accuracy: st.Accuracy(),
		Weekly:   weekly,
		Goal:     goal,
		Last:     s.ctrl.Summary(),
	})
}

func (s *Server) handleTopics(c echo.Context) error {
	return c.JSON(http.StatusOK, content.Topics())
}

func (s *Server) handleMe(c echo.Context) error {
	u := s.ctrl.Refresh(c.Request().Context())
	if u == nil {
		return echo.NewHTTPError(http.StatusBadGateway, "could not load your profile")
	}
	return c.JSON(http.StatusOK, u)
}

// toHTTPError maps controller and collaborator errors to responses. A 403
// from the backend keeps its own message so the UI can tell it apart.
func (s *Server) toHTTPError(err error) error {
	switch {
	case errors.Is(err, practice.ErrDailyLocked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNoSpares):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, practice.ErrUnknownTopic),
		errors.Is(err, session.ErrUnknownLifeline):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, selection.ErrEmptyPool):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, session.ErrRunReset):
		return echo.NewHTTPError(http.StatusConflict, "the run was reset")
	case content.IsForbidden(err):
		return echo.NewHTTPError(http.StatusForbidden, "You do not have permission to do that.")
	case content.IsUnauthorized(err):
		return echo.NewHTTPError(http.StatusUnauthorized, "Please sign in again.")
	}

	var apiErr *content.APIError
	if errors.As(err, &apiErr) {
		s.logger.Warn("backend request failed", zap.Int("status", apiErr.Status), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	s.logger.Error("request failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

// redact drops locally known answers before a snapshot leaves the process.
func redact(s session.Snapshot) session.Snapshot {
	s.Questions = stripAnswers(s.Questions)
	s.Spares = stripAnswers(s.Spares)
	if len(s.Ladder) > 0 {
		ladder := make([]session.LadderLevel, len(s.Ladder))
		copy(ladder, s.Ladder)
		for i := range ladder {
			ladder[i].Question.Answer = ""
		}
		s.Ladder = ladder
	}
	return s
}

func stripAnswers(qs []content.Question) []content.Question {
	if len(qs) == 0 {
		return qs
	}
	out := make([]content.Question, len(qs))
	copy(out, qs)
	for i := range out {
		out[i].Answer = ""
	}
	return out
}
