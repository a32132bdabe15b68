// Package server provides the HTTP API for the chat service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mayadakhatib/langgraph-crewai/chat"
	"github.com/mayadakhatib/langgraph-crewai/log"
	"github.com/mayadakhatib/langgraph-crewai/store"
)

// Server exposes the conversation engine over HTTP.
type Server struct {
	echo   *echo.Echo
	engine *chat.Engine
	store  store.CheckpointStore
	logger log.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	// Listen is the address to bind, e.g. ":8000".
	Listen string

	// StoreName labels the checkpoint backend in the health response.
	StoreName string
}

// NewServer creates the HTTP server around an engine and its checkpoint
// store.
func NewServer(engine *chat.Engine, cs store.CheckpointStore, logger log.Logger, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cs == nil {
		return nil, fmt.Errorf("checkpoint store cannot be nil")
	}
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	if cfg == nil {
		cfg = &Config{Listen: ":8000", StoreName: "memory"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request method=%s uri=%s status=%d duration=%s request_id=%s",
				c.Request().Method,
				c.Request().RequestURI,
				c.Response().Status,
				time.Since(start),
				c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		engine: engine,
		store:  cs,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/chat", s.handleChat)
	s.echo.GET("/threads", s.handleListThreads)
	s.echo.GET("/threads/:id/state", s.handleThreadState)
	s.echo.DELETE("/threads/:id", s.handleDeleteThread)
}

// errorHandler renders every error as {"error": "..."}.
func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}

	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

// httpError maps engine errors onto HTTP statuses.
func (s *Server) httpError(err error) error {
	switch {
	case errors.Is(err, chat.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	ThreadID  string `json:"thread_id"`
	UserInput string `json:"user_input"`
}

// ChatResponse is the response body for POST /chat.
type ChatResponse struct {
	ThreadID      string         `json:"thread_id"`
	Status        string         `json:"status"`
	Prompt        string         `json:"prompt,omitempty"`
	RequiresInput bool           `json:"requires_input,omitempty"`
	Messages      []chat.Message `json:"messages"`
}

// handleChat dispatches on the thread's phase: unknown threads are started,
// paused threads are resumed with the provided input, and finished threads
// report already_completed without re-executing anything.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()

	var (
		res *chat.Result
		err error
	)
	if req.ThreadID == "" {
		res, err = s.engine.Start(ctx, "")
	} else {
		var phase chat.ThreadPhase
		phase, err = s.engine.ThreadStatus(ctx, req.ThreadID)
		if err == nil {
			switch phase {
			case chat.ThreadLive:
				res, err = s.engine.Resume(ctx, req.ThreadID, req.UserInput)
			default:
				// Unknown threads start fresh under the requested id;
				// finished ones come back as already_completed.
				res, err = s.engine.Start(ctx, req.ThreadID)
			}
		}
	}
	if err != nil {
		return s.httpError(err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		ThreadID:      res.ThreadID,
		Status:        string(res.Status),
		Prompt:        res.Prompt,
		RequiresInput: res.Status == chat.StatusInterrupted,
		Messages:      res.State.Messages,
	})
}

// StateResponse is the response body for GET /threads/:id/state.
type StateResponse struct {
	ThreadID  string     `json:"thread_id"`
	State     chat.State `json:"state"`
	NextSteps []string   `json:"next_steps"`
	CreatedAt time.Time  `json:"created_at"`
	Step      int        `json:"step"`
}

func (s *Server) handleThreadState(c echo.Context) error {
	snap, err := s.engine.GetState(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.httpError(err)
	}

	next := snap.NextSteps
	if next == nil {
		next = []string{}
	}
	return c.JSON(http.StatusOK, StateResponse{
		ThreadID:  snap.ThreadID,
		State:     snap.State,
		NextSteps: next,
		CreatedAt: snap.CreatedAt,
		Step:      snap.Step,
	})
}

// ThreadsResponse is the response body for GET /threads.
type ThreadsResponse struct {
	Threads []string `json:"threads"`
	Count   int      `json:"count"`
}

func (s *Server) handleListThreads(c echo.Context) error {
	threads, err := s.store.ListThreads(c.Request().Context())
	if err != nil {
		return s.httpError(fmt.Errorf("%w: %v", chat.ErrPersistence, err))
	}
	if threads == nil {
		threads = []string{}
	}
	return c.JSON(http.StatusOK, ThreadsResponse{Threads: threads, Count: len(threads)})
}

// DeleteResponse is the response body for DELETE /threads/:id.
type DeleteResponse struct {
	Message            string `json:"message"`
	DeletedCheckpoints int64  `json:"deleted_checkpoints"`
}

func (s *Server) handleDeleteThread(c echo.Context) error {
	threadID := c.Param("id")

	count, err := s.engine.DeleteThread(c.Request().Context(), threadID)
	if err != nil {
		return s.httpError(err)
	}
	if count == 0 {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("thread not found: %s", threadID))
	}

	return c.JSON(http.StatusOK, DeleteResponse{
		Message:            fmt.Sprintf("thread %s deleted", threadID),
		DeletedCheckpoints: count,
	})
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status           string `json:"status"`
	Store            string `json:"store"`
	TotalThreads     int64  `json:"total_threads"`
	TotalCheckpoints int64  `json:"total_checkpoints"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Store: s.config.StoreName}

	if provider, ok := s.store.(store.StatsProvider); ok {
		stats, err := provider.Stats(c.Request().Context())
		if err != nil {
			s.logger.Warn("health stats unavailable: %v", err)
			resp.Status = "degraded"
		} else {
			resp.TotalThreads = stats.Threads
			resp.TotalCheckpoints = stats.Checkpoints
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting http server on %s", s.config.Listen)
	return s.echo.Start(s.config.Listen)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
