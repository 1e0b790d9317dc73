// Package server exposes the Waybill REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/waybill/internal/apperr"
	"github.com/zulandar/waybill/internal/notify"
	"gorm.io/gorm"
)

// Server provides HTTP handlers for the tracker backend.
type Server struct {
	engine     *gin.Engine
	db         *gorm.DB
	logger     *slog.Logger
	dispatcher *notify.Dispatcher
}

// Opts holds configuration for the API server.
type Opts struct {
	DB         *gorm.DB
	Logger     *slog.Logger
	Dispatcher *notify.Dispatcher
}

// New constructs the HTTP server with routes and middleware configured.
func New(opts Opts) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("server: db is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = notify.NewDispatcher()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(opts.Logger))

	srv := &Server{
		engine:     router,
		db:         opts.DB,
		logger:     opts.Logger,
		dispatcher: opts.Dispatcher,
	}
	srv.registerRoutes()
	return srv, nil
}

// Engine exposes the underlying Gin engine, used by tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves HTTP on the given port until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	s.logger.Info("server: listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	api.GET("/healthz", s.handleHealth)

	projects := api.Group("/projects")
	{
		projects.GET("", s.handleListProjects)
		projects.POST("", s.handleCreateProject)
		projects.GET("/:id", s.handleGetProject)
		projects.PATCH("/:id", s.handleUpdateProject)
		projects.DELETE("/:id", s.handleDeleteProject)

		projects.GET("/:id/issues", s.handleListIssues)
		projects.POST("/:id/issues", s.handleCreateIssue)
		projects.GET("/:id/board", s.handleBoard)
		projects.GET("/:id/backlog", s.handleBacklog)
		projects.GET("/:id/roadmap", s.handleRoadmap)

		projects.GET("/:id/sprints", s.handleListSprints)
		projects.POST("/:id/sprints", s.handleCreateSprint)

		projects.GET("/:id/labels", s.handleListLabels)
		projects.POST("/:id/labels", s.handleCreateLabel)
		projects.GET("/:id/components", s.handleListComponents)
		projects.POST("/:id/components", s.handleCreateComponent)
		projects.GET("/:id/versions", s.handleListVersions)
		projects.POST("/:id/versions", s.handleCreateVersion)

		projects.GET("/:id/members", s.handleListMembers)
		projects.POST("/:id/members", s.handleAddMember)
		projects.DELETE("/:id/members/:userID", s.handleRemoveMember)

		projects.GET("/:id/workflow", s.handleGetWorkflow)
		projects.PUT("/:id/workflow", s.handleReplaceWorkflow)
		projects.GET("/:id/board-config", s.handleGetBoardConfig)
		projects.PUT("/:id/board-config", s.handlePutBoardConfig)
	}

	issues := api.Group("/issues")
	{
		issues.GET("/:id", s.handleGetIssue)
		issues.PATCH("/:id", s.handleUpdateIssue)
		issues.DELETE("/:id", s.handleDeleteIssue)

		issues.GET("/:id/comments", s.handleListComments)
		issues.POST("/:id/comments", s.handleCreateComment)
		issues.GET("/:id/worklogs", s.handleListWorkLogs)
		issues.POST("/:id/worklogs", s.handleCreateWorkLog)
		issues.GET("/:id/watchers", s.handleListWatchers)
		issues.POST("/:id/watchers", s.handleAddWatcher)
		issues.DELETE("/:id/watchers/:userID", s.handleRemoveWatcher)
		issues.GET("/:id/attachments", s.handleListAttachments)
		issues.POST("/:id/attachments", s.handleCreateAttachment)
		issues.GET("/:id/links", s.handleListLinks)
		issues.POST("/:id/links", s.handleCreateLink)
		issues.GET("/:id/activity", s.handleListActivity)
		issues.POST("/:id/labels", s.handleAttachLabel)
		issues.DELETE("/:id/labels/:labelID", s.handleDetachLabel)
	}

	sprints := api.Group("/sprints")
	{
		sprints.GET("/:id", s.handleGetSprint)
		sprints.PATCH("/:id", s.handleUpdateSprint)
		sprints.POST("/:id/start", s.handleStartSprint)
		sprints.POST("/:id/complete", s.handleCompleteSprint)
		sprints.GET("/:id/velocity", s.handleSprintVelocity)
	}

	api.GET("/users", s.handleListUsers)
	api.POST("/users", s.handleCreateUser)
	api.GET("/notifications", s.handleListNotifications)
	api.POST("/notifications/:id/read", s.handleMarkNotificationRead)
	api.GET("/filters", s.handleListFilters)
	api.POST("/filters", s.handleCreateFilter)
	api.DELETE("/filters/:id", s.handleDeleteFilter)
}

// requestLogger logs one line per request with method, path, status
// and duration.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to uint with error handling.
func parseID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return uint(id), true
}

// respondError maps service errors to HTTP status codes and logs
// server-side failures.
func (s *Server) respondError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		s.logger.Error("request failed", "path", c.FullPath(), "error", err.Error())
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// badRequest rejects malformed request bodies.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
