package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"dubber/internal/api"
	"dubber/internal/config"
	"dubber/internal/joblog"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/metrics"
	"dubber/internal/services"
	"dubber/internal/workflow"
)

const (
	defaultLogLimit = 200
	maxLogWait      = 30 * time.Second
)

type apiServer struct {
	cfg    *config.Config
	bind   string
	logger *slog.Logger
	daemon *Daemon
	engine *gin.Engine

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		cfg:    cfg,
		bind:   strings.TrimSpace(cfg.API.Bind),
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}
	srv.engine = srv.routes()
	return srv
}

func (s *apiServer) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.logger))

	engine.GET("/api/health", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		engine.GET(s.cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	group := engine.Group("/api", authMiddleware(s.cfg.API.Token))
	group.POST("/jobs", s.handleSubmit)
	group.GET("/jobs", s.handleList)
	group.GET("/jobs/:id", s.handleGet)
	group.DELETE("/jobs/:id", s.handleRemove)
	group.GET("/jobs/:id/result", s.handleResult)
	group.POST("/jobs/:id/cancel", s.handleCancel)
	group.GET("/jobs/:id/events", s.handleJobEvents)
	group.GET("/jobs/:id/log", s.handleJobLog)
	group.GET("/events", s.handleEvents)
	group.GET("/stats", s.handleStats)
	group.GET("/voices", s.handleVoices)
	return engine
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      maxLogWait + 30*time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener, s.server = listener, server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_serve_failed"),
			)
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.listener, s.server = nil, nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) manager() *workflow.Manager { return s.daemon.manager }

func (s *apiServer) handleSubmit(c *gin.Context) {
	var req api.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, services.Wrap(services.ErrInvalidInput, "api", "submit", "malformed request body", err))
		return
	}
	job, err := s.manager().Submit(c.Request.Context(), workflow.Request{
		Source:         req.Source,
		TargetLanguage: req.TargetLanguage,
		SourceLanguage: req.SourceLanguage,
		AccentHint:     req.AccentHint,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleList(c *gin.Context) {
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	list, err := s.manager().List(c.Request.Context(), statuses...)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(list)})
}

func (s *apiServer) handleGet(c *gin.Context) {
	job, err := s.manager().Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleRemove(c *gin.Context) {
	if err := s.manager().Remove(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *apiServer) handleResult(c *gin.Context) {
	path, err := s.manager().Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func (s *apiServer) handleCancel(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := s.manager().Cancel(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	job, err := s.manager().Status(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleJobEvents(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.manager().Status(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	since, err := queryInt(c, "since")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromEvents(s.daemon.bus.ForJob(id, since), since))
}

func (s *apiServer) handleEvents(c *gin.Context) {
	since, err := queryInt(c, "since")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromEvents(s.daemon.bus.Since(since), since))
}

func (s *apiServer) handleJobLog(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.manager().Status(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		writeError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}
	if limit <= 0 {
		limit = defaultLogLimit
	}
	q := joblog.Query{
		Offset:   offset,
		Limit:    int(limit),
		Follow:   c.Query("follow") == "1" || strings.EqualFold(c.Query("follow"), "true"),
		Stage:    strings.TrimSpace(c.Query("stage")),
		MinLevel: strings.TrimSpace(c.Query("level")),
	}
	if q.Follow {
		wait, err := queryInt(c, "wait")
		if err != nil {
			writeError(c, err)
			return
		}
		q.Wait = min(time.Duration(wait)*time.Second, maxLogWait)
		if q.Wait <= 0 {
			q.Wait = 10 * time.Second
		}
	}
	page, err := joblog.Read(c.Request.Context(), s.cfg.JobLogPath(id), q)
	if err != nil {
		writeError(c, err)
		return
	}
	lines := page.Lines
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, api.LogResponse{Lines: lines, Offset: page.Offset})
}

func (s *apiServer) handleStats(c *gin.Context) {
	stats, err := s.manager().Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromStats(stats))
}

func (s *apiServer) handleHealth(c *gin.Context) {
	health := s.daemon.Health(c.Request.Context())
	code := http.StatusOK
	if !health.Ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

func (s *apiServer) handleVoices(c *gin.Context) {
	lang := strings.ToLower(strings.TrimSpace(c.Query("language")))
	if lang == "" {
		writeError(c, services.Wrap(services.ErrInvalidInput, "api", "voices", "language query parameter is required", nil))
		return
	}
	voices, err := s.daemon.Voices(c.Request.Context(), lang)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.FromVoices(lang, voices))
}

func parseStatuses(raw string) ([]jobs.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var statuses []jobs.Status
	for _, part := range strings.Split(raw, ",") {
		status, ok := jobs.ParseStatus(strings.TrimSpace(part))
		if !ok {
			return nil, services.Wrap(services.ErrInvalidInput, "api", "list", fmt.Sprintf("unknown status %q", part), nil)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func queryInt(c *gin.Context, key string) (int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrInvalidInput, "api", "query", fmt.Sprintf("%s must be an integer", key), nil)
	}
	return value, nil
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotReady), errors.Is(err, jobs.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := services.Kind(err)
	if errors.Is(err, jobs.ErrInvalidTransition) {
		kind = "conflict"
	}
	c.AbortWithStatusJSON(statusCode(err), api.ErrorResponse{Error: err.Error(), Kind: kind})
}
