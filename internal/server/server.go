package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"ecoroute/internal/emission"
	"ecoroute/internal/llmservice"
	"ecoroute/internal/planner"
	"ecoroute/internal/rag"
	"ecoroute/internal/retrieval"
	"ecoroute/internal/session"
)

// Deps are the components the HTTP API serves. QA and Planner may be nil,
// in which case their routes answer 503.
type Deps struct {
	Table    *emission.Table
	QA       rag.Answerer
	Planner  *planner.Planner
	Sessions *session.Manager
}

type Server struct {
	deps    Deps
	metrics *Metrics
	router  *gin.Engine
}

func New(deps Deps) *Server {
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(0)
	}
	s := &Server{deps: deps, metrics: NewMetrics()}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.GET("/modes", s.listModes)
	api.POST("/emissions", s.calculate)
	api.POST("/compare", s.compare)
	api.POST("/plan", s.plan)
	api.POST("/sessions", s.startSession)
	api.GET("/sessions/:id", s.getSession)
	api.DELETE("/sessions/:id", s.endSession)
	api.POST("/sessions/:id/ask", s.ask)
	return router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// writeTimeout must leave room for a full model call.
func (s *Server) Run(ctx context.Context, addr string, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Debug().Msg("Received shutdown signal, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("Server shutdown completed")
	return nil
}

type emissionRequest struct {
	Mode       string   `json:"mode" binding:"required"`
	DistanceKm *float64 `json:"distance_km" binding:"required"`
}

type compareRequest struct {
	DistanceKm *float64 `json:"distance_km" binding:"required"`
	Priority   string   `json:"priority"`
}

type planRequest struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	DistanceKm  *float64 `json:"distance_km" binding:"required"`
	Priority    string   `json:"priority"`
}

type askRequest struct {
	Question string `json:"question"`
}

func abort(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, emission.ErrUnknownMode),
		errors.Is(err, emission.ErrInvalidDistance),
		errors.Is(err, rag.ErrEmptyQuestion),
		errors.Is(err, planner.ErrMissingEndpoints):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, llmservice.ErrServiceUnavailable),
		errors.Is(err, retrieval.ErrEmptyIndex):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) listModes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"table": s.deps.Table.Name(),
		"modes": s.deps.Table.Modes(),
	})
}

func (s *Server) calculate(c *gin.Context) {
	var req emissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	res, err := s.deps.Table.Calculate(req.Mode, *req.DistanceKm)
	s.metrics.lookups.WithLabelValues("emission", result(err)).Inc()
	if err != nil {
		abort(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	priority, err := emission.ParsePriority(req.Priority)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	routes, err := s.deps.Table.Compare(*req.DistanceKm, priority)
	s.metrics.lookups.WithLabelValues("compare", result(err)).Inc()
	if err != nil {
		abort(c, statusOf(err), err)
		return
	}
	body := gin.H{"priority": priority, "routes": routes}
	if len(routes) > 0 {
		body["savings"] = emission.Impact(routes[0], routes[len(routes)-1])
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) plan(c *gin.Context) {
	if s.deps.Planner == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("planner is not configured"))
		return
	}
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	priority, err := emission.ParsePriority(req.Priority)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	plan, err := s.deps.Planner.Recommend(c.Request.Context(), planner.Journey{
		Origin:      req.Origin,
		Destination: req.Destination,
		DistanceKm:  *req.DistanceKm,
		Priority:    priority,
	})
	if err != nil {
		abort(c, statusOf(err), err)
		return
	}
	body := gin.H{
		"journey":        plan.Journey,
		"routes":         plan.Routes,
		"savings":        plan.Savings,
		"recommendation": plan.Recommendation,
	}
	if plan.RecommendationErr != nil {
		body["recommendation_error"] = plan.RecommendationErr.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) startSession(c *gin.Context) {
	sess, err := s.deps.Sessions.Start()
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	s.metrics.activeSessions.Set(float64(s.deps.Sessions.Len()))
	c.JSON(http.StatusCreated, gin.H{"id": sess.ID, "created_at": sess.CreatedAt})
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.deps.Sessions.Get(c.Param("id"))
	if err != nil {
		abort(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": sess.ID, "created_at": sess.CreatedAt, "history": sess.History()})
}

func (s *Server) endSession(c *gin.Context) {
	if err := s.deps.Sessions.End(c.Param("id")); err != nil {
		abort(c, statusOf(err), err)
		return
	}
	s.metrics.activeSessions.Set(float64(s.deps.Sessions.Len()))
	c.Status(http.StatusNoContent)
}

func (s *Server) ask(c *gin.Context) {
	sess, err := s.deps.Sessions.Get(c.Param("id"))
	if err != nil {
		abort(c, statusOf(err), err)
		return
	}
	if s.deps.QA == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("question answering is not configured"))
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	resp, err := s.deps.QA.Ask(c.Request.Context(), req.Question)
	s.metrics.answerDuration.Observe(time.Since(start).Seconds())
	s.metrics.questions.WithLabelValues(result(err)).Inc()

	turn := session.Turn{Question: req.Question, Answer: resp.Content, Context: resp.Source}
	if err != nil {
		turn.Err = err.Error()
	}
	sess.Append(turn)

	if err != nil {
		abort(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
