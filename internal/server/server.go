package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pdo/internal/acquire"
	"pdo/internal/feeds"
	"pdo/internal/metrics"
	"pdo/internal/model"
	"pdo/internal/risk"
	"pdo/internal/routeplan"
	"pdo/internal/state"
)

// Options wires the server. Source is required. A nil Weights scores with
// the default set; Master enables scope=all analytics.
type Options struct {
	Source  acquire.Source
	Weights risk.Weights
	Limit   int
	Feed    feeds.Feed
	Planner routeplan.Planner
	Master  state.Store
	Metrics *metrics.Registry
	Log     *zap.Logger
}

type Server struct {
	source  acquire.Source
	weights risk.Weights
	limit   int
	feed    feeds.Feed
	planner routeplan.Planner
	master  state.Store
	metrics *metrics.Registry
	log     *zap.Logger
}

func New(opts Options) *Server {
	s := &Server{
		source:  opts.Source,
		weights: opts.Weights,
		limit:   opts.Limit,
		feed:    opts.Feed,
		planner: opts.Planner,
		master:  opts.Master,
		metrics: opts.Metrics,
		log:     opts.Log,
	}
	if s.feed == nil {
		s.feed = feeds.Stub{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Router registers every route on a fresh engine.
func (s *Server) Router(allowOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	if len(allowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: allowOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "X-Requested-With"},
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": "ok"})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/dashboard", s.getDashboard)
		api.GET("/orders", s.listOrders)
		api.GET("/analytics/:dimension", s.getAnalytics)
		api.POST("/predict", s.predict)
		api.POST("/routes/plan", s.planRoute)
		api.GET("/export", s.exportData)
		api.GET("/sample", s.sample)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

// fail maps caller errors to 400 and everything else to 500.
func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, model.ErrInvalidValue) || errors.Is(err, routeplan.ErrSameCity) {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
		return
	}
	s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
}
