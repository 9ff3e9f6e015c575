package api

import (
	"net/http"
	"time"

	"martingale-core/internal/engine"
	"martingale-core/internal/events"
	"martingale-core/pkg/db"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP endpoints around the strategy engine.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Engine    engine.Service
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	LiveExecution bool
	UseMockOracle bool
	QuoteSymbol   string
	Version       string
}

func NewServer(bus *events.Bus, database *db.Database, eng engine.Service, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		Engine:    eng,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)

		// Auth endpoints (no auth required)
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		// Protected API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/strategies", s.listStrategies)
			protected.POST("/strategies", s.createStrategy)
			protected.GET("/strategies/:id", s.getStrategy)
			protected.POST("/strategies/:id/pause", s.pauseStrategy)
			protected.POST("/strategies/:id/resume", s.resumeStrategy)
			protected.POST("/strategies/:id/stop", s.stopStrategy)

			protected.GET("/trades", s.listTrades)
			protected.GET("/strategies/:id/events", s.listStrategyEvents)
			protected.GET("/revenue", s.getRevenue)
			protected.GET("/stats", s.getStats)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"live_execution":  s.Meta.LiveExecution,
		"use_mock_oracle": s.Meta.UseMockOracle,
		"quote_symbol":    s.Meta.QuoteSymbol,
		"version":         s.Meta.Version,
		"events_dropped":  s.Bus.Dropped(),
	})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
