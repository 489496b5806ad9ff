// Package server exposes the report engine to the local UI over HTTP. The
// surrounding desktop shell opens a browser against this server; every route
// maps to one of the UI trigger points (pick template, pick source, preview
// matches, run export).
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/i-machine-things/JobDocs-sub000/internal/config"
)

// Server is the local HTTP server.
type Server struct {
	router *gin.Engine
	h      *Handler
}

// NewServer creates the server and registers routes.
func NewServer(cfg *config.AppConfig, log *zap.Logger) *Server {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router: gin.Default(),
		h:      NewHandler(cfg, log),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// CORS for the dev frontend.
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		s.h.RegisterRoutes(api)
	}
}

// Run starts the server.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
