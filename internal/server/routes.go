package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Session entry point
	s.echo.GET("/ws", s.handleWebSocket)

	// Read-only admin surface
	s.echo.GET("/api/stats", s.handlePoolStats)
	s.echo.GET("/api/metrics/detailed", s.handleDetailedMetrics)
	s.echo.GET("/api/tables/:id/metrics", s.handleTableMetrics)
	s.echo.GET("/api/compression/stats", s.handleCompressionStats)
	s.echo.GET("/api/compression/by-type", s.handleCompressionByType)
}
