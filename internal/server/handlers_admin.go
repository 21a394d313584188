package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// The admin surface is read-only: every endpoint is a side-effect-free query
// over current in-memory state.

func (s *Server) handlePoolStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.Stats())
}

func (s *Server) handleDetailedMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"pool":        s.registry.Stats(),
		"connections": s.registry.DetailedMetrics(),
		"compression": s.negotiator.Stats().Snapshot(),
	})
}

func (s *Server) handleTableMetrics(c echo.Context) error {
	tableID := c.Param("id")
	if tableID == "" {
		return c.String(http.StatusBadRequest, "table id is required")
	}
	return c.JSON(http.StatusOK, s.registry.TableMetrics(tableID))
}

func (s *Server) handleCompressionStats(c echo.Context) error {
	stats := s.negotiator.Stats()
	return c.JSON(http.StatusOK, map[string]any{
		"totals":         stats.Snapshot(),
		"threshold":      s.negotiator.Threshold(),
		"recommendation": stats.Recommend(s.negotiator.Threshold()),
	})
}

func (s *Server) handleCompressionByType(c echo.Context) error {
	return c.JSON(http.StatusOK, s.negotiator.Stats().ByType())
}
