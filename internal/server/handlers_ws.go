package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/metrics"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/pool"
)

const readDeadline = 60 * time.Second

// handleWebSocket runs the session handshake: edge limits, upgrade, token
// verification, admission. Rejections after the upgrade close with a
// specific code; the HTTP layer never sees them as errors.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		metrics.HandshakeRejectionsTotal.WithLabelValues(string(reason)).Inc()
		return c.String(http.StatusTooManyRequests, "too many connections")
	}

	released := false
	releaseIP := func() {
		if !released {
			released = true
			s.limits.Release(ip)
		}
	}

	tableID := c.QueryParam("table")
	token := c.QueryParam("token")
	if tableID == "" {
		releaseIP()
		return c.String(http.StatusBadRequest, "table is required")
	}

	native := s.cfg.CompressionEnabled && headerSupportsDeflate(c.Request().Header)

	wsConn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		releaseIP()
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}
	transport := newWSTransport(wsConn, s.clock, native)

	result, err := s.auth.Verify(c.Request().Context(), token)
	if err != nil {
		// A bad token is the client's fault; an unreachable auth service
		// is not, and must not be reported as one.
		if errors.Is(err, domain.ErrAuthenticationFailed) {
			metrics.HandshakeRejectionsTotal.WithLabelValues("auth").Inc()
			_ = transport.Close(domain.ClosePolicyReason, "authentication failed")
		} else {
			metrics.HandshakeRejectionsTotal.WithLabelValues("auth_unavailable").Inc()
			slog.Error("Token verification unavailable", "error", err)
			_ = transport.Close(websocket.CloseInternalServerErr, "authentication unavailable")
		}
		releaseIP()
		return nil
	}

	var conn *pool.Connection
	callbacks := pool.Callbacks{
		// OnMessage fires from the read pump below, after conn is assigned.
		OnMessage: func(env domain.Envelope) {
			s.handleInbound(conn, env)
		},
		OnError: func(err error) {
			slog.Warn("Connection error",
				"client_id", result.ClientID,
				"table_id", tableID,
				"error", err,
			)
		},
		OnClose: func(reason string) {
			releaseIP()
		},
	}

	conn, err = s.registry.Admit(transport, result.ClientID, tableID, callbacks)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCapacityExceeded):
			metrics.HandshakeRejectionsTotal.WithLabelValues("capacity").Inc()
			_ = transport.Close(websocket.CloseTryAgainLater, "table full")
		case errors.Is(err, domain.ErrPoolClosed):
			_ = transport.Close(domain.CloseGoingAway, "server shutting down")
		default:
			_ = transport.Close(domain.CloseNormal, "admission failed")
		}
		releaseIP()
		return nil
	}

	transport.setPongCallback(func(latency time.Duration) {
		conn.RecordLatency(latency)
		_ = wsConn.SetReadDeadline(s.clock.Now().Add(readDeadline))
	})

	s.sendControl(conn, domain.TypeAuthenticated, map[string]string{
		"clientId":     result.ClientID,
		"connectionId": conn.ID().String(),
	})
	s.sendControl(conn, domain.TypeSubscribed, map[string]string{
		"table": tableID,
	})

	// Read pump — blocks until the connection closes. A malformed compressed
	// frame is answered with a structured error, never a close.
	_ = wsConn.SetReadDeadline(s.clock.Now().Add(readDeadline))
	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			break
		}
		_ = wsConn.SetReadDeadline(s.clock.Now().Add(readDeadline))

		if err := conn.HandleInbound(data, msgType == websocket.BinaryMessage); err != nil {
			if errors.Is(err, domain.ErrDecompression) {
				_ = conn.Send(domain.NewErrorEnvelope("malformed compressed frame", s.clock.Now()), pool.SendOptions{NoCompress: true})
			}
		}
	}

	s.registry.Release(conn, "client disconnected")
	return nil
}

// handleInbound routes an application message. The session layer only
// understands subscription checks; everything else goes to the installed
// message handler.
func (s *Server) handleInbound(conn *pool.Connection, env domain.Envelope) {
	switch env.Type {
	case "subscribe":
		var req struct {
			Table    string `json:"table"`
			ClientID string `json:"clientId"`
		}
		_ = json.Unmarshal(env.Payload, &req)

		if (req.ClientID != "" && req.ClientID != conn.ClientID()) ||
			(req.Table != "" && req.Table != conn.TableID()) {
			slog.Warn("Unauthorized subscription attempt",
				"client_id", conn.ClientID(),
				"requested_table", req.Table,
			)
			_ = conn.Send(domain.NewErrorEnvelope(domain.ErrUnauthorizedSubscription.Error(), s.clock.Now()), pool.SendOptions{NoCompress: true})
			return
		}
		s.sendControl(conn, domain.TypeSubscribed, map[string]string{"table": conn.TableID()})
	default:
		if s.onMessage != nil {
			s.onMessage(conn, env)
		}
	}
}

func (s *Server) sendControl(conn *pool.Connection, msgType string, body map[string]string) {
	payload, err := json.Marshal(body)
	if err != nil {
		return
	}
	// Control messages are small and latency-sensitive; never compressed.
	if err := conn.Send(domain.NewEnvelope(msgType, payload, s.clock.Now()), pool.SendOptions{NoCompress: true}); err != nil {
		slog.Warn("Control message send failed",
			"type", msgType,
			"connection_id", conn.ID().String(),
			"error", err,
		)
	}
}

func headerSupportsDeflate(h http.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Sec-WebSocket-Extensions")), "permessage-deflate")
}
