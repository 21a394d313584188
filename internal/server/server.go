package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/broadcast"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/compression"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/config"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/pool"
)

// MessageHandler receives inbound application messages the session layer
// does not handle itself. Wallet, table, and moderation modules hook in
// here.
type MessageHandler func(conn *pool.Connection, env domain.Envelope)

// Server is the HTTP/WebSocket front of the session layer.
type Server struct {
	echo       *echo.Echo
	cfg        *config.Config
	registry   *pool.Registry
	manager    *pool.Manager
	fanout     *broadcast.Fanout
	relay      *broadcast.Relay
	negotiator *compression.Negotiator
	auth       domain.Authenticator
	limits     *HandshakeLimits
	clock      clockwork.Clock
	upgrader   websocket.Upgrader
	onMessage  MessageHandler
}

// NewServer wires the session components behind echo. relay may be nil when
// Redis is not configured.
func NewServer(
	cfg *config.Config,
	registry *pool.Registry,
	manager *pool.Manager,
	fanout *broadcast.Fanout,
	relay *broadcast.Relay,
	negotiator *compression.Negotiator,
	authenticator domain.Authenticator,
	clock clockwork.Clock,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	srv := &Server{
		echo:       e,
		cfg:        cfg,
		registry:   registry,
		manager:    manager,
		fanout:     fanout,
		relay:      relay,
		negotiator: negotiator,
		auth:       authenticator,
		limits:     NewHandshakeLimits(cfg.MaxPerIP, cfg.HandshakeRate, cfg.HandshakeBurst),
		clock:      clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   1024,
			EnableCompression: cfg.CompressionEnabled,
			CheckOrigin: func(r *http.Request) bool {
				return true // Desktop and web clients connect from any origin
			},
		},
	}

	srv.registerRoutes()
	return srv
}

// SetMessageHandler installs the application-level inbound message hook.
func (s *Server) SetMessageHandler(h MessageHandler) {
	s.onMessage = h
}

// BroadcastToTable hands a table-scoped update to the delayed fan-out, and
// mirrors it to the other instances when the relay is configured. This is
// the entry point application modules call for topic-addressed traffic.
func (s *Server) BroadcastToTable(ctx context.Context, tableID, msgType string, payload json.RawMessage) {
	env := domain.NewEnvelope(msgType, payload, s.clock.Now())
	s.fanout.Enqueue(tableID, env)
	if s.relay != nil {
		_ = s.relay.Publish(ctx, tableID, env)
	}
}

// SendToConnection delivers a message to one connection immediately.
func (s *Server) SendToConnection(connID uuid.UUID, msgType string, payload json.RawMessage, opts pool.SendOptions) error {
	conn, ok := s.registry.Get(connID)
	if !ok {
		return domain.ErrSendFailure
	}
	return conn.Send(domain.NewEnvelope(msgType, payload, s.clock.Now()), opts)
}

// SendToClient delivers a message to a client's current connection.
func (s *Server) SendToClient(clientID, msgType string, payload json.RawMessage, opts pool.SendOptions) error {
	conn, ok := s.registry.ByClient(clientID)
	if !ok {
		return domain.ErrSendFailure
	}
	return conn.Send(domain.NewEnvelope(msgType, payload, s.clock.Now()), opts)
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	return s.echo.Start(":" + s.cfg.Port)
}

// Shutdown stops the HTTP listener. Pool draining is the Manager's job and
// happens separately.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
