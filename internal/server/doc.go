// Package server exposes the session layer over HTTP: the WebSocket
// handshake with edge rate limiting and token verification, the
// application-facing send/broadcast entry points, and the read-only
// admin/observability API.
package server
