// Package ws wires an HTTP upgrade endpoint to a nitram dispatch
// engine: one gin route handler per accepted connection, each running
// the engine's own connection lifecycle once upgraded.
package ws

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/martinschaer/nitram"
	"github.com/rs/zerolog/log"
)

// Handler upgrades incoming HTTP requests and hands each connection to
// an Engine for the rest of its life.
type Handler struct {
	engine   *nitram.Engine
	upgrader websocket.Upgrader
}

// NewHandler builds a Handler bound to engine. allowedOrigins is
// consulted by CheckOrigin; an empty list allows only localhost, for
// local development.
func NewHandler(engine *nitram.Engine, allowedOrigins []string) *Handler {
	return &Handler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

// NewHandlerFromEnv reads CORS_ALLOWED_ORIGINS (comma-separated) the
// same way the rest of the bootstrap reads its configuration.
func NewHandlerFromEnv(engine *nitram.Engine) *Handler {
	var origins []string
	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			origins = append(origins, strings.TrimSpace(o))
		}
	}
	return NewHandler(engine, origins)
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients don't send one
		}
		for _, a := range allowed {
			if origin == a {
				return true
			}
		}
		if len(allowed) == 0 {
			return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
		}
		return false
	}
}

// RegisterRoutes mounts the upgrade endpoint under router.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/ws", h.Serve)
}

// Serve upgrades the request and blocks for the connection's lifetime,
// running the engine's inbound/outbound loop pair.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.engine.ServeConn(conn)
}
