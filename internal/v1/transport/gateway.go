// Package transport owns the server side of every client connection: the
// WebSocket upgrade, the per-connection read and write pumps, and the
// dispatch of decoded requests to the coordinator.
//
// Each connection runs two goroutines. The read pump decodes frames,
// classifies them, asks the coordinator, and enqueues the reply on the
// session mailbox. The write pump is the mailbox's only consumer and the
// connection's only writer, so replies and unsolicited pushes share one
// ordered outbound stream.
package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parley-im/parley/internal/v1/coordinator"
	"github.com/parley-im/parley/internal/v1/logging"
	"github.com/parley-im/parley/internal/v1/metrics"
)

// Gateway accepts client connections and binds each one to a session.
// Session ids are assigned by the coordinator on attach, and Wait joins
// every connection goroutine at shutdown.
type Gateway struct {
	coord          *coordinator.Coordinator
	serverCtx      context.Context
	allowedOrigins []string
	upgrader       websocket.Upgrader
	wg             sync.WaitGroup
}

// NewGateway creates a gateway dispatching to coord. serverCtx is the
// process lifetime; its cancellation is the shutdown broadcast every pump
// observes. An empty allowedOrigins list admits any origin (development
// mode).
func NewGateway(serverCtx context.Context, coord *coordinator.Coordinator, allowedOrigins []string) *Gateway {
	g := &Gateway{
		coord:          coord,
		serverCtx:      serverCtx,
		allowedOrigins: allowedOrigins,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// ServeWs upgrades the HTTP request and starts the connection's pumps.
func (g *Gateway) ServeWs(c *gin.Context) {
	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	ctx := logging.WithCorrelationID(g.serverCtx, uuid.NewString())

	sess, err := g.coord.Attach(ctx)
	if err != nil {
		logging.Warn(ctx, "rejecting connection during shutdown", zap.Error(err))
		_ = ws.Close()
		return
	}
	ctx = logging.WithSessionID(ctx, sess.ID)
	logging.Info(ctx, "client connected", zap.String("remote", c.Request.RemoteAddr))
	metrics.IncConnection()

	cn := newConn(ctx, ws, sess, g.coord)
	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		cn.writePump()
	}()
	go func() {
		defer g.wg.Done()
		cn.readPump()
	}()
}

// Wait blocks until every connection goroutine has exited. Call after the
// server context is cancelled.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin header.
		return true
	}
	for _, allowed := range g.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
