package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

const wsKeepAliveInterval = 30 * time.Second

// ResultSubscriber streams recorded-result payloads.
type ResultSubscriber interface {
	Subscribe(ctx context.Context) (<-chan string, func() error, error)
}

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams recorded results to admin monitors.
type WSHandler struct {
	feed     ResultSubscriber
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(feed ResultSubscriber, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		feed:     feed,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ResultsStream godoc
// WS /ws/admin/results/stream?token=...
// Pushes one message per recorded result until the admin disconnects.
func (h *WSHandler) ResultsStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before upgrading so a broken Redis still yields a proper HTTP error.
	events, stop, err := h.feed.Subscribe(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Result feed subscribe failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable)
		return
	}
	defer stop()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("admin_id", claims.UserID).Logger()
	wsLog.Info().Msg("Admin attached to live results")

	if err := ws.WriteTyped(conn, ws.ConnectedResponse{
		Event:   ws.EventConnected,
		Channel: config.CacheKey.ResultsMonitorChannel(),
	}); err != nil {
		return
	}

	// gorilla allows one concurrent writer; the reader only signals.
	pings := make(chan struct{}, 1)
	go h.readLoop(conn, wsLog, cancel, pings)

	keepAlive := time.NewTicker(wsKeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			wsLog.Info().Msg("Admin detached from live results")
			return
		case payload, ok := <-events:
			if !ok {
				ws.WriteError(conn, "result feed closed")
				return
			}
			if err := ws.WriteTyped(conn, ws.ResultResponse{Event: ws.EventResult, Result: json.RawMessage(payload)}); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PingResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case <-keepAlive.C:
			if err := ws.WriteTyped(conn, ws.PingResponse{Event: ws.EventPing}); err != nil {
				return
			}
		}
	}
}

// readLoop watches the client side of the connection and cancels the stream on close.
func (h *WSHandler) readLoop(conn *websocket.Conn, log zerolog.Logger, cancel context.CancelFunc, pings chan<- struct{}) {
	defer cancel()
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		if msg.Action == ws.ActionPing {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}
