// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ewczhang/poisoncake/internal/game"
	"github.com/ewczhang/poisoncake/internal/middleware"
)

// WSHandler upgrades the HTTP connection, mints a transient identity for
// it, and runs the read loop until the client goes away. The identity
// lives exactly as long as the connection; there is no account behind it.
func WSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"poisoncake"},
			OriginPatterns: []string{"*"}, // Adjust in production.
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "poisoncake" {
			c.Close(websocket.StatusPolicyViolation, "client must speak the poisoncake subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		cl := &client{
			id:     uuid.New(),
			out:    make(chan game.Event, 16),
			cancel: cancel,
		}
		gs.register(cl)

		go writePump(ctx, c, cl, logger)
		readPump(ctx, c, gs, cl, logger)

		gs.disconnect(cl)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	}
}

// readPump decodes intents off the wire and hands them to the
// coordinator. Exits on any read error or context cancellation.
func readPump(ctx context.Context, c *websocket.Conn, gs *GameServer, cl *client, logger *logrus.Logger) {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			switch {
			case closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway:
				logger.Infof("websocket closed normally for conn %s", cl.id)
			case strings.Contains(err.Error(), "context canceled"):
			default:
				logger.Warnf("read error for conn %s: %v", cl.id, err)
			}
			return
		}
		if typ != websocket.MessageText {
			logger.Warnf("ignoring non-text message from conn %s", cl.id)
			continue
		}

		var in Intent
		if err := json.Unmarshal(msg, &in); err != nil {
			logger.Warnf("invalid json from conn %s: %v", cl.id, err)
			gs.errorTo(cl, "Invalid JSON.")
			continue
		}
		gs.handleIntent(cl, in)
	}
}

// writePump drains the client's outbound channel onto the wire and keeps
// the connection alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, cl *client, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-cl.out:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("failed to marshal event %s for conn %s: %v", ev.Type, cl.id, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("write failed for conn %s: %v", cl.id, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ping failed for conn %s, assuming disconnect: %v", cl.id, err)
				return
			}
		}
	}
}
