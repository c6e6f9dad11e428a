package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/flemzord/tickwork/internal/runtime"
)

// StatusResponse is the JSON response for GET /status and the frame format
// of /ws/status.
type StatusResponse struct {
	Uptime  float64         `json:"uptime_seconds"`
	Gateway MetricsSnapshot `json:"gateway"`
	Runtime *runtime.Status `json:"runtime,omitempty"`
}

func (g *Gateway) status(ctx context.Context) (StatusResponse, error) {
	resp := StatusResponse{
		Uptime:  time.Since(g.startedAt).Truncate(time.Second).Seconds(),
		Gateway: g.metrics.Snapshot(),
	}
	if g.backend == nil {
		return resp, errNoBackend
	}
	st, err := g.backend.Status(ctx)
	if err != nil {
		return resp, err
	}
	resp.Runtime = &st
	return resp, nil
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := g.status(r.Context())
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleStatusStream upgrades GET /ws/status and pushes a StatusResponse
// frame immediately, then every StreamInterval until the peer goes away or
// the gateway stops. Client messages are ignored.
func (g *Gateway) handleStatusStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Warn("status stream upgrade failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		g.metrics.streamOpened()
		defer g.metrics.streamClosed()

		// CloseRead discards client frames and cancels ctx once the peer closes.
		ctx := conn.CloseRead(r.Context())
		ticker := time.NewTicker(g.config.StreamInterval)
		defer ticker.Stop()

		for {
			if err := g.sendStatus(ctx, conn); err != nil {
				g.logger.Debug("status stream ended", "error", err)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-g.done:
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			case <-ticker.C:
			}
		}
	}
}

func (g *Gateway) sendStatus(ctx context.Context, conn *websocket.Conn) error {
	resp, err := g.status(ctx)
	if err != nil {
		_ = conn.Close(websocket.StatusTryAgainLater, err.Error())
		return err
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, g.config.WriteTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return err
	}
	g.metrics.frameSent()
	return nil
}
