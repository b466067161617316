package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/chartglass/overlay/internal/engine"
)

// eventStream upgrades the request to a websocket and forwards engine events
// as JSON text frames until the client disconnects.
func eventStream(hub *engine.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("event stream upgrade failed", "error", err, "remote", r.RemoteAddr)
			return
		}

		events, cancel := hub.Subscribe(64)

		// Drain client frames so close handshakes and pings are seen;
		// any read error ends the subscription.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				if _, err := wsutil.ReadClientText(conn); err != nil {
					return
				}
			}
		}()

		go func() {
			defer func() {
				cancel()
				conn.Close()
			}()
			slog.Info("event stream subscriber connected", "remote", r.RemoteAddr)
			for {
				select {
				case <-readDone:
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					data, err := json.Marshal(ev)
					if err != nil {
						slog.Debug("event marshal failed", "kind", ev.Kind, "error", err)
						continue
					}
					if err := wsutil.WriteServerText(conn, data); err != nil {
						slog.Debug("event stream write failed", "error", err)
						return
					}
				}
			}
		}()
	}
}
