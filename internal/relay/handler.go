package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WebsocketHandler upgrades the connection and streams broker events as
// JSON text frames until the client disconnects.
func WebsocketHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("event stream upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer conn.Close()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)
		slog.Info("event stream client connected", "subscriber_id", id, "remote", r.RemoteAddr)

		// Drain client frames so closes and pings are noticed.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, err := wsutil.ReadClientText(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if err := wsutil.WriteServerText(conn, data); err != nil {
					slog.Debug("event stream write failed", "subscriber_id", id, "error", err)
					return
				}
			}
		}
	}
}
