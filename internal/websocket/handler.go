package websocket

import (
	"log/slog"
	"net/http"
	"net/url"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/noteflow/internal/auth"
)

// HandleWebSocket upgrades signed-in requests and runs them as Hub clients.
// Only pages served from baseURL's host may connect.
func HandleWebSocket(hub *Hub, baseURL string, logger *slog.Logger) http.HandlerFunc {
	opts := &ws.AcceptOptions{}
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		opts.OriginPatterns = []string{u.Host}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := auth.UserID(r.Context())
		if ownerID == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			logger.Warn("websocket accept", "user_id", ownerID, "error", err)
			return
		}

		client := NewClient(hub, conn, ownerID)
		client.Run(r.Context())
	}
}
