package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"kiosk/internal/logger"
	"kiosk/internal/service"
	"kiosk/internal/service/session"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ScanWebsocketHandler streams every emitted scan to the connected viewer
// until either side goes away.
func ScanWebsocketHandler(manager *service.Manager, opts session.Options, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := manager.Subscribe()
		if err != nil {
			http.Error(w, "Service shutting down", http.StatusServiceUnavailable)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			sub.Close()
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		logger.Info("Viewer connected: %s", r.RemoteAddr)

		if err := session.New(connection, sub, opts, logger).Run(r.Context()); err != nil {
			logger.Warning("Viewer %s disconnected with error: %v", r.RemoteAddr, err)
			return
		}
		logger.Info("Viewer disconnected: %s", r.RemoteAddr)
	}
}
