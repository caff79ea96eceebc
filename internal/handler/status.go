package handler

import (
	"encoding/json"
	"net/http"

	"kiosk/internal/logger"
	"kiosk/internal/service"
)

// StatusHandler reports scanner state, subscribers and the last scan.
func StatusHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(manager.Status()); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
