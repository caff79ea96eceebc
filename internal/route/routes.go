package route

import (
	"net/http"

	"github.com/gorilla/mux"

	"kiosk/internal/config"
	"kiosk/internal/handler"
	"kiosk/internal/logger"
	"kiosk/internal/middleware"
	"kiosk/internal/service"
	"kiosk/internal/service/session"
)

// SetupRoutes registers the websocket feed, API endpoints, admin routes and
// the static front-end.
func SetupRoutes(manager *service.Manager, auth *middleware.Auth, cfg *config.Config, logger *logger.Logger) http.Handler {
	r := mux.NewRouter()

	opts := session.Options{
		PingInterval: cfg.PingInterval,
		ReadTimeout:  cfg.ReadTimeout,
	}
	scans := manager.GetScanRepository()

	// Scan feed
	r.HandleFunc("/ws", handler.ScanWebsocketHandler(manager, opts, logger)).Methods(http.MethodGet)

	// API endpoints
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", handler.StatusHandler(manager, logger)).Methods(http.MethodGet)
	api.HandleFunc("/scans", handler.GetScansHandler(scans, logger)).Methods(http.MethodGet)
	api.Handle("/scans", auth.Require(handler.ClearScansHandler(scans, logger))).Methods(http.MethodDelete)

	// Auth endpoints
	r.HandleFunc("/auth/login", handler.LoginHandler(auth, logger)).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", handler.LogoutHandler(auth)).Methods(http.MethodPost)

	// Log endpoints, admin only
	logs := r.PathPrefix("/logs").Subrouter()
	logs.Use(auth.Require)
	logs.HandleFunc("/{level:info|warning|error}", handler.ShowLogsHandler(logger)).Methods(http.MethodGet)
	logs.HandleFunc("/{level:info|warning|error}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	// Front-end
	r.PathPrefix("/").Handler(handler.StaticHandler(cfg.StaticDirectory)).Methods(http.MethodGet, http.MethodHead)

	return r
}
