package route

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kiosk/internal/config"
	"kiosk/internal/logger"
	"kiosk/internal/middleware"
	"kiosk/internal/model"
	"kiosk/internal/repository/sqlite"
	"kiosk/internal/service"
	"kiosk/internal/service/broadcast"
)

func setupRouter(t *testing.T) (http.Handler, *sqlite.ScanRepository) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.StaticDirectory = filepath.Join(dir, "dist")
	os.MkdirAll(cfg.StaticDirectory, 0755)
	os.WriteFile(filepath.Join(cfg.StaticDirectory, "index.html"), []byte("<html>kiosk</html>"), 0644)

	db, err := sqlite.New(filepath.Join(dir, "scans.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := sqlite.NewScanRepository(db)

	log, err := logger.NewLogger(filepath.Join(dir, "logs"), false)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	auth, err := middleware.NewAuth("secret")
	if err != nil {
		t.Fatalf("NewAuth failed: %v", err)
	}

	manager := service.NewManager(broadcast.New(cfg.BroadcastCapacity), repo, 1, cfg.DevicePath, log)
	t.Cleanup(manager.Stop)

	return SetupRoutes(manager, auth, cfg, log), repo
}

func login(t *testing.T, router http.Handler) *http.Cookie {
	t.Helper()

	form := url.Values{"password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	t.Fatalf("login did not set a session cookie (status %d)", rr.Code)
	return nil
}

func TestRoutes_PublicEndpoints(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/api/status", http.StatusOK},
		{http.MethodGet, "/api/scans", http.StatusOK},
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/history", http.StatusOK},
		{http.MethodPost, "/api/status", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
		if rr.Code != tt.wantStatus {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.wantStatus, rr.Code)
		}
	}
}

func TestRoutes_AdminEndpointsRequireSession(t *testing.T) {
	router, repo := setupRouter(t)
	repo.Insert(&model.Scan{Code: "x", Type: "QR", Symbology: "QR_CODE", ScannedAt: time.Now()})

	for _, tt := range []struct{ method, path string }{
		{http.MethodDelete, "/api/scans"},
		{http.MethodGet, "/logs/info"},
		{http.MethodPost, "/logs/error/clear"},
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without session: expected 401, got %d", tt.method, tt.path, rr.Code)
		}
	}

	cookie := login(t, router)

	req := httptest.NewRequest(http.MethodDelete, "/api/scans", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE /api/scans with session: expected 204, got %d", rr.Code)
	}
	if n, _ := repo.GetTotalCount(nil); n != 0 {
		t.Errorf("history not cleared, %d scans left", n)
	}

	req = httptest.NewRequest(http.MethodGet, "/logs/info", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /logs/info with session: expected 200, got %d", rr.Code)
	}
}
