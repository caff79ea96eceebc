package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kiosk/internal/dto"
	"kiosk/internal/logger"
	"kiosk/internal/repository"
)

const (
	// DefaultPageSize is used when the request has no valid limit.
	DefaultPageSize = 50
	// MaxPageSize caps the limit query parameter.
	MaxPageSize = 500
)

// GetScansHandler returns a filtered, paginated page of the scan history.
func GetScansHandler(scans repository.ScanRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if scans == nil {
			http.Error(w, "History disabled", http.StatusNotFound)
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), DefaultPageSize)
		if limit > MaxPageSize {
			limit = MaxPageSize
		}
		// offset must stay within SQLite's signed 64-bit range
		if maxPage := math.MaxInt32 / limit; page > maxPage {
			page = maxPage
		}

		codeType := strings.ToUpper(q.Get("type"))
		if codeType != "" && codeType != "QR" && codeType != "BARCODE" {
			http.Error(w, "type must be QR or BARCODE", http.StatusBadRequest)
			return
		}

		filter := &dto.ScanFilter{
			Type:       codeType,
			Code:       q.Get("code"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		items, err := scans.GetAll(filter)
		if err != nil {
			logger.Error("Error querying scans from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := scans.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting scans: %v", err)
			totalCount = len(items)
		}

		data := dto.ScanPage{
			Scans:       items,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// ClearScansHandler deletes the whole scan history.
func ClearScansHandler(scans repository.ScanRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if scans == nil {
			http.Error(w, "History disabled", http.StatusNotFound)
			return
		}

		if err := scans.DeleteAll(); err != nil {
			logger.Error("Error clearing scan history: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Scan history cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
