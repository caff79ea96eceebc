package model

import "time"

// Scan is one persisted scan event.
type Scan struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Type      string    `json:"type"`
	Symbology string    `json:"symbology"`
	ScannedAt time.Time `json:"scannedAt"`
}
