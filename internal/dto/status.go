package dto

import "time"

// Status describes the running kiosk for /api/status.
type Status struct {
	State       string     `json:"state"`
	Device      string     `json:"device"`
	Format      string     `json:"format"`
	Subscribers int        `json:"subscribers"`
	Published   uint64     `json:"published"`
	Dropped     uint64     `json:"dropped"`
	Scans       uint64     `json:"scans"`
	LastScan    *ScanEvent `json:"lastScan,omitempty"`
	LastScanAt  *time.Time `json:"lastScanAt,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	History     bool       `json:"history"`
}
