// ScanPage is a paginated response payload for the scan history.
package dto

import "kiosk/internal/model"

type ScanPage struct {
	Scans       []model.Scan `json:"scans"`
	Length      int          `json:"length"`
	TotalPages  int          `json:"totalPages"`
	CurrentPage int          `json:"currentPage"`
	Limit       int          `json:"pageSize"`
}
