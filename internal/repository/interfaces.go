package repository

import (
	"kiosk/internal/dto"
	"kiosk/internal/model"
)

// ScanRepository defines the interface for scan history operations.
type ScanRepository interface {
	// Create operations
	Insert(scan *model.Scan) (int64, error)
	InsertBatch(scans []model.Scan) error

	// Read operations
	GetAll(filter *dto.ScanFilter) ([]model.Scan, error)
	GetTotalCount(filter *dto.ScanFilter) (int, error)
	GetLatest() (*model.Scan, error)

	// Delete operations
	DeleteAll() error
}
