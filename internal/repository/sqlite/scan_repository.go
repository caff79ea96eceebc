package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"kiosk/internal/dto"
	"kiosk/internal/model"
)

// ScanRepository implements repository.ScanRepository for SQLite.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new SQLite scan repository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Insert adds a new scan record to the database.
func (r *ScanRepository) Insert(scan *model.Scan) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO scans (code, type, symbology, scanned_at)
		VALUES (?, ?, ?, ?)
	`, scan.Code, scan.Type, scan.Symbology, scan.ScannedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple scans in a single transaction.
func (r *ScanRepository) InsertBatch(scans []model.Scan) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO scans (code, type, symbology, scanned_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, scan := range scans {
		if _, err := stmt.Exec(scan.Code, scan.Type, scan.Symbology, scan.ScannedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert scan: %w", err)
		}
	}

	return tx.Commit()
}

// GetAll retrieves scans matching filter, newest first.
func (r *ScanRepository) GetAll(filter *dto.ScanFilter) ([]model.Scan, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT id, code, type, symbology, scanned_at FROM scans` + where + ` ORDER BY scanned_at DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	scans := []model.Scan{}
	for rows.Next() {
		var scan model.Scan
		if err := rows.Scan(&scan.ID, &scan.Code, &scan.Type, &scan.Symbology, &scan.ScannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scans: %w", err)
	}

	return scans, nil
}

// GetTotalCount returns the number of scans matching filter, ignoring paging.
func (r *ScanRepository) GetTotalCount(filter *dto.ScanFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM scans`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return count, nil
}

// GetLatest returns the most recent scan, or nil when the history is empty.
func (r *ScanRepository) GetLatest() (*model.Scan, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var scan model.Scan
	err := r.db.Conn().QueryRow(`
		SELECT id, code, type, symbology, scanned_at
		FROM scans ORDER BY scanned_at DESC, id DESC LIMIT 1
	`).Scan(&scan.ID, &scan.Code, &scan.Type, &scan.Symbology, &scan.ScannedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest scan: %w", err)
	}
	return &scan, nil
}

// DeleteAll removes the whole history.
func (r *ScanRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM scans`); err != nil {
		return fmt.Errorf("failed to delete scans: %w", err)
	}
	return nil
}

func whereClause(filter *dto.ScanFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var conds []string
	var args []interface{}

	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, filter.Type)
	}

	if filter.Code != "" {
		conds = append(conds, "code LIKE ?")
		args = append(args, "%"+filter.Code+"%")
	}

	if !filter.DateAfter.IsZero() {
		conds = append(conds, "scanned_at >= ?")
		args = append(args, filter.DateAfter.UTC())
	}

	// DateBefore is inclusive of the whole day.
	if !filter.DateBefore.IsZero() {
		conds = append(conds, "scanned_at < ?")
		args = append(args, filter.DateBefore.AddDate(0, 0, 1).UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
