package storage

import (
	"context"
	"sync"
	"time"

	"kiosk/internal/logger"
	"kiosk/internal/model"
	"kiosk/internal/repository"
)

const (
	// HistoryBufferLimit is how many scans are buffered before an early flush.
	HistoryBufferLimit = 10
	// HistoryFlushInterval defines how often buffered scans are written to the database.
	HistoryFlushInterval = 5 * time.Second
)

// BufferService buffers scan records in memory and writes them to the
// repository in batches.
type BufferService struct {
	scans  []model.Scan
	limit  int
	mu     sync.Mutex
	logger *logger.Logger
	repo   repository.ScanRepository
}

// NewBufferService creates a BufferService writing to repo.
func NewBufferService(repo repository.ScanRepository, log *logger.Logger) *BufferService {
	if log == nil {
		log = logger.Nop()
	}
	return &BufferService{
		scans:  make([]model.Scan, 0, HistoryBufferLimit),
		limit:  HistoryBufferLimit,
		logger: log,
		repo:   repo,
	}
}

// Run flushes the buffer every interval until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Add appends a scan to the buffer, flushing early once the limit is reached.
func (s *BufferService) Add(scan model.Scan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scans = append(s.scans, scan)
	s.logger.Debug("History buffer size: %d/%d", len(s.scans), s.limit)
	if len(s.scans) >= s.limit {
		s.flushLocked()
	}
}

// Flush writes buffered scans to the repository and resets the buffer.
func (s *BufferService) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

// Len returns the number of scans waiting to be written.
func (s *BufferService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scans)
}

func (s *BufferService) flushLocked() {
	if len(s.scans) == 0 {
		return
	}

	if err := s.repo.InsertBatch(s.scans); err != nil {
		// The batch is dropped so the buffer stays bounded.
		s.logger.Error("Error saving %d scans to database: %v", len(s.scans), err)
	} else {
		s.logger.Debug("Flushed %d scans to database", len(s.scans))
	}
	s.scans = s.scans[:0]
}
