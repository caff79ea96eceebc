package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"kiosk/internal/dto"
	"kiosk/internal/logger"
	"kiosk/internal/model"
	"kiosk/internal/repository"
	"kiosk/internal/scanner"
	"kiosk/internal/service/broadcast"
	"kiosk/internal/service/storage"
)

// HistoryQueueSize bounds the number of scans waiting to be persisted.
const HistoryQueueSize = 100

// Scanner is the part of the scan loop the manager reports on.
type Scanner interface {
	State() scanner.State
	Format() scanner.CaptureFormat
}

// Manager turns scan results into broadcast events and history records.
type Manager struct {
	hub     *broadcast.Broadcaster
	scans   repository.ScanRepository
	scanner Scanner
	device  string
	logger  *logger.Logger

	historyQueue chan model.Scan
	buffer       *storage.BufferService
	numWorkers   int
	wg           sync.WaitGroup
	stopOnce     sync.Once
	stopBuffer   context.CancelFunc
	bufferDone   chan struct{}

	mu         sync.RWMutex
	lastScan   *dto.ScanEvent
	lastScanAt time.Time
	stopped    bool
	emitted    atomic.Uint64
	startedAt  time.Time
}

// NewManager creates a Manager. scans may be nil, in which case history is not recorded.
func NewManager(hub *broadcast.Broadcaster, scans repository.ScanRepository, workers int, device string, log *logger.Logger) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}

	m := &Manager{
		hub:        hub,
		scans:      scans,
		device:     device,
		logger:     log,
		numWorkers: workers,
		startedAt:  time.Now(),
	}

	if scans != nil {
		m.historyQueue = make(chan model.Scan, HistoryQueueSize)
		m.buffer = storage.NewBufferService(scans, log)

		ctx, cancel := context.WithCancel(context.Background())
		m.stopBuffer = cancel
		m.bufferDone = make(chan struct{})
		go func() {
			defer close(m.bufferDone)
			m.buffer.Run(ctx, storage.HistoryFlushInterval)
		}()

		for i := 0; i < m.numWorkers; i++ {
			m.wg.Add(1)
			go m.historyWorker(i)
		}
		m.logger.Info("Manager started with %d history worker(s)", m.numWorkers)
	} else {
		m.logger.Info("Manager started, history disabled")
	}

	return m
}

// AttachScanner lets Status report the scan loop state.
func (m *Manager) AttachScanner(s Scanner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanner = s
}

// HandleScan publishes one emitted code to every subscriber and queues it for history.
func (m *Manager) HandleScan(result scanner.ScanResult) {
	event := dto.NewScanEvent(result)
	msg, err := event.Encode()
	if err != nil {
		m.logger.Error("Error encoding scan event: %v", err)
		return
	}

	now := time.Now()
	m.mu.Lock()
	m.lastScan = &event
	m.lastScanAt = now
	m.mu.Unlock()
	m.emitted.Add(1)

	m.logger.Info("scanned: %s", result)

	if n, err := m.hub.Publish(msg); err != nil {
		m.logger.Warning("Scan %s not broadcast: %v", result, err)
	} else {
		m.logger.Debug("Scan delivered to %d subscriber(s)", n)
	}

	if m.historyQueue == nil {
		return
	}

	record := model.Scan{
		Code:      result.Code,
		Type:      result.Type.String(),
		Symbology: result.Symbology.String(),
		ScannedAt: now,
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		return
	}
	select {
	case m.historyQueue <- record:
	default:
		m.logger.Warning("History queue full - scan %s not recorded", result)
	}
}

// Subscribe registers a new event subscription.
func (m *Manager) Subscribe() (*broadcast.Subscription, error) {
	return m.hub.Subscribe()
}

// GetScanRepository returns the history repository, nil when history is disabled.
func (m *Manager) GetScanRepository() repository.ScanRepository {
	return m.scans
}

// Status returns a snapshot of the kiosk for the status endpoint. Before the
// first scan of this run the last scan comes from the history, when enabled.
func (m *Manager) Status() dto.Status {
	stats := m.hub.Stats()

	m.mu.RLock()
	status := dto.Status{
		State:       scanner.StateIdle.String(),
		Device:      m.device,
		Subscribers: stats.Subscribers,
		Published:   stats.Published,
		Dropped:     stats.Dropped,
		Scans:       m.emitted.Load(),
		StartedAt:   m.startedAt,
		History:     m.scans != nil,
	}
	if m.scanner != nil {
		status.State = m.scanner.State().String()
		status.Format = m.scanner.Format().String()
	}
	if m.lastScan != nil {
		last := *m.lastScan
		at := m.lastScanAt
		status.LastScan = &last
		status.LastScanAt = &at
	}
	m.mu.RUnlock()

	if status.LastScan == nil && m.scans != nil {
		latest, err := m.scans.GetLatest()
		if err != nil {
			m.logger.Warning("Error reading latest scan: %v", err)
		} else if latest != nil {
			status.LastScan = &dto.ScanEvent{Type: latest.Type, Code: latest.Code}
			status.LastScanAt = &latest.ScannedAt
		}
	}
	return status
}

// historyWorker moves queued scans into the write buffer.
func (m *Manager) historyWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Debug("History worker %d started", workerID)

	for record := range m.historyQueue {
		m.buffer.Add(record)
	}

	m.logger.Debug("History worker %d stopped", workerID)
}

// Stop closes the broadcaster and waits for queued and buffered history to be written.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.hub.Close()

		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()

		if m.historyQueue != nil {
			close(m.historyQueue)
			m.wg.Wait()
			m.stopBuffer()
			<-m.bufferDone
		}
		m.logger.Info("Manager stopped")
	})
}
