package scanner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"kiosk/internal/logger"
)

// DefaultBufferDepth is the number of driver buffers requested for a capture stream.
const DefaultBufferDepth = 4

// Device is the capture device capability the scanner depends on.
type Device interface {
	// Configure requests a frame format and returns the one the device actually applied.
	Configure(format CaptureFormat) (CaptureFormat, error)

	// Stream starts capturing with depth driver buffers.
	Stream(depth int) (FrameStream, error)

	// Close releases the device.
	Close() error
}

// FrameStream delivers raw frames from an active capture.
//
// Next blocks until a frame is ready. The returned slice is only valid until
// the following call to Next. Close must be idempotent, safe to call from
// another goroutine and must make a blocked Next return an error.
type FrameStream interface {
	Next() ([]byte, error)
	Close() error
}

// Options configures a Scanner.
type Options struct {
	Width       int
	Height      int
	Encoding    PixelEncoding
	BufferDepth int
}

// Scanner owns the capture device and turns its frames into deduplicated scan results.
type Scanner struct {
	device     Device
	recognizer *Recognizer
	logger     *logger.Logger
	depth      int

	mu      sync.Mutex
	format  CaptureFormat
	pending *CaptureFormat
	running bool

	state atomic.Int32
}

// New configures device and returns a Scanner for it. A configuration failure is fatal.
func New(device Device, recognizer *Recognizer, opts Options, log *logger.Logger) (*Scanner, error) {
	if log == nil {
		log = logger.Nop()
	}
	if opts.BufferDepth <= 0 {
		opts.BufferDepth = DefaultBufferDepth
	}

	s := &Scanner{
		device:     device,
		recognizer: recognizer,
		logger:     log,
		depth:      opts.BufferDepth,
	}

	format, err := s.configure(CaptureFormat{Width: opts.Width, Height: opts.Height, Encoding: opts.Encoding})
	if err != nil {
		return nil, err
	}
	s.format = format
	return s, nil
}

// Format returns the capture format currently in effect.
func (s *Scanner) Format() CaptureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// State returns the phase of the scan loop.
func (s *Scanner) State() State {
	return State(s.state.Load())
}

// SetResolution changes the capture size. While a loop is running the change
// is applied before the next frame is captured.
func (s *Scanner) SetResolution(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := CaptureFormat{Width: width, Height: height, Encoding: s.format.Encoding}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidFormat, width, height)
	}
	if s.running {
		s.pending = &req
		return nil
	}

	format, err := s.configure(req)
	if err != nil {
		return err
	}
	s.format = format
	return nil
}

// Close releases the capture device.
func (s *Scanner) Close() error {
	return s.device.Close()
}

// CaptureOnce grabs a single frame and tries to recognize it, without duplicate suppression.
func (s *Scanner) CaptureOnce(ctx context.Context) (ScanResult, bool, error) {
	if err := s.begin(); err != nil {
		return ScanResult{}, false, err
	}
	defer s.end()

	stream := &activeStream{}
	if err := stream.open(s.device, s.depth); err != nil {
		return ScanResult{}, false, fmt.Errorf("%w: start stream: %w", ErrCapture, err)
	}
	defer stream.close()
	stop := context.AfterFunc(ctx, stream.close)
	defer stop()

	s.setState(StateCapturing)
	frame, err := stream.next()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ScanResult{}, false, ctxErr
		}
		return ScanResult{}, false, fmt.Errorf("%w: next frame: %w", ErrCapture, err)
	}

	s.setState(StateRecognizing)
	return s.recognizer.Recognize(Normalize(frame, s.Format()))
}

// Run scans until ctx is cancelled or the device fails, calling fn once per
// newly seen code. It returns ctx.Err() on cancellation and an ErrCapture
// wrapped error on device failure.
func (s *Scanner) Run(ctx context.Context, fn func(ScanResult)) error {
	return s.run(ctx, 0, fn)
}

// RunN scans until fn has been called n times.
func (s *Scanner) RunN(ctx context.Context, n int, fn func(ScanResult)) error {
	if n <= 0 {
		return nil
	}
	return s.run(ctx, n, fn)
}

func (s *Scanner) run(ctx context.Context, limit int, fn func(ScanResult)) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	stream := &activeStream{}
	if err := stream.open(s.device, s.depth); err != nil {
		return fmt.Errorf("%w: start stream: %w", ErrCapture, err)
	}
	defer stream.close()

	// Unblocks a pending Next on shutdown.
	stop := context.AfterFunc(ctx, stream.close)
	defer stop()

	format := s.Format()
	s.logger.Info("Scan loop started (%s, %d buffers)", format, s.depth)

	var dedup suppressor
	emitted := 0
	for limit == 0 || emitted < limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.applyPending(stream, &format); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		s.setState(StateCapturing)
		frame, err := stream.next()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: next frame: %w", ErrCapture, err)
		}

		s.setState(StateRecognizing)
		result, ok := s.recognize(frame, format)
		if !ok || !dedup.observe(result.Code) {
			continue
		}

		s.setState(StateEmitting)
		fn(result)
		emitted++
	}
	return nil
}

func (s *Scanner) recognize(frame []byte, format CaptureFormat) (ScanResult, bool) {
	result, ok, err := s.recognizer.Recognize(Normalize(frame, format))
	if err != nil {
		s.logger.Debug("Frame skipped: %v", err)
		return ScanResult{}, false
	}
	return result, ok
}

// applyPending reconfigures the device between frames when SetResolution was
// called during the loop.
func (s *Scanner) applyPending(stream *activeStream, format *CaptureFormat) error {
	s.mu.Lock()
	req := s.pending
	s.pending = nil
	s.mu.Unlock()

	if req == nil {
		return nil
	}

	stream.release()
	got, err := s.configure(*req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.format = got
	s.mu.Unlock()
	*format = got

	if err := stream.open(s.device, s.depth); err != nil {
		return fmt.Errorf("%w: restart stream: %w", ErrCapture, err)
	}
	s.logger.Info("Capture format changed to %s", got)
	return nil
}

func (s *Scanner) configure(req CaptureFormat) (CaptureFormat, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return CaptureFormat{}, fmt.Errorf("%w: %dx%d", ErrInvalidFormat, req.Width, req.Height)
	}
	got, err := s.device.Configure(req)
	if err != nil {
		return CaptureFormat{}, fmt.Errorf("%w: configure %s: %w", ErrCapture, req, err)
	}
	if got.Width <= 0 || got.Height <= 0 {
		return CaptureFormat{}, fmt.Errorf("%w: device reported %dx%d", ErrInvalidFormat, got.Width, got.Height)
	}
	return got, nil
}

func (s *Scanner) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	s.running = true
	return nil
}

func (s *Scanner) end() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.setState(StateIdle)

	if s.pending != nil {
		req := *s.pending
		s.pending = nil
		if format, err := s.configure(req); err != nil {
			s.logger.Error("Apply capture format %s: %v", req, err)
		} else {
			s.format = format
		}
	}
}

func (s *Scanner) setState(st State) {
	s.state.Store(int32(st))
}

// suppressor remembers the last emitted code. Frames without a code leave it untouched.
type suppressor struct {
	last string
	seen bool
}

// observe reports whether code should be emitted and records it if so.
func (d *suppressor) observe(code string) bool {
	if d.seen && d.last == code {
		return false
	}
	d.last = code
	d.seen = true
	return true
}

// activeStream guards the current FrameStream so shutdown and reconfiguration
// can close it from another goroutine.
type activeStream struct {
	mu     sync.Mutex
	stream FrameStream
	closed bool
}

func (a *activeStream) open(device Device, depth int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrStreamClosed
	}
	stream, err := device.Stream(depth)
	if err != nil {
		return err
	}
	a.stream = stream
	return nil
}

func (a *activeStream) next() ([]byte, error) {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()

	if stream == nil {
		return nil, ErrStreamClosed
	}
	return stream.Next()
}

// release closes the current stream but allows open to be called again.
func (a *activeStream) release() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stream != nil {
		a.stream.Close()
		a.stream = nil
	}
}

func (a *activeStream) close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	if a.stream != nil {
		a.stream.Close()
		a.stream = nil
	}
}
