package scanner

import "errors"

var (
	// ErrMalformedImage is returned when a gray image does not match its declared size.
	ErrMalformedImage = errors.New("malformed image")

	// ErrCapture wraps every error reported by the capture device.
	ErrCapture = errors.New("capture device error")

	// ErrInvalidFormat is returned for non-positive frame dimensions.
	ErrInvalidFormat = errors.New("invalid capture format")

	// ErrRunning is returned when a second loop is started on the same scanner.
	ErrRunning = errors.New("scan loop already running")
)

// ErrStreamClosed is returned by Next once a frame stream has been closed.
var ErrStreamClosed = errors.New("frame stream closed")
