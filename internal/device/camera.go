// Package device drives a V4L2 camera through OpenCV and hands raw frames to the scanner.
package device

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"kiosk/internal/logger"
	"kiosk/internal/scanner"
)

// ErrNoFrame is returned when the camera delivers nothing.
var ErrNoFrame = errors.New("camera returned no frame")

// Camera is a V4L2 capture device opened through gocv.
type Camera struct {
	path   string
	logger *logger.Logger

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	format scanner.CaptureFormat
}

// Open opens the camera at path (for example /dev/video0).
func Open(path string, log *logger.Logger) (*Camera, error) {
	if log == nil {
		log = logger.Nop()
	}

	vc, err := gocv.OpenVideoCaptureWithAPI(path, gocv.VideoCaptureV4L2)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open %s: device not available", path)
	}

	log.Info("Camera opened: %s", path)
	return &Camera{path: path, logger: log, vc: vc}, nil
}

// Configure requests width, height and pixel layout. Raw conversion is turned
// off so frames arrive in the requested encoding.
func (c *Camera) Configure(format scanner.CaptureFormat) (scanner.CaptureFormat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return scanner.CaptureFormat{}, fmt.Errorf("%s: camera closed", c.path)
	}

	c.vc.Set(gocv.VideoCaptureFOURCC, c.vc.ToCodec(format.Encoding.FourCC()))
	c.vc.Set(gocv.VideoCaptureFrameWidth, float64(format.Width))
	c.vc.Set(gocv.VideoCaptureFrameHeight, float64(format.Height))
	c.vc.Set(gocv.VideoCaptureConvertRGB, 0)

	applied := scanner.CaptureFormat{
		Width:    int(c.vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:   int(c.vc.Get(gocv.VideoCaptureFrameHeight)),
		Encoding: format.Encoding,
	}
	if applied.Width != format.Width || applied.Height != format.Height {
		c.logger.Warning("Camera %s: requested %s, got %s", c.path, format, applied)
	}

	c.format = applied
	return applied, nil
}

// Stream starts delivering frames using depth driver buffers. Each frame is
// read into a Mat owned by the stream; Close does not wait for a read that is
// already in flight.
func (c *Camera) Stream(depth int) (scanner.FrameStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil, fmt.Errorf("%s: camera closed", c.path)
	}
	c.vc.Set(gocv.VideoCaptureBufferSize, float64(depth))

	mat := gocv.NewMat()
	return scanner.NewReadStream(func() ([]byte, error) {
		return c.read(&mat)
	}, func() {
		mat.Close()
	}), nil
}

// read grabs one frame. It holds mu, so Configure and Close wait for it.
func (c *Camera) read(mat *gocv.Mat) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil, scanner.ErrStreamClosed
	}
	if ok := c.vc.Read(mat); !ok || mat.Empty() {
		return nil, ErrNoFrame
	}
	return mat.ToBytes(), nil
}

// Close releases the camera.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	c.logger.Info("Camera closed: %s", c.path)
	return err
}
