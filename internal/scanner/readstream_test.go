package scanner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadStream_DeliversFramesInOrder(t *testing.T) {
	var n atomic.Int32
	stream := NewReadStream(func() ([]byte, error) {
		return []byte{byte(n.Add(1))}, nil
	}, nil)
	defer stream.Close()

	for want := byte(1); want <= 3; want++ {
		frame, err := stream.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if frame[0] != want {
			t.Errorf("expected frame %d, got %d", want, frame[0])
		}
	}
	if n.Load() != 3 {
		t.Errorf("expected one read per Next, got %d reads", n.Load())
	}
}

func TestReadStream_ReadErrorIsReturned(t *testing.T) {
	stream := NewReadStream(func() ([]byte, error) { return nil, errUnplugged }, nil)
	defer stream.Close()

	if _, err := stream.Next(); !errors.Is(err, errUnplugged) {
		t.Errorf("expected device error, got %v", err)
	}
}

func TestReadStream_CloseUnblocksStuckRead(t *testing.T) {
	unstick := make(chan struct{})
	released := make(chan struct{})
	stream := NewReadStream(func() ([]byte, error) {
		<-unstick
		return []byte{1}, nil
	}, func() { close(released) })

	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Next()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	stream.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStreamClosed) {
			t.Errorf("expected ErrStreamClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next still blocked after Close")
	}

	select {
	case <-released:
		t.Fatal("released while a read was still in flight")
	default:
	}

	close(unstick)
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("release not called after the read finished")
	}

	if _, err := stream.Next(); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed after Close, got %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestRun_CancelWithStuckRead(t *testing.T) {
	unstick := make(chan struct{})
	defer close(unstick)

	dev := &readDevice{read: func() ([]byte, error) {
		<-unstick
		return nil, errUnplugged
	}}
	s, err := New(dev, NewRecognizer(testDecoder), Options{Width: 2, Height: 1, Encoding: EncodingYUYV}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, func(ScanResult) {}) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return while the device read was stuck")
	}
}

// readDevice hands out read streams over a single blocking read function.
type readDevice struct {
	read ReadFunc
}

func (d *readDevice) Configure(format CaptureFormat) (CaptureFormat, error) { return format, nil }
func (d *readDevice) Stream(depth int) (FrameStream, error)                 { return NewReadStream(d.read, nil), nil }
func (d *readDevice) Close() error                                          { return nil }
